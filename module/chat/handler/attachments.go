package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"PMessenger/logger"
	"PMessenger/middleware"
)

// serveAttachment streams the blob after the participancy check. Inline
// mode lets browsers render images; download mode forces a save dialog
// with the original filename.
func (h *Handler) serveAttachment(download bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		att, err := h.svc.Attachment(c.Request.Context(), middleware.UserID(c), id)
		if err != nil {
			fail(c, err)
			return
		}
		blob, err := h.blob.Fetch(att.StorageLocator)
		if err != nil {
			fail(c, err)
			return
		}
		defer blob.Close()

		disposition := "inline"
		if download || !att.IsImage() {
			disposition = "attachment"
		}
		c.Header("Content-Type", att.MimeType)
		c.Header("Content-Length", strconv.FormatInt(att.SizeBytes, 10))
		c.Header("Content-Disposition", disposition+`; filename="`+att.OriginalName+`"`)
		c.Status(http.StatusOK)
		if _, err := io.Copy(c.Writer, blob); err != nil {
			logger.Warnf("[http] stream attachment %d: %v", id, err)
		}
	}
}
