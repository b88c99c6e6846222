package handler

import (
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"PMessenger/middleware"
	"PMessenger/module/chat/model"
	"PMessenger/module/chat/service"
	"PMessenger/tools/errs"
)

const maxAttachmentBytes = 25 << 20 // per file

func (h *Handler) listMessages(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	page, err := h.svc.ConversationMessages(c.Request.Context(), middleware.UserID(c), id,
		queryInt64(c, "before_id"), queryInt(c, "per_page", 0), c.Query("q"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// sendMessage accepts JSON for text-only messages and multipart form data
// when files ride along; files stream into the blob store before the
// message row is written.
func (h *Handler) sendMessage(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	in := service.SendInput{ConversationID: id}

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		form, err := c.MultipartForm()
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "bad multipart form"})
			return
		}
		if v := form.Value["body"]; len(v) > 0 {
			in.Body = v[0]
		}
		for _, fh := range form.File["files"] {
			desc, err := h.storeUpload(fh)
			if err != nil {
				fail(c, err)
				return
			}
			in.Attachments = append(in.Attachments, *desc)
		}
	} else {
		var req struct {
			Body string `json:"body"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "bad request body"})
			return
		}
		in.Body = req.Body
	}

	view, err := h.svc.SendMessage(c.Request.Context(), middleware.UserID(c), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (h *Handler) storeUpload(fh *multipart.FileHeader) (*model.AttachmentDescriptor, error) {
	if fh.Size > maxAttachmentBytes {
		return nil, errs.ErrValidation.WithDetail("attachment exceeds size limit")
	}
	f, err := fh.Open()
	if err != nil {
		return nil, errs.ErrValidation.WithDetail("unreadable upload")
	}
	defer f.Close()

	mimeType := fh.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	locator, size, err := h.blob.Save("attachments", fh.Filename, mimeType, f)
	if err != nil {
		return nil, err
	}
	return &model.AttachmentDescriptor{
		StorageLocator: locator,
		OriginalName:   fh.Filename,
		MimeType:       mimeType,
		SizeBytes:      size,
	}, nil
}

// uploadAttachment creates an attachment-only message from a single file
// field. Clients use it for drag-and-drop sends with no text.
func (h *Handler) uploadAttachment(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "file is required"})
		return
	}
	desc, err := h.storeUpload(fh)
	if err != nil {
		fail(c, err)
		return
	}
	view, err := h.svc.SendMessage(c.Request.Context(), middleware.UserID(c), service.SendInput{
		ConversationID: id,
		Attachments:    []model.AttachmentDescriptor{*desc},
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (h *Handler) editMessage(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req struct {
		Body string `json:"body" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "body is required"})
		return
	}
	msg, err := h.svc.EditMessage(c.Request.Context(), middleware.UserID(c), id, req.Body)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (h *Handler) deleteMessage(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteMessage(c.Request.Context(), middleware.UserID(c), id); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
