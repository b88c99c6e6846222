package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"PMessenger/logger"
	"PMessenger/middleware"
	"PMessenger/module/chat/service"
	"PMessenger/tools/errs"
	"PMessenger/tools/security"
)

// BlobStore is the handler-side slice of the blob service: uploads in,
// streams out. GridFS implements it in service/blob.
type BlobStore interface {
	Save(prefix, originalName, mimeType string, r io.Reader) (locator string, size int64, err error)
	Fetch(locator string) (io.ReadCloser, error)
}

// Handler owns the REST surface. All state mutations go through the
// service; the handler only parses, authorizes via middleware, and shapes
// responses.
type Handler struct {
	svc  *service.Service
	blob BlobStore
}

func New(svc *service.Service, blob BlobStore) *Handler {
	return &Handler{svc: svc, blob: blob}
}

// Register mounts every route. The websocket endpoint is mounted by main
// next to this group; it authenticates in-band rather than per-request.
func (h *Handler) Register(r *gin.Engine, jwt security.Options) {
	api := r.Group("/api", middleware.Auth(jwt))

	api.GET("/conversations", h.listConversations)
	api.POST("/conversations/direct", h.startDirect)
	api.POST("/conversations/group", h.createGroup)
	api.GET("/conversations/:id", h.conversationDetail)
	api.GET("/conversations/:id/participants", h.conversationParticipants)

	api.GET("/conversations/:id/messages", h.listMessages)
	api.POST("/conversations/:id/messages", h.sendMessage)
	api.POST("/conversations/:id/attachments", h.uploadAttachment)
	api.POST("/conversations/:id/read", h.markRead)
	api.POST("/conversations/:id/typing", h.typing)

	api.PUT("/messages/:id", h.editMessage)
	api.DELETE("/messages/:id", h.deleteMessage)

	api.GET("/attachments/:id", h.serveAttachment(false))
	api.GET("/attachments/:id/download", h.serveAttachment(true))

	api.GET("/contacts", h.listContacts)
	api.POST("/contacts", h.addContact)
	api.DELETE("/contacts/:id", h.removeContact)

	api.GET("/users/search", h.searchUsers)
	api.GET("/watchlist", h.watchlist)

	api.POST("/broadcasting/auth", h.broadcastingAuth)
	api.POST("/broadcasting/user-auth", h.broadcastingUserAuth)
}

// fail maps service errors onto transport statuses and a stable JSON
// error shape.
func fail(c *gin.Context, err error) {
	status := errs.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		logger.Errorf("[http] %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error(), "code": errs.Code(err)})
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, name string, def int) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return def
	}
	return v
}

func queryInt64(c *gin.Context, name string) int64 {
	v, _ := strconv.ParseInt(c.Query(name), 10, 64)
	return v
}
