package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"PMessenger/middleware"
)

func (h *Handler) listContacts(c *gin.Context) {
	page, err := h.svc.Contacts(c.Request.Context(), middleware.UserID(c),
		c.Query("q"), queryInt(c, "page", 1), queryInt(c, "per_page", 0))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) addContact(c *gin.Context) {
	var req struct {
		UserID int64 `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "user_id is required"})
		return
	}
	entry, conversationID, err := h.svc.AddContact(c.Request.Context(), middleware.UserID(c), req.UserID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"contact":         entry,
		"conversation_id": conversationID,
	})
}

func (h *Handler) removeContact(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.svc.RemoveContact(c.Request.Context(), middleware.UserID(c), id); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) searchUsers(c *gin.Context) {
	page, err := h.svc.SearchUsers(c.Request.Context(), middleware.UserID(c),
		c.Query("q"), queryInt(c, "page", 1), queryInt(c, "per_page", 0))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) watchlist(c *gin.Context) {
	list, err := h.svc.Watchlist(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list})
}
