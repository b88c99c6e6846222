package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"PMessenger/middleware"
)

func (h *Handler) listConversations(c *gin.Context) {
	page, err := h.svc.Conversations(c.Request.Context(), middleware.UserID(c),
		c.Query("q"), queryInt(c, "page", 1), queryInt(c, "per_page", 0))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) startDirect(c *gin.Context) {
	var req struct {
		UserID int64 `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "user_id is required"})
		return
	}
	conv, created, err := h.svc.StartDirect(c.Request.Context(), middleware.UserID(c), req.UserID)
	if err != nil {
		fail(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, conv)
}

func (h *Handler) createGroup(c *gin.Context) {
	var req struct {
		Name      string  `json:"name" binding:"required"`
		MemberIDs []int64 `json:"member_ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "name and member_ids are required"})
		return
	}
	conv, err := h.svc.CreateGroup(c.Request.Context(), middleware.UserID(c), req.Name, req.MemberIDs)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, conv)
}

func (h *Handler) conversationDetail(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	conv, err := h.svc.ConversationDetail(c.Request.Context(), middleware.UserID(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

func (h *Handler) conversationParticipants(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	users, err := h.svc.ConversationParticipants(c.Request.Context(), middleware.UserID(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": users})
}

func (h *Handler) markRead(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req struct {
		MessageID int64 `json:"message_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "message_id is required"})
		return
	}
	if err := h.svc.MarkRead(c.Request.Context(), middleware.UserID(c), id, req.MessageID); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) typing(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req struct {
		Typing *bool `json:"typing" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "typing is required"})
		return
	}
	if err := h.svc.Typing(c.Request.Context(), middleware.UserID(c), id, *req.Typing); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
