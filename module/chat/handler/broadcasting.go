package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"PMessenger/middleware"
	"PMessenger/module/chat/policy"
)

// broadcastingAuth authorizes one channel subscription for clients that
// pre-flight over HTTP before opening the socket.
func (h *Handler) broadcastingAuth(c *gin.Context) {
	var req struct {
		ChannelName string `json:"channel_name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "channel_name is required"})
		return
	}
	ok, err := h.svc.Policy().CanSubscribe(c.Request.Context(), middleware.UserID(c), req.ChannelName)
	if err != nil {
		fail(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"channel": req.ChannelName, "authorized": true})
}

// broadcastingUserAuth resolves the caller's personal channel name.
func (h *Handler) broadcastingUserAuth(c *gin.Context) {
	userID := middleware.UserID(c)
	c.JSON(http.StatusOK, gin.H{
		"channel":    policy.UserChannel(userID),
		"authorized": true,
	})
}
