package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"wifi-admission-backend/internal/auth"
	"wifi-admission-backend/internal/model"
)

type putPushSubscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
	P256DH   string `json:"p256dh" binding:"required"`
	Auth     string `json:"auth" binding:"required"`
}

// PutPushSubscription registers the calling admin's browser for pending
// request notifications.
func (h *Handler) PutPushSubscription(c *gin.Context) {
	var req putPushSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errInvalidRequest)
		return
	}

	admin := auth.AdminFrom(c)
	if err := auth.Require(admin); err != nil {
		h.fail(c, err)
		return
	}

	sub := &model.AdminPushSubscription{
		Endpoint:  req.Endpoint,
		P256DH:    req.P256DH,
		Auth:      req.Auth,
		Admin:     admin.Username,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.push.SavePushSubscription(c.Request.Context(), sub); err != nil {
		h.fail(c, err)
		return
	}

	c.Status(http.StatusCreated)
}

type deletePushSubscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
}

func (h *Handler) DeletePushSubscription(c *gin.Context) {
	var req deletePushSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errInvalidRequest)
		return
	}

	if err := h.push.DeletePushSubscription(c.Request.Context(), req.Endpoint); err != nil {
		h.fail(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// GetVAPIDPublicKey returns the VAPID public key to the client.
func (h *Handler) GetVAPIDPublicKey(c *gin.Context) {
	if h.webpush == nil || h.webpush.VAPIDPublicKey == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "vapid keys are not configured"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"public_key": h.webpush.VAPIDPublicKey})
}
