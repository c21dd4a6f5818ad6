package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"wifi-admission-backend/internal/admission"
	"wifi-admission-backend/internal/model"
	"wifi-admission-backend/internal/registry"
)

const unknownMAC = "unknown"

// WhoAmI tells a device which MAC the gateway sees for it. The registry is
// consulted first; a device it has not seen yet is looked up in the
// neighbour table and recorded.
func (h *Handler) WhoAmI(c *gin.Context) {
	ip := h.clientIP(c)
	mac := unknownMAC

	dev, err := h.registry.LookupByIP(c.Request.Context(), ip)
	switch {
	case err == nil:
		mac = dev.MAC
	case errors.Is(err, registry.ErrNotFound):
		if h.resolver == nil {
			break
		}
		resolved, ok := h.resolver.ResolveMAC(ip)
		if !ok {
			break
		}
		if _, err := h.registry.Observe(c.Request.Context(), resolved, ip, ""); err != nil {
			h.log.Warn().Err(err).Str("ip", ip).Msg("failed to record resolved device")
		}
		mac = resolved
	default:
		h.log.Warn().Err(err).Str("ip", ip).Msg("device lookup failed")
	}

	c.JSON(http.StatusOK, gin.H{"ip": ip, "mac": mac})
}

// GetStatus reports what the device should be shown. Expired subscriptions
// read as none.
func (h *Handler) GetStatus(c *gin.Context) {
	mac := c.Query("mac")
	if mac == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "mac is required"})
		return
	}
	status, err := h.machine.Status(c.Request.Context(), mac)
	if err != nil {
		h.fail(c, err)
		return
	}
	if status == model.StatusExpired {
		status = model.StatusNone
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

// RequestPlan records a proof-of-payment submission for admin review.
func (h *Handler) RequestPlan(c *gin.Context) {
	var req admission.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errInvalidRequest)
		return
	}
	req.IP = h.clientIP(c)

	sub, err := h.machine.Submit(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Request sent for approval", "subscription": sub})
}

// GetPlans lists the catalog. It serves both the public and admin routes.
func (h *Handler) GetPlans(c *gin.Context) {
	plans, err := h.catalog.List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, plans)
}

// GetLiveDevices lists the devices seen on the network recently.
func (h *Handler) GetLiveDevices(c *gin.Context) {
	devices, err := h.registry.ListLive(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, devices)
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login exchanges admin credentials for a bearer token.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errInvalidRequest)
		return
	}
	token, admin, err := h.auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "role": admin.Role, "username": admin.Username})
}
