package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"wifi-admission-backend/internal/auth"
	"wifi-admission-backend/internal/catalog"
	"wifi-admission-backend/internal/model"
)

var (
	admissionPending = []model.Status{model.StatusPending}
	admissionActive  = []model.Status{model.StatusActive}
)

func (h *Handler) CreatePlan(c *gin.Context) {
	var f catalog.Fields
	if err := c.ShouldBindJSON(&f); err != nil {
		c.JSON(http.StatusBadRequest, errInvalidRequest)
		return
	}
	plan, err := h.catalog.Create(c.Request.Context(), auth.AdminFrom(c), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, plan)
}

func (h *Handler) DeletePlan(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid plan id"})
		return
	}
	if err := h.catalog.Delete(c.Request.Context(), auth.AdminFrom(c), id); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Plan deleted"})
}

func (h *Handler) listSubscriptions(statuses []model.Status) gin.HandlerFunc {
	return func(c *gin.Context) {
		subs, err := h.machine.List(c.Request.Context(), auth.AdminFrom(c), statuses...)
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, subs)
	}
}

type decisionRequest struct {
	SubscriptionID int64 `json:"subscription_id" binding:"required"`
	Force          bool  `json:"force"`
}

// ApproveSubscription activates a pending request. A reused transaction id
// answers 409 with the earlier approved record unless force is set.
func (h *Handler) ApproveSubscription(c *gin.Context) {
	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errInvalidRequest)
		return
	}
	result, err := h.machine.Approve(c.Request.Context(), auth.AdminFrom(c), req.SubscriptionID, req.Force)
	if err != nil {
		h.fail(c, err)
		return
	}
	if result.Conflict != nil {
		c.JSON(http.StatusConflict, gin.H{
			"error":    "transaction id already used by an approved subscription",
			"conflict": result.Conflict,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":      "Subscription approved and activated",
		"subscription": result.Subscription,
		"superseded":   result.Superseded,
	})
}

func (h *Handler) RejectSubscription(c *gin.Context) {
	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errInvalidRequest)
		return
	}
	sub, err := h.machine.Reject(c.Request.Context(), auth.AdminFrom(c), req.SubscriptionID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Subscription rejected", "subscription": sub})
}

func (h *Handler) RevokeSubscription(c *gin.Context) {
	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errInvalidRequest)
		return
	}
	sub, err := h.machine.Revoke(c.Request.Context(), auth.AdminFrom(c), req.SubscriptionID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Subscription revoked and device blocked", "subscription": sub})
}

type assignPlanRequest struct {
	MACAddress string `json:"mac_address" binding:"required"`
	PlanID     int64  `json:"plan_id" binding:"required"`
}

func (h *Handler) AssignPlan(c *gin.Context) {
	var req assignPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errInvalidRequest)
		return
	}
	sub, err := h.machine.AssignPlan(c.Request.Context(), auth.AdminFrom(c), req.MACAddress, req.PlanID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Plan assigned successfully", "subscription": sub})
}

func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.machine.Stats(c.Request.Context(), auth.AdminFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) GetRevenueStats(c *gin.Context) {
	days, err := strconv.Atoi(c.DefaultQuery("days", "7"))
	if err != nil || days <= 0 || days > 366 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "days must be between 1 and 366"})
		return
	}
	points, err := h.machine.Revenue(c.Request.Context(), auth.AdminFrom(c), days)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, points)
}

func (h *Handler) GetCustomers(c *gin.Context) {
	customers, err := h.machine.Customers(c.Request.Context(), auth.AdminFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, customers)
}

type renameRequest struct {
	Name string `json:"name"`
}

func (h *Handler) RenameCustomer(c *gin.Context) {
	var req renameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errInvalidRequest)
		return
	}
	if err := h.machine.RenameDevice(c.Request.Context(), auth.AdminFrom(c), c.Param("mac"), req.Name); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Name updated"})
}

type blockRequest struct {
	MAC string `json:"mac" binding:"required"`
}

func (h *Handler) setBlocked(blocked bool) gin.HandlerFunc {
	msg := "Device unblocked"
	if blocked {
		msg = "Device blocked"
	}
	return func(c *gin.Context) {
		var req blockRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errInvalidRequest)
			return
		}
		if err := h.machine.SetDeviceBlocked(c.Request.Context(), auth.AdminFrom(c), req.MAC, blocked); err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": msg})
	}
}

func (h *Handler) FlushData(c *gin.Context) {
	if err := h.machine.Flush(c.Request.Context(), auth.AdminFrom(c)); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "System data flushed successfully"})
}

// GetAuditLog lists forced approvals, newest first.
func (h *Handler) GetAuditLog(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}
	entries, err := h.machine.AuditLog(c.Request.Context(), auth.AdminFrom(c), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}
