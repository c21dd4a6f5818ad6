package api

import (
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"wifi-admission-backend/config"
	"wifi-admission-backend/internal/admission"
	"wifi-admission-backend/internal/auth"
	"wifi-admission-backend/internal/catalog"
	"wifi-admission-backend/internal/metrics"
	"wifi-admission-backend/internal/mw"
	"wifi-admission-backend/internal/registry"
	"wifi-admission-backend/internal/store"
)

// Deps are the services the HTTP layer exposes.
type Deps struct {
	Machine  *admission.Machine
	Catalog  *catalog.Catalog
	Registry *registry.Registry
	Auth     *auth.Service
	Push     store.PushStore
	// Resolver is optional.
	Resolver MACResolver
	WebPush  *webpush.Options
	Metrics  *metrics.Collector
	// PlanCache should be the cache the catalog invalidates on change.
	PlanCache *mw.ResponseCache
	Log       zerolog.Logger
}

// NewRouter creates and configures a new Gin router.
func NewRouter(cfg config.ServerConfig, d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), mw.RequestID(), mw.Logger(d.Log), mw.Metrics(d.Metrics))

	handler := NewHandler(d, cfg.RequestIPHeader)
	planCache := d.PlanCache
	if planCache == nil {
		planCache = mw.NewResponseCache(cfg.CacheTTL)
	}

	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}

	api := r.Group("/api")
	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Device-facing endpoints.
	public := api.Group("")
	public.Use(mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst))
	{
		public.GET("/auth/whoami", handler.WhoAmI)
		public.GET("/auth/status", handler.GetStatus)
		public.POST("/auth/request-plan", handler.RequestPlan)
		public.GET("/public/plans", planCache.Middleware(), handler.GetPlans)
		public.GET("/devices", handler.GetLiveDevices)
		public.POST("/admin/login", handler.Login)
	}

	admin := api.Group("/admin")
	admin.Use(d.Auth.Middleware())
	{
		admin.GET("/plans", handler.GetPlans)
		admin.POST("/plans", handler.CreatePlan)
		admin.DELETE("/plans/:id", handler.DeletePlan)

		admin.GET("/pending-requests", handler.listSubscriptions(admissionPending))
		admin.GET("/subscriptions", handler.listSubscriptions(admissionActive))
		admin.GET("/all-subscriptions", handler.listSubscriptions(nil))
		admin.POST("/approve-subscription", handler.ApproveSubscription)
		admin.POST("/reject-subscription", handler.RejectSubscription)
		admin.POST("/revoke-subscription", handler.RevokeSubscription)
		admin.POST("/assign-plan", handler.AssignPlan)

		admin.GET("/stats", handler.GetStats)
		admin.GET("/revenue-stats", handler.GetRevenueStats)
		admin.GET("/customers", handler.GetCustomers)
		admin.PUT("/customers/:mac/name", handler.RenameCustomer)
		admin.POST("/block", handler.setBlocked(true))
		admin.POST("/unblock", handler.setBlocked(false))
		admin.POST("/flush-data", handler.FlushData)
		admin.GET("/audit", handler.GetAuditLog)

		admin.PUT("/push-subscriptions", handler.PutPushSubscription)
		admin.DELETE("/push-subscriptions", handler.DeletePushSubscription)
		admin.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}
