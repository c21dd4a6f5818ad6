package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"wifi-admission-backend/internal/admission"
	"wifi-admission-backend/internal/auth"
	"wifi-admission-backend/internal/catalog"
	"wifi-admission-backend/internal/registry"
	"wifi-admission-backend/internal/store"
)

// MACResolver finds the MAC behind an IP when the registry has not seen
// the device yet.
type MACResolver interface {
	ResolveMAC(ip string) (string, bool)
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	machine  *admission.Machine
	catalog  *catalog.Catalog
	registry *registry.Registry
	auth     *auth.Service
	push     store.PushStore
	resolver MACResolver
	webpush  *webpush.Options
	ipHeader string
	log      zerolog.Logger
}

// NewHandler creates a new API handler.
func NewHandler(d Deps, ipHeader string) *Handler {
	return &Handler{
		machine:  d.Machine,
		catalog:  d.Catalog,
		registry: d.Registry,
		auth:     d.Auth,
		push:     d.Push,
		resolver: d.Resolver,
		webpush:  d.WebPush,
		ipHeader: ipHeader,
		log:      d.Log,
	}
}

var errInvalidRequest = gin.H{"error": "invalid request"}

// clientIP prefers the configured proxy header, taking the first hop, and
// falls back to the socket address.
func (h *Handler) clientIP(c *gin.Context) string {
	if h.ipHeader != "" {
		if v := c.GetHeader(h.ipHeader); v != "" {
			first, _, _ := strings.Cut(v, ",")
			return strings.TrimSpace(first)
		}
	}
	return c.RemoteIP()
}

// fail maps domain errors onto HTTP responses.
func (h *Handler) fail(c *gin.Context, err error) {
	var validation *admission.ValidationError
	var precondition *admission.PreconditionError

	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": validation.Error(), "field": validation.Field})
	case errors.Is(err, catalog.ErrInvalidPlan), errors.Is(err, admission.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, admission.ErrNotFound), errors.Is(err, catalog.ErrNotFound), errors.Is(err, registry.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &precondition):
		c.JSON(http.StatusConflict, gin.H{
			"error":           "already decided",
			"subscription_id": precondition.ID,
			"status":          precondition.Got,
		})
	case errors.Is(err, auth.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
	case errors.Is(err, auth.ErrUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": "admin capability required"})
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
