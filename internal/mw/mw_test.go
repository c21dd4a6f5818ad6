package mw

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"wifi-admission-backend/internal/metrics"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r *gin.Engine, method, path string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, vv := range header {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestResponseCache(t *testing.T) {
	rc := NewResponseCache(time.Minute)
	calls := 0

	r := gin.New()
	r.Use(rc.Middleware())
	r.GET("/plans", func(c *gin.Context) {
		calls++
		c.JSON(http.StatusOK, gin.H{"calls": calls})
	})
	r.GET("/broken", func(c *gin.Context) {
		calls++
		c.JSON(http.StatusInternalServerError, gin.H{"error": "boom"})
	})

	first := serve(r, http.MethodGet, "/plans", nil)
	second := serve(r, http.MethodGet, "/plans", nil)
	assert.Equal(t, 1, calls)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, "application/json; charset=utf-8", second.Header().Get("Content-Type"))

	rc.Invalidate()
	third := serve(r, http.MethodGet, "/plans", nil)
	assert.Equal(t, 2, calls)
	assert.JSONEq(t, `{"calls":2}`, third.Body.String())

	serve(r, http.MethodGet, "/broken", nil)
	serve(r, http.MethodGet, "/broken", nil)
	assert.Equal(t, 4, calls, "errors are not cached")
}

func TestRateLimiter(t *testing.T) {
	r := gin.New()
	r.Use(RateLimiter(rate.Limit(1), 2))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusNoContent, serve(r, http.MethodGet, "/", nil).Code)
	}
	w := serve(r, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.JSONEq(t, `{"error":"too many requests"}`, w.Body.String())
}

func TestIPRateLimiter_PerIP(t *testing.T) {
	l := NewIPRateLimiter(rate.Limit(1), 1, time.Minute)

	a := l.GetLimiter("192.168.1.20")
	assert.Same(t, a, l.GetLimiter("192.168.1.20"))
	assert.NotSame(t, a, l.GetLimiter("192.168.1.21"))

	assert.True(t, a.Allow())
	assert.False(t, a.Allow())
	assert.True(t, l.GetLimiter("192.168.1.21").Allow())
}

func TestRequestIDAndLogger(t *testing.T) {
	var buf bytes.Buffer
	r := gin.New()
	r.Use(RequestID(), Logger(zerolog.New(&buf)))
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, GetRequestID(c))
	})

	w := serve(r, http.MethodGet, "/ping", nil)
	generated := w.Header().Get(RequestIDHeader)
	require.Len(t, generated, 36)
	assert.Equal(t, generated, w.Body.String())
	assert.Contains(t, buf.String(), `"request_id":"`+generated+`"`)
	assert.Contains(t, buf.String(), `"path":"/ping"`)

	w = serve(r, http.MethodGet, "/ping", http.Header{RequestIDHeader: []string{"abc-123"}})
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))

	buf.Reset()
	serve(r, http.MethodGet, "/missing", nil)
	assert.Contains(t, buf.String(), `"level":"warn"`)
}

func TestMetricsMiddleware(t *testing.T) {
	m := metrics.New()
	r := gin.New()
	r.Use(Metrics(m))
	r.GET("/devices/:mac", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(r, http.MethodGet, "/devices/aa:bb:cc:11:22:33", nil)
	serve(r, http.MethodGet, "/devices/de:ad:be:ef:00:01", nil)
	serve(r, http.MethodGet, "/nowhere", nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/devices/:mac", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "unmatched", "404")))
}
