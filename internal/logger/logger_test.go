package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitLevel(t *testing.T) {
	cases := []struct {
		env      string
		debugOn  bool
		warnOnly bool
	}{
		{env: "", debugOn: false},
		{env: "debug", debugOn: true},
		{env: "DEBUG", debugOn: true},
		{env: "warn", warnOnly: true},
		{env: "chatty", debugOn: false},
	}
	for _, tc := range cases {
		t.Run(tc.env, func(t *testing.T) {
			t.Setenv("LOG_LEVEL", tc.env)

			l, err := Init()
			require.NoError(t, err)
			assert.Equal(t, tc.debugOn, l.Core().Enabled(zap.DebugLevel))
			assert.Equal(t, !tc.warnOnly, l.Core().Enabled(zap.InfoLevel))
		})
	}
}

func newTestEngine(handler gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	r.GET("/ping", handler)
	return r
}

func TestMiddlewareAssignsCorrelationID(t *testing.T) {
	var seen string
	r := newTestEngine(func(c *gin.Context) {
		seen = CorrelationID(c)
		c.Status(http.StatusNoContent)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ping", nil))

	require.NotEmpty(t, seen)
	assert.Equal(t, seen, rr.Header().Get(CorrelationIDHeader))
}

func TestMiddlewareKeepsIncomingCorrelationID(t *testing.T) {
	r := newTestEngine(func(c *gin.Context) {
		c.String(http.StatusOK, CorrelationID(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(CorrelationIDHeader, "req-7f3a")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, "req-7f3a", rr.Header().Get(CorrelationIDHeader))
	assert.Equal(t, "req-7f3a", rr.Body.String())
}

func TestWithRequestAddsCorrelationField(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	r := newTestEngine(func(c *gin.Context) {
		WithRequest(base, c).Info("handled")
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(CorrelationIDHeader, "req-42")
	r.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.FilterMessage("handled").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "req-42", entries[0].ContextMap()["correlation_id"])
}
