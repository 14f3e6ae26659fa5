package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"
)

func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	t.Cleanup(func() {
		_ = tp.Shutdown(t.Context())
	})
	return sr
}

// serveTraced runs one GET /processes request through the given
// middleware chain, with the handler returning status.
func serveTraced(t *testing.T, sr *tracetest.SpanRecorder, status int, headers map[string]string, mw ...gin.HandlerFunc) sdktrace.ReadOnlySpan {
	t.Helper()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	for _, m := range mw {
		router.Use(m)
	}
	router.GET("/processes", func(c *gin.Context) {
		c.JSON(status, gin.H{})
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/processes", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	router.ServeHTTP(w, req)
	require.Equal(t, status, w.Code)

	if sr == nil {
		return nil
	}
	for _, span := range sr.Ended() {
		if span.Name() == "GET /processes" {
			return span
		}
	}
	return nil
}

func spanAttr(span sdktrace.ReadOnlySpan, key string) (string, bool) {
	for _, attr := range span.Attributes() {
		if string(attr.Key) == key {
			return attr.Value.AsString(), true
		}
	}
	return "", false
}

func TestDefaultTracingConfig(t *testing.T) {
	cfg := DefaultTracingConfig()
	assert.Equal(t, "manufacturing-service", cfg.ServiceName)
	assert.True(t, cfg.Enabled)
}

func TestTracingWithConfig_Disabled(t *testing.T) {
	sr := setupTestTracer(t)
	span := serveTraced(t, sr, http.StatusOK, nil,
		TracingWithConfig(TracingConfig{Enabled: false, ServiceName: "manufacturing-service"}))
	assert.Nil(t, span, "disabled tracing must not create a request span")
}

func TestTracingWithConfig_CreatesRequestSpan(t *testing.T) {
	sr := setupTestTracer(t)
	span := serveTraced(t, sr, http.StatusOK, nil, Tracing())
	require.NotNil(t, span)
}

func TestTracingAttributeInjector_RequestID(t *testing.T) {
	sr := setupTestTracer(t)
	span := serveTraced(t, sr, http.StatusOK,
		map[string]string{"X-Request-ID": "req-9f2c"},
		RequestID(), Tracing(), TracingAttributeInjector())
	require.NotNil(t, span)

	got, ok := spanAttr(span, "request_id")
	require.True(t, ok, "request_id attribute missing")
	assert.Equal(t, "req-9f2c", got)
}

func TestTracingAttributeInjector_TenantFromContext(t *testing.T) {
	sr := setupTestTracer(t)
	resolveTenant := func(c *gin.Context) {
		c.Set(TenantIDKey, "tenant-456")
		c.Next()
	}
	span := serveTraced(t, sr, http.StatusOK,
		map[string]string{"X-User-ID": "11111111-2222-3333-4444-555555555555"},
		Tracing(), resolveTenant, TracingAttributeInjector())
	require.NotNil(t, span)

	tenant, ok := spanAttr(span, "tenant_id")
	require.True(t, ok)
	assert.Equal(t, "tenant-456", tenant)

	user, ok := spanAttr(span, "user_id")
	require.True(t, ok)
	assert.Equal(t, "11111111-2222-3333-4444-555555555555", user)
}

func TestTracingAttributeInjector_TenantFromHeader(t *testing.T) {
	sr := setupTestTracer(t)
	span := serveTraced(t, sr, http.StatusOK,
		map[string]string{"X-Tenant-ID": "12345678-1234-1234-1234-123456789abc"},
		Tracing(), TracingAttributeInjector())
	require.NotNil(t, span)

	tenant, ok := spanAttr(span, "tenant_id")
	require.True(t, ok)
	assert.Equal(t, "12345678-1234-1234-1234-123456789abc", tenant)
}

func TestTracingAttributeInjector_NoSpanIsHarmless(t *testing.T) {
	serveTraced(t, nil, http.StatusOK, nil, TracingAttributeInjector())
}

func TestSpanErrorMarker(t *testing.T) {
	tests := []struct {
		status      int
		description string
	}{
		{http.StatusBadRequest, "Client Error"},
		{http.StatusUnauthorized, "Unauthorized"},
		{http.StatusForbidden, "Forbidden"},
		{http.StatusNotFound, "Not Found"},
		{http.StatusInternalServerError, "Internal Server Error"},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			sr := setupTestTracer(t)
			span := serveTraced(t, sr, tt.status, nil, Tracing(), SpanErrorMarker())
			require.NotNil(t, span)

			assert.Equal(t, codes.Error, span.Status().Code)
			if tt.status < http.StatusInternalServerError {
				// otelgin marks 5xx itself with its own description
				assert.Equal(t, tt.description, span.Status().Description)
			}
		})
	}

	t.Run("success leaves the span unset", func(t *testing.T) {
		sr := setupTestTracer(t)
		span := serveTraced(t, sr, http.StatusOK, nil, Tracing(), SpanErrorMarker())
		require.NotNil(t, span)
		assert.NotEqual(t, codes.Error, span.Status().Code)
	})

	t.Run("no-op provider does not panic", func(t *testing.T) {
		otel.SetTracerProvider(noop.NewTracerProvider())
		serveTraced(t, nil, http.StatusInternalServerError, nil, SpanErrorMarker())
	})
}

func TestGetRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("prefers the gin context value", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/processes", nil)
		c.Request.Header.Set("X-Request-ID", "from-header")
		c.Set("request_id", "from-context")

		assert.Equal(t, "from-context", getRequestID(c))
	})

	t.Run("falls back to the header", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/processes", nil)
		c.Request.Header.Set("X-Request-ID", "from-header")

		assert.Equal(t, "from-header", getRequestID(c))
	})

	t.Run("truncates oversized header values", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/processes", nil)
		c.Request.Header.Set("X-Request-ID", strings.Repeat("x", MaxRequestIDLength+100))

		assert.Len(t, getRequestID(c), MaxRequestIDLength)
	})
}

func TestGetTenantID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("prefers the resolved tenant", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/processes", nil)
		c.Set(TenantIDKey, "resolved-tenant")

		assert.Equal(t, "resolved-tenant", getTenantID(c))
	})

	t.Run("rejects a non-UUID header", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/processes", nil)
		c.Request.Header.Set("X-Tenant-ID", "not-a-uuid")

		assert.Empty(t, getTenantID(c))
	})
}

func TestGetUserID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/processes", nil)
	assert.Empty(t, getUserID(c))

	c.Request.Header.Set("X-User-ID", "99999999-8888-7777-6666-555555555555")
	assert.Equal(t, "99999999-8888-7777-6666-555555555555", getUserID(c))
}

func TestIsValidTenantID(t *testing.T) {
	tests := []struct {
		name     string
		tenantID string
		expected bool
	}{
		{"lowercase UUID", "12345678-1234-1234-1234-123456789abc", true},
		{"uppercase UUID", "12345678-1234-1234-1234-123456789ABC", true},
		{"too short", "12345678-1234-1234", false},
		{"no dashes", "12345678123412341234123456789abc", false},
		{"script injection", "<script>alert(1)</script>", false},
		{"empty", "", false},
		{"over max length", "12345678-1234-1234-1234-123456789abc" + strings.Repeat("x", MaxTenantIDLength), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isValidTenantID(tt.tenantID))
		})
	}
}
