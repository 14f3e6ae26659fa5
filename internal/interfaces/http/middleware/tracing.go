// Package middleware provides HTTP middleware for the manufacturing service.
package middleware

import (
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// MaxRequestIDLength caps request IDs attached to spans; longer header
	// values are truncated.
	MaxRequestIDLength = 128
	// MaxTenantIDLength caps tenant IDs accepted from headers.
	MaxTenantIDLength = 64
)

var uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// TracingConfig controls the request tracing middleware.
type TracingConfig struct {
	ServiceName string
	Enabled     bool
}

func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		ServiceName: "manufacturing-service",
		Enabled:     true,
	}
}

// Tracing returns the tracing middleware with default configuration.
func Tracing() gin.HandlerFunc {
	return TracingWithConfig(DefaultTracingConfig())
}

// TracingWithConfig wraps otelgin so every request gets a span named
// "METHOD route_pattern", then enriches the span with request_id,
// tenant_id, and user_id attributes where those are known.
func TracingWithConfig(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) { c.Next() }
	}

	otelMiddleware := otelgin.Middleware(cfg.ServiceName)
	return func(c *gin.Context) {
		otelMiddleware(c)

		// otelgin has created the span by the time it returns
		if span := trace.SpanFromContext(c.Request.Context()); span.IsRecording() {
			enrichSpanWithAttributes(c, span)
		}
	}
}

func enrichSpanWithAttributes(c *gin.Context, span trace.Span) {
	if requestID := getRequestID(c); requestID != "" {
		span.SetAttributes(attribute.String("request_id", requestID))
	}
	if tenantID := getTenantID(c); tenantID != "" {
		span.SetAttributes(attribute.String("tenant_id", tenantID))
	}
	if userID := getUserID(c); userID != "" {
		span.SetAttributes(attribute.String("user_id", userID))
	}
}

// getRequestID prefers the value the RequestID middleware stored and
// falls back to the raw header, truncated to MaxRequestIDLength.
func getRequestID(c *gin.Context) string {
	if id := c.GetString("request_id"); id != "" {
		return id
	}
	headerID := c.GetHeader("X-Request-ID")
	if len(headerID) > MaxRequestIDLength {
		headerID = headerID[:MaxRequestIDLength]
	}
	return headerID
}

// getTenantID prefers the tenant the tenant middleware resolved. Header
// fallback values must be UUIDs so arbitrary strings never reach trace
// attributes.
func getTenantID(c *gin.Context) string {
	if id := c.GetString(TenantIDKey); id != "" {
		return id
	}
	if headerID := c.GetHeader("X-Tenant-ID"); isValidTenantID(headerID) {
		return headerID
	}
	return ""
}

func isValidTenantID(tenantID string) bool {
	return len(tenantID) <= MaxTenantIDLength && uuidRegex.MatchString(tenantID)
}

// getUserID reads X-User-ID, accepting only UUID-shaped values.
func getUserID(c *gin.Context) string {
	if userID := c.GetHeader("X-User-ID"); isValidTenantID(userID) {
		return userID
	}
	return ""
}

// SpanErrorMarker flags spans for 4xx and 5xx responses. Place it after
// the Tracing middleware in the chain.
func SpanErrorMarker() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			return
		}

		statusCode := c.Writer.Status()
		if statusCode < http.StatusBadRequest {
			return
		}

		var description string
		switch {
		case statusCode >= http.StatusInternalServerError:
			description = "Internal Server Error"
		case statusCode == http.StatusUnauthorized:
			description = "Unauthorized"
		case statusCode == http.StatusForbidden:
			description = "Forbidden"
		case statusCode == http.StatusNotFound:
			description = "Not Found"
		default:
			description = "Client Error"
		}

		span.SetStatus(codes.Error, description)
		span.SetAttributes(attribute.Int("http.status_code", statusCode))
	}
}

// TracingAttributeInjector re-runs attribute enrichment after the tenant
// middleware has resolved the tenant, so spans opened before resolution
// still carry tenant_id. Place it after both Tracing and Tenant.
func TracingAttributeInjector() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if span.IsRecording() {
			enrichSpanWithAttributes(c, span)
		}
		c.Next()
	}
}
