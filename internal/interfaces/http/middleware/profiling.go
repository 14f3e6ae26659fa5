// Package middleware provides HTTP middleware for the manufacturing service.
package middleware

import (
	"context"
	"strings"

	"github.com/erp/manufacturing/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
)

// ProfilingConfig controls which requests get profiling labels.
type ProfilingConfig struct {
	Enabled bool
	// SkipPaths are exact paths excluded from labeling, such as health checks.
	SkipPaths []string
	// SkipPathPrefixes are path prefixes excluded from labeling.
	SkipPathPrefixes []string
}

func DefaultProfilingConfig() ProfilingConfig {
	return ProfilingConfig{
		Enabled: true,
		SkipPaths: []string{
			"/health",
			"/healthz",
			"/ready",
			"/metrics",
		},
		SkipPathPrefixes: []string{
			"/swagger",
			"/api-docs",
		},
	}
}

// Profiling returns the profiling middleware with default configuration.
func Profiling() gin.HandlerFunc {
	return ProfilingWithConfig(DefaultProfilingConfig())
}

// ProfilingWithConfig tags handler execution with Pyroscope labels so
// profiles can be filtered by controller, route pattern, HTTP method, and
// tenant. Route patterns keep the label set low-cardinality; raw URL
// paths never become labels.
func ProfilingWithConfig(cfg ProfilingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return passthrough
	}

	return func(c *gin.Context) {
		if profilingSkipped(cfg, c.Request.URL.Path) {
			c.Next()
			return
		}

		telemetry.WithProfilingLabels(c.Request.Context(), requestProfilingLabels(c), func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
}

func profilingSkipped(cfg ProfilingConfig, path string) bool {
	for _, skip := range cfg.SkipPaths {
		if path == skip {
			return true
		}
	}
	for _, prefix := range cfg.SkipPathPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func requestProfilingLabels(c *gin.Context) map[string]string {
	labels := map[string]string{
		telemetry.ProfilingLabelMethod: c.Request.Method,
	}

	route := c.FullPath()
	if route != "" {
		labels[telemetry.ProfilingLabelRoute] = route
	}
	if controller := controllerFromRoute(route); controller != "" {
		labels[telemetry.ProfilingLabelController] = controller
	}
	if tenantID := c.GetString(TenantIDKey); tenantID != "" {
		labels[telemetry.ProfilingLabelTenantID] = tenantID
	}
	return labels
}

// controllerFromRoute derives a controller name from the route pattern:
// the first path segment after "api" and the version that is not a path
// parameter, so "/api/v1/processes/:id/costs" yields "processes".
func controllerFromRoute(route string) string {
	for _, part := range strings.Split(route, "/") {
		switch {
		case part == "" || part == "api" || isVersionSegment(part):
			continue
		case strings.HasPrefix(part, ":") || strings.HasPrefix(part, "{"):
			continue
		default:
			return part
		}
	}
	return ""
}

// isVersionSegment reports whether a path segment looks like "v1", "v2".
func isVersionSegment(segment string) bool {
	if len(segment) < 2 || (segment[0] != 'v' && segment[0] != 'V') {
		return false
	}
	for i := 1; i < len(segment); i++ {
		if segment[i] < '0' || segment[i] > '9' {
			return false
		}
	}
	return true
}
