package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/erp/manufacturing/internal/domain/shared"
	"github.com/erp/manufacturing/internal/infrastructure/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// IdempotencyHeaderKey is the header clients use to deduplicate requests
const IdempotencyHeaderKey = "Idempotency-Key"

// IdempotencyMiddlewareConfig holds configuration for the idempotency middleware
type IdempotencyMiddlewareConfig struct {
	// Store persists processed keys
	Store shared.IdempotencyStore
	// TTL is how long a processed key blocks duplicates
	TTL time.Duration
	// Logger for middleware logging
	Logger *zap.Logger
}

// Idempotency returns middleware that rejects duplicate requests carrying the
// same Idempotency-Key header. Requests without the header pass through.
// Store failures fail open so the store never blocks request processing.
func Idempotency(store shared.IdempotencyStore, ttl time.Duration) gin.HandlerFunc {
	return IdempotencyWithConfig(IdempotencyMiddlewareConfig{
		Store: store,
		TTL:   ttl,
	})
}

// IdempotencyWithConfig returns idempotency middleware with custom configuration
func IdempotencyWithConfig(cfg IdempotencyMiddlewareConfig) gin.HandlerFunc {
	if cfg.TTL <= 0 {
		cfg.TTL = shared.DefaultIdempotencyConfig().TTL
	}

	return func(c *gin.Context) {
		if cfg.Store == nil {
			c.Next()
			return
		}

		key := c.GetHeader(IdempotencyHeaderKey)
		if key == "" {
			c.Next()
			return
		}

		// Scope the key per tenant and endpoint so the same client key
		// can be reused across different operations
		scopedKey := fmt.Sprintf("%s:%s:%s:%s", GetTenantID(c), c.Request.Method, c.Request.URL.Path, key)

		fresh, err := cfg.Store.MarkProcessed(c.Request.Context(), scopedKey, cfg.TTL)
		if err != nil {
			log := cfg.Logger
			if log == nil {
				log = logger.FromContext(c.Request.Context())
			}
			log.Warn("Idempotency store unavailable, processing request without deduplication",
				zap.String("key", key),
				zap.Error(err),
			)
			c.Next()
			return
		}

		if !fresh {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "ERR_CONFLICT",
					"message": "Duplicate request: this idempotency key was already processed",
				},
			})
			return
		}

		c.Next()
	}
}
