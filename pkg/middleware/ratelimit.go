package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/tablevine/booking-risk/pkg/common"
	"github.com/tablevine/booking-risk/pkg/ratelimit"
)

// RateLimit enforces per-endpoint request limits. Authenticated callers are
// keyed by user ID, anonymous ones by client IP. Must run after
// AuthMiddleware on authenticated routes to pick up the user identity.
func RateLimit(limiter *ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := c.ClientIP()
		identityType := ratelimit.IdentityAnonymous
		if userID := c.GetString(UserIDKey); userID != "" {
			identity = userID
			identityType = ratelimit.IdentityAuthenticated
		}

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = c.Request.URL.Path
		}

		rule := limiter.RuleFor(endpoint, identityType)
		result, err := limiter.Allow(c.Request.Context(), endpoint, identity, rule, identityType)
		if err != nil {
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))

		if !result.Allowed {
			c.Header("Retry-After", strconv.Itoa(int(result.RetryAfter.Seconds())+1))
			common.ErrorResponse(c, http.StatusTooManyRequests, "rate limit exceeded")
			c.Abort()
			return
		}

		c.Next()
	}
}
