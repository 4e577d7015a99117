package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"market-connect/internal/biddingerrors"
	"market-connect/internal/models"
	"market-connect/utils"
)

const identityKey = "identity"

// TokenFromRequest returns the bearer token from the Authorization header,
// falling back to the token query parameter browsers use for websockets.
func TokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

// Middleware rejects requests without a valid token and stores the identity
// on the gin context.
func Middleware(s *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := s.ValidateToken(TokenFromRequest(c.Request))
		if err != nil {
			utils.JSONError(c, http.StatusUnauthorized, err, "authentication required")
			utils.Warn("auth: rejected request", map[string]any{
				"path":  c.Request.URL.Path,
				"error": err.Error(),
			})
			c.Abort()
			return
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

// RequireRole lets only the given roles through. It must run after Middleware.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := FromContext(c)
		if ok {
			for _, role := range roles {
				if id.Role == role {
					c.Next()
					return
				}
			}
		}
		utils.JSONError(c, http.StatusForbidden, biddingerrors.ErrUnauthorized, "insufficient role")
		c.Abort()
	}
}

// FromContext returns the identity stored by Middleware.
func FromContext(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return Identity{}, false
	}
	id, ok := v.(Identity)
	return id, ok
}

// SetIdentity stores id on the context. Handler tests use it in place of Middleware.
func SetIdentity(c *gin.Context, id Identity) {
	c.Set(identityKey, id)
}
