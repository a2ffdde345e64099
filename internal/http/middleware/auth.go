// README: Auth middleware verifying bearer or cookie JWTs.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"cabnex/internal/infra"
)

const (
	callerUIDKey  = "caller_uid"
	callerRoleKey = "caller_role"

	// TokenCookie is the cookie browsers send the session token in.
	TokenCookie = "cabnex_token"
)

// Auth rejects requests without a valid token and stores the caller's uid
// and role on the context. The Authorization header wins over the cookie.
func Auth(verifier infra.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		token, err := verifier.VerifyToken(c.Request.Context(), raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(callerUIDKey, token.UID)
		c.Set(callerRoleKey, token.Role)
		c.Next()
	}
}

// RequireRole lets only callers with one of roles through. Use after Auth.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := CallerRole(c)
		for _, r := range roles {
			if r == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	if h := c.GetHeader("Authorization"); h != "" {
		raw, found := strings.CutPrefix(h, "Bearer ")
		raw = strings.TrimSpace(raw)
		return raw, found && raw != ""
	}
	if v, err := c.Cookie(TokenCookie); err == nil && v != "" {
		return v, true
	}
	return "", false
}

func CallerUID(c *gin.Context) string {
	return c.GetString(callerUIDKey)
}

func CallerRole(c *gin.Context) string {
	return c.GetString(callerRoleKey)
}
