package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"docsign/internal/domain"
	"docsign/internal/service"
)

const (
	ContextKeyActor  = "actor"
	ContextKeyClaims = "claims"
)

// AuthMiddleware returns Gin middleware that validates JWT tokens and injects
// the caller as the audit actor of the request.
func AuthMiddleware(authService service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   gin.H{"code": "UNAUTHORIZED", "message": "missing or invalid authorization header"},
			})
			return
		}

		claims, err := authService.ValidateToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   gin.H{"code": "UNAUTHORIZED", "message": "invalid or expired token"},
			})
			return
		}

		setActor(c, claims)
		c.Next()
	}
}

// OptionalAuth attaches the caller when a valid token is present and lets
// anonymous requests through. Public verification routes use it so that a
// logged-in verifier is attributed in the audit trail.
func OptionalAuth(authService service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := bearerToken(c); ok {
			if claims, err := authService.ValidateToken(token); err == nil {
				setActor(c, claims)
			}
		}
		c.Next()
	}
}

// RequireActorType rejects callers whose token carries a different actor type.
func RequireActorType(types ...domain.ActorType) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := GetActor(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"error":   gin.H{"code": "FORBIDDEN", "message": "actor not found in context"},
			})
			return
		}
		for _, t := range types {
			if actor.Type == t {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"success": false,
			"error":   gin.H{"code": "FORBIDDEN", "message": "insufficient permissions"},
		})
	}
}

// GetActor extracts the authenticated actor from the Gin context.
func GetActor(c *gin.Context) (service.Actor, bool) {
	val, exists := c.Get(ContextKeyActor)
	if !exists {
		return service.Actor{}, false
	}
	actor, ok := val.(service.Actor)
	return actor, ok
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	return token, token != ""
}

func setActor(c *gin.Context, claims *service.Claims) {
	actor := claims.Actor()
	c.Set(ContextKeyActor, actor)
	c.Set(ContextKeyClaims, claims)
	c.Request = c.Request.WithContext(service.WithActor(c.Request.Context(), actor))
}
