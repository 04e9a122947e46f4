package middleware

import (
	"net/http"
	"strings"

	"hardline-backend/common/auth"
	"hardline-backend/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	IdentityContextKey = "identity"
	UserContextKey     = auth.UserIDKey
	RoleContextKey     = auth.RoleKey
)

// TokenValidator is satisfied by *auth.TokenParser.
type TokenValidator interface {
	ParseAndValidateToken(tokenStr string) (*auth.Claims, error)
}

// AuthMiddleware requires a bearer access token and stores the caller's
// Identity in the context.
func AuthMiddleware(parser TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization token required"})
			return
		}

		claims, err := parser.ParseAndValidateToken(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		userID, err := uuid.Parse(claims.SubjectID())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid user ID format"})
			return
		}

		role := strings.ToLower(strings.TrimSpace(claims.Role))
		if role == "" {
			role = models.RoleUser
		}
		identity := models.Identity{UserID: userID, Email: strings.TrimSpace(claims.Email), Role: role}

		c.Set(IdentityContextKey, identity)
		c.Set(UserContextKey, userID.String())
		c.Set(RoleContextKey, role)
		c.Next()
	}
}

// bearerToken reads the Authorization header. EventSource cannot set
// headers, so stream routes may pass the token as ?access_token=.
func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(header[len("Bearer "):])
	}
	if header == "" {
		return c.Query("access_token")
	}
	return ""
}

// RequireRole lets through callers holding any of roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := GetIdentity(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		for _, r := range roles {
			if identity.Role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Access denied"})
	}
}

func StaffOnly() gin.HandlerFunc {
	return RequireRole(models.RoleAdmin, models.RoleModerator)
}

func AdminOnly() gin.HandlerFunc {
	return RequireRole(models.RoleAdmin)
}

func GetIdentity(c *gin.Context) (models.Identity, bool) {
	val, ok := c.Get(IdentityContextKey)
	if !ok {
		return models.Identity{}, false
	}
	identity, ok := val.(models.Identity)
	return identity, ok
}
