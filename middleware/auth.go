package middleware

import (
	"fmt"
	"strings"

	"document-vector-platform/internal/config"
	"document-vector-platform/utils"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// OwnerClaims are the JWT claims the platform issues to API consumers.
// The owner id scopes every document and search to its tenant.
type OwnerClaims struct {
	Owner string `json:"owner"`
	jwt.RegisteredClaims
}

type AuthMiddleware struct {
	config *config.Config
}

func NewAuthMiddleware(cfg *config.Config) *AuthMiddleware {
	return &AuthMiddleware{config: cfg}
}

// RequireAuth validates the bearer token and stores the owner id in the
// request context.
func (a *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		tokenString := extractBearerToken(authHeader)
		if tokenString == "" {
			utils.RespondWithUnauthorized(c, "Authentication token is required")
			c.Abort()
			return
		}

		claims := &OwnerClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return []byte(a.config.JWTSecret), nil
		})
		if err != nil || !token.Valid {
			utils.RespondWithUnauthorized(c, "Invalid or expired token")
			c.Abort()
			return
		}
		if claims.Owner == "" {
			utils.RespondWithUnauthorized(c, "Token is missing the owner claim")
			c.Abort()
			return
		}

		c.Set("owner", claims.Owner)
		c.Set("claims", claims)

		c.Next()
	}
}

// GetOwner retrieves the authenticated owner id from context
func GetOwner(c *gin.Context) string {
	if owner, exists := c.Get("owner"); exists {
		if id, ok := owner.(string); ok {
			return id
		}
	}
	return ""
}

func extractBearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
