package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/yashrajoria/tomeshelf/common/auth"
	"github.com/yashrajoria/tomeshelf/common/logger"
	"github.com/yashrajoria/tomeshelf/models"
	"github.com/yashrajoria/tomeshelf/repository"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const (
	UserContextKey = "userID"
	RoleContextKey = "role"

	tokenCookie = "token"
)

// UserLookup loads the account behind an authenticated id.
type UserLookup interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Owner, error)
}

// AuthMiddleware resolves the caller from, in order: gateway identity headers (only when
// trustGateway is set), an Authorization Bearer token, or the "token" cookie.
//
// When users is set the caller must exist in it and the stored role wins over the role
// carried by the token or header.
func AuthMiddleware(verifier *auth.TokenVerifier, users UserLookup, trustGateway bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if trustGateway {
			if userID := c.GetHeader("X-User-ID"); userID != "" {
				authenticate(c, users, userID, c.GetHeader("X-User-Role"))
				return
			}
		}

		token := ""
		if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
			token = strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
		}
		if token == "" {
			if v, err := c.Cookie(tokenCookie); err == nil {
				token = v
			}
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "User authentication required"})
			return
		}

		id, err := verifier.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}
		authenticate(c, users, id.UserID, id.Role)
	}
}

func authenticate(c *gin.Context, users UserLookup, userID, role string) {
	if users != nil {
		oid, err := primitive.ObjectIDFromHex(userID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "User not found"})
			return
		}
		owner, err := users.FindByID(c.Request.Context(), oid)
		if errors.Is(err, repository.ErrNotFound) {
			logger.Warn(c, "Authenticated id has no account", zap.String("user_id", userID))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "User not found"})
			return
		}
		if err != nil {
			logger.Error(c, "User lookup failed", err, zap.String("user_id", userID))
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "Unable to verify user"})
			return
		}
		if owner.Role != "" {
			role = owner.Role
		}
	}

	c.Set(UserContextKey, userID)
	c.Set(RoleContextKey, role)
	c.Next()
}

// GetUserID extracts the user ID from the Gin context.
func GetUserID(c *gin.Context) string {
	return c.GetString(UserContextKey)
}

// GetIdentity returns the authenticated caller set by AuthMiddleware.
func GetIdentity(c *gin.Context) auth.Identity {
	return auth.Identity{UserID: c.GetString(UserContextKey), Role: c.GetString(RoleContextKey)}
}

// AdminOnly restricts access to admin role.
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(RoleContextKey) != models.RoleAdmin {
			logger.Info(c, "Admin route denied",
				zap.String("user_id", GetUserID(c)),
				zap.String("route", c.FullPath()),
			)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin role required"})
			return
		}
		c.Next()
	}
}
