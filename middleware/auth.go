package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"scheduling-server/logger"
	"scheduling-server/models"
	"scheduling-server/utils"
)

const userKey = "user"

// AuthMiddleware validates the session token and loads the user it names.
// Browsers cannot set headers on EventSource or WebSocket requests, so the
// token is also accepted as the "token" query parameter.
func AuthMiddleware(secret string, db *gorm.DB) gin.HandlerFunc {
	log := logger.WithComponent("auth")

	return func(c *gin.Context) {
		tokenString, ok := tokenFromRequest(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "Unauthorized",
				"message": "Please provide a valid token",
			})
			return
		}

		claims, err := utils.VerifyToken(secret, tokenString)
		if err != nil {
			log.Debug().Err(err).Str("path", c.FullPath()).Msg("Token rejected")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "Unauthorized",
				"message": "Token is invalid or expired",
			})
			return
		}

		var user models.User
		err = db.WithContext(c.Request.Context()).
			Where(`"userID" = ?`, claims.UserID).
			Take(&user).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "Unauthorized",
				"message": "User associated with token not found",
			})
			return
		}
		if err != nil {
			log.Error().Err(err).Str("user_id", claims.UserID).Msg("Failed to load session user")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}

		if user.Tenant() == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "Forbidden",
				"message": "User is not assigned to a firma",
			})
			return
		}

		c.Set(userKey, &user)
		c.Next()
	}
}

func tokenFromRequest(c *gin.Context) (string, bool) {
	if header := c.GetHeader("Authorization"); header != "" {
		token := strings.TrimPrefix(header, "Bearer ")
		if token == header || token == "" {
			return "", false
		}
		return token, true
	}
	if token := c.Query("token"); token != "" {
		return token, true
	}
	return "", false
}

// CurrentUser returns the user AuthMiddleware stored on the context.
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(userKey)
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}

// SetUser stores user the way AuthMiddleware does.
func SetUser(c *gin.Context, user *models.User) {
	c.Set(userKey, user)
}

// RequireDirectorEquivalent admits admins, directors and managers.
func RequireDirectorEquivalent() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil || !user.IsDirectorEquivalent() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
			return
		}
		c.Next()
	}
}
