package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tobenna/aria/internal/domains/user"
	"github.com/tobenna/aria/pkg/Logger"
)

// AuthMiddleware rejects requests without a valid bearer token.
func AuthMiddleware(userService user.UserService, logger *Logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := claimsFromHeader(c, userService)
		if err != "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err})
			c.Abort()
			return
		}

		c.Set("userID", claims.UserID)
		c.Set("email", claims.Email)
		c.Set("claims", claims)
		c.Next()
	}
}

// OptionalAuthMiddleware resolves a user when a token is present but
// lets anonymous requests through. Voice turns work without accounts;
// a token just attributes them.
func OptionalAuthMiddleware(userService user.UserService, logger *Logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") != "" {
			claims, errMsg := claimsFromHeader(c, userService)
			if errMsg != "" {
				c.JSON(http.StatusUnauthorized, gin.H{"error": errMsg})
				c.Abort()
				return
			}
			c.Set("userID", claims.UserID)
			c.Set("claims", claims)
		}
		c.Next()
	}
}

func claimsFromHeader(c *gin.Context, userService user.UserService) (*user.Claims, string) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return nil, "Authorization header required"
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return nil, "Invalid authorization format"
	}
	tokenString := strings.TrimPrefix(authHeader, "Bearer ")
	if tokenString == "" {
		return nil, "Token required"
	}
	claims, err := userService.ValidateToken(c.Request.Context(), tokenString)
	if err != nil {
		return nil, "Invalid token"
	}
	return claims, ""
}

// RequestUserID returns the authenticated user's id, if any.
func RequestUserID(c *gin.Context) *uuid.UUID {
	raw := c.GetString("userID")
	if raw == "" {
		return nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil
	}
	return &id
}

// CORSMiddleware handles CORS headers
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
