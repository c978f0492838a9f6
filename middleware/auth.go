package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cppla/branch/utils"
)

const (
	// ContextUserIDKey is the key used to store authenticated user ID in Gin context.
	ContextUserIDKey = "user_id"
	// ContextSessionIDKey stores the interactive session the token was issued for.
	ContextSessionIDKey = "session_id"
	// ContextEmailKey stores the signed-in email.
	ContextEmailKey = "email"
	// ContextClaimsKey stores the parsed claims.
	ContextClaimsKey = "claims"
)

// AuthRequired ensures the request is authenticated via JWT. Websocket
// clients cannot set headers, so a token query parameter is accepted too.
func AuthRequired() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		tokenString, ok := bearerToken(ctx)
		if !ok {
			ctx.Abort()
			return
		}

		claims, err := utils.ParseToken(tokenString)
		if err != nil {
			utils.Error(ctx, http.StatusUnauthorized, 40105, "invalid token")
			ctx.Abort()
			return
		}

		if utils.IsSessionRevoked(ctx.Request.Context(), claims.SessionID) {
			utils.Error(ctx, http.StatusUnauthorized, 40104, "session signed out")
			ctx.Abort()
			return
		}

		ctx.Set(ContextUserIDKey, claims.UserID)
		ctx.Set(ContextSessionIDKey, claims.SessionID)
		ctx.Set(ContextEmailKey, claims.Email)
		ctx.Set(ContextClaimsKey, claims)
		ctx.Next()
	}
}

func bearerToken(ctx *gin.Context) (string, bool) {
	authHeader := ctx.GetHeader("Authorization")
	if authHeader == "" {
		if q := ctx.GetString(ContextQueryTokenKey); q != "" {
			return q, true
		}
		if q := strings.TrimSpace(ctx.Query("token")); q != "" {
			return q, true
		}
		utils.Error(ctx, http.StatusUnauthorized, 40101, "authorization header missing")
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		utils.Error(ctx, http.StatusUnauthorized, 40102, "invalid authorization header format")
		return "", false
	}

	tokenString := strings.TrimSpace(parts[1])
	if tokenString == "" {
		utils.Error(ctx, http.StatusUnauthorized, 40103, "empty bearer token")
		return "", false
	}
	return tokenString, true
}

// SessionID returns the session bound to the request by AuthRequired.
func SessionID(ctx *gin.Context) string {
	return ctx.GetString(ContextSessionIDKey)
}

// Claims returns the parsed token claims, or nil outside AuthRequired.
func Claims(ctx *gin.Context) *utils.Claims {
	v, ok := ctx.Get(ContextClaimsKey)
	if !ok {
		return nil
	}
	c, _ := v.(*utils.Claims)
	return c
}
