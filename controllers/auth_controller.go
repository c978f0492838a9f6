package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cppla/branch/config"
	"github.com/cppla/branch/middleware"
	"github.com/cppla/branch/pod"
	"github.com/cppla/branch/session"
	"github.com/cppla/branch/utils"
)

// AuthController opens and closes interactive sessions. Identity is taken
// from the upstream sign-in provider as-is.
type AuthController struct {
	registry *session.Registry
}

// NewAuthController creates a new AuthController instance.
func NewAuthController(registry *session.Registry) *AuthController {
	return &AuthController{registry: registry}
}

// OpenSession starts a session for the given identity and returns its token.
func (a *AuthController) OpenSession(ctx *gin.Context) {
	var req session.Identity
	if err := ctx.ShouldBindJSON(&req); err != nil || req.Email == "" {
		utils.Error(ctx, http.StatusBadRequest, 40003, "invalid request payload")
		return
	}

	sessionID := uuid.NewString()
	ctrl, err := a.registry.Get(ctx.Request.Context(), sessionID, req)
	if err != nil {
		if errors.Is(err, pod.ErrEmptyText) {
			utils.Error(ctx, http.StatusBadRequest, 40004, "email cannot be empty")
			return
		}
		utils.Sugar.Errorw("open session failed", "error", err)
		utils.Error(ctx, http.StatusInternalServerError, 50004, "failed to open session")
		return
	}

	ttl := config.Get().SessionTTL()
	user := ctrl.User()
	token, err := utils.GenerateToken(user.ID, sessionID, user.Email, ttl)
	if err != nil {
		a.registry.Close(sessionID)
		utils.Error(ctx, http.StatusInternalServerError, 50005, "failed to generate token")
		return
	}

	utils.Success(ctx, gin.H{
		"token":      token,
		"expires_at": time.Now().Add(ttl),
		"state":      ctrl.State(ctx.Request.Context()),
	})
}

// Logout revokes the session until its token would have expired and stops
// its live pod copy.
func (a *AuthController) Logout(ctx *gin.Context) {
	claims := middleware.Claims(ctx)
	if claims == nil {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}

	expiresAt := time.Now().Add(config.Get().SessionTTL())
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	utils.RevokeSession(ctx.Request.Context(), claims.SessionID, expiresAt)
	a.registry.Close(claims.SessionID)
	utils.Success(ctx, gin.H{"message": "logged out"})
}

// Me returns the signed-in profile.
func (a *AuthController) Me(ctx *gin.Context) {
	ctrl, ok := controllerFor(ctx, a.registry)
	if !ok {
		return
	}
	utils.Success(ctx, ctrl.User())
}
