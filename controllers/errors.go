package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cppla/branch/attachment"
	"github.com/cppla/branch/middleware"
	"github.com/cppla/branch/pod"
	"github.com/cppla/branch/session"
	"github.com/cppla/branch/store"
	"github.com/cppla/branch/utils"
)

// controllerFor returns the live session controller for the request. A
// session that idled out of the registry is started again from the token's
// email.
func controllerFor(ctx *gin.Context, registry *session.Registry) (*session.Controller, bool) {
	sessionID := middleware.SessionID(ctx)
	if sessionID == "" {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return nil, false
	}
	ctrl, err := registry.Get(ctx.Request.Context(), sessionID, session.Identity{Email: ctx.GetString(middleware.ContextEmailKey)})
	if err != nil {
		respondError(ctx, err, "failed to load session")
		return nil, false
	}
	return ctrl, true
}

// respondError maps domain errors to the response envelope. Unknown errors
// are logged and reported as 500 with fallback as the message.
func respondError(ctx *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, pod.ErrLimitReached):
		utils.Error(ctx, http.StatusTooManyRequests, 42910, "interaction limit reached for this session")
	case errors.Is(err, pod.ErrNotMember):
		utils.Error(ctx, http.StatusForbidden, 40310, "not a member of this pod")
	case errors.Is(err, pod.ErrEmptyText):
		utils.Error(ctx, http.StatusBadRequest, 40040, "text cannot be empty")
	case errors.Is(err, pod.ErrInvalidStatus):
		utils.Error(ctx, http.StatusBadRequest, 40041, err.Error())
	case errors.Is(err, session.ErrInvalidDate):
		utils.Error(ctx, http.StatusBadRequest, 40042, err.Error())
	case errors.Is(err, attachment.ErrTooLarge), errors.Is(err, attachment.ErrEmpty):
		utils.Error(ctx, http.StatusBadRequest, 40043, err.Error())
	case errors.Is(err, pod.ErrAlreadyReflected):
		utils.Error(ctx, http.StatusConflict, 40910, "evening reflection already submitted")
	case errors.Is(err, store.ErrNotFound), errors.Is(err, session.ErrUnknownCheckIn):
		utils.Error(ctx, http.StatusNotFound, 40410, "not found")
	case errors.Is(err, session.ErrClosed):
		utils.Error(ctx, http.StatusGone, 41010, "session closed")
	default:
		utils.Sugar.Errorw(fallback, "path", ctx.FullPath(), "session", middleware.SessionID(ctx), "error", err)
		utils.Error(ctx, http.StatusInternalServerError, 50010, fallback)
	}
}
