package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cppla/branch/models"
	"github.com/cppla/branch/session"
	"github.com/cppla/branch/utils"
)

// SuggestionController serves generated text suggestions. Every call counts
// against the session quota; provider failures yield empty suggestions.
type SuggestionController struct {
	registry *session.Registry
}

func NewSuggestionController(registry *session.Registry) *SuggestionController {
	return &SuggestionController{registry: registry}
}

func (s *SuggestionController) Focus(ctx *gin.Context) {
	ctrl, ok := controllerFor(ctx, s.registry)
	if !ok {
		return
	}
	list, err := ctrl.SuggestFocus(ctx.Request.Context())
	if err != nil {
		respondError(ctx, err, "failed to suggest focus")
		return
	}
	utils.Success(ctx, gin.H{"suggestions": list})
}

func (s *SuggestionController) Goals(ctx *gin.Context) {
	var req struct {
		Focus string `json:"focus" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40070, "focus is required")
		return
	}
	ctrl, ok := controllerFor(ctx, s.registry)
	if !ok {
		return
	}
	list, err := ctrl.SuggestGoals(ctx.Request.Context(), req.Focus)
	if err != nil {
		respondError(ctx, err, "failed to suggest goals")
		return
	}
	utils.Success(ctx, gin.H{"suggestions": list})
}

func (s *SuggestionController) Replies(ctx *gin.Context) {
	ctrl, ok := controllerFor(ctx, s.registry)
	if !ok {
		return
	}
	list, err := ctrl.SuggestReplies(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, err, "failed to suggest replies")
		return
	}
	utils.Success(ctx, gin.H{"suggestions": list})
}

// Recap drafts an evening recap from the goal statuses picked so far.
func (s *SuggestionController) Recap(ctx *gin.Context) {
	var req struct {
		Goals []struct {
			ID     string            `json:"id"`
			Text   string            `json:"text"`
			Status models.GoalStatus `json:"status"`
		} `json:"goals"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40071, "invalid request payload")
		return
	}
	goals := make([]models.Goal, 0, len(req.Goals))
	for _, g := range req.Goals {
		goals = append(goals, models.Goal{ID: g.ID, Text: g.Text, Status: g.Status})
	}
	ctrl, ok := controllerFor(ctx, s.registry)
	if !ok {
		return
	}
	recap, err := ctrl.SuggestRecap(ctx.Request.Context(), ctx.Param("id"), goals)
	if err != nil {
		respondError(ctx, err, "failed to suggest recap")
		return
	}
	utils.Success(ctx, gin.H{"recap": recap})
}
