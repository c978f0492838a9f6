package controllers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cppla/branch/pod"
	"github.com/cppla/branch/session"
	"github.com/cppla/branch/utils"
)

// StatsController provides per-member activity figures for the session's pod.
type StatsController struct {
	registry *session.Registry
	loc      *time.Location
}

// NewStatsController creates a new StatsController instance.
func NewStatsController(registry *session.Registry, loc *time.Location) *StatsController {
	if loc == nil {
		loc = time.Local
	}
	return &StatsController{registry: registry, loc: loc}
}

// GetStats returns check-in counts, goal outcomes and streaks per member.
func (s *StatsController) GetStats(ctx *gin.Context) {
	ctrl, ok := controllerFor(ctx, s.registry)
	if !ok {
		return
	}
	p := ctrl.Pod()
	utils.Success(ctx, gin.H{
		"pod_id":  p.ID,
		"members": pod.Stats(p, s.loc, time.Now()),
	})
}
