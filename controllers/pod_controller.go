package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cppla/branch/attachment"
	"github.com/cppla/branch/models"
	"github.com/cppla/branch/pod"
	"github.com/cppla/branch/session"
	"github.com/cppla/branch/utils"
)

// PodController serves the pod of the calling session and routes its
// actions through the session controller.
type PodController struct {
	registry *session.Registry
	loc      *time.Location
}

// NewPodController creates a PodController. Calendar days are computed in loc.
func NewPodController(registry *session.Registry, loc *time.Location) *PodController {
	if loc == nil {
		loc = time.Local
	}
	return &PodController{registry: registry, loc: loc}
}

// GetState returns the pod snapshot with the session's UI state.
func (p *PodController) GetState(ctx *gin.Context) {
	ctrl, ok := controllerFor(ctx, p.registry)
	if !ok {
		return
	}
	utils.Success(ctx, ctrl.State(ctx.Request.Context()))
}

// Refresh reloads the pod before answering.
func (p *PodController) Refresh(ctx *gin.Context) {
	ctrl, ok := controllerFor(ctx, p.registry)
	if !ok {
		return
	}
	if err := ctrl.Refresh(ctx.Request.Context()); err != nil {
		respondError(ctx, err, "failed to reload pod")
		return
	}
	utils.Success(ctx, ctrl.State(ctx.Request.Context()))
}

// SwitchPod moves the session to another pod the user belongs to.
func (p *PodController) SwitchPod(ctx *gin.Context) {
	var req struct {
		PodID string `json:"pod_id" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40050, "invalid request payload")
		return
	}
	ctrl, ok := controllerFor(ctx, p.registry)
	if !ok {
		return
	}
	if err := ctrl.SwitchPod(ctx.Request.Context(), req.PodID); err != nil {
		respondError(ctx, err, "failed to switch pod")
		return
	}
	utils.Success(ctx, ctrl.State(ctx.Request.Context()))
}

// Feed lists check-ins. Without a mode the session's view decides: the own
// dashboard shows the inbox, a member view shows that member's posts.
func (p *PodController) Feed(ctx *gin.Context) {
	ctrl, ok := controllerFor(ctx, p.registry)
	if !ok {
		return
	}
	filter := pod.FeedFilter{
		Mode:     pod.FeedMode(ctx.Query("mode")),
		ViewerID: ctrl.User().ID,
		UserID:   ctx.Query("user_id"),
		Date:     ctx.DefaultQuery("date", ctrl.SelectedDate()),
		Location: p.loc,
	}
	if filter.Mode == "" {
		filter.Mode = pod.FeedInbox
		if view := ctrl.View(); view != session.ViewMyDashboard {
			filter.Mode, filter.UserID = pod.FeedUser, view
		}
	}
	switch filter.Mode {
	case pod.FeedInbox, pod.FeedAll:
	case pod.FeedUser:
		if filter.UserID == "" {
			filter.UserID = filter.ViewerID
		}
	default:
		utils.Error(ctx, http.StatusBadRequest, 40051, "mode must be inbox, user or all")
		return
	}
	if filter.Date != "" {
		if _, err := time.Parse(pod.DayLayout, filter.Date); err != nil {
			respondError(ctx, session.ErrInvalidDate, "invalid date")
			return
		}
	}
	utils.Success(ctx, pod.FilterFeed(ctrl.Pod(), filter))
}

// Calendar returns, per day, the members who checked in.
func (p *PodController) Calendar(ctx *gin.Context) {
	ctrl, ok := controllerFor(ctx, p.registry)
	if !ok {
		return
	}
	utils.Success(ctx, pod.CalendarDays(ctrl.Pod(), p.loc))
}

// Notifications lists the viewer's notifications, newest first.
func (p *PodController) Notifications(ctx *gin.Context) {
	ctrl, ok := controllerFor(ctx, p.registry)
	if !ok {
		return
	}
	utils.Success(ctx, pod.VisibleNotifications(ctrl.Pod()))
}

// Invite adds members by email. Unknown addresses are emailed when SMTP is
// configured.
func (p *PodController) Invite(ctx *gin.Context) {
	var req struct {
		Email  string   `json:"email"`
		Emails []string `json:"emails"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40052, "invalid request payload")
		return
	}
	emails := utils.UniqueEmails(append(req.Emails, req.Email))
	if len(emails) == 0 {
		utils.Error(ctx, http.StatusBadRequest, 40053, "email cannot be empty")
		return
	}
	ctrl, ok := controllerFor(ctx, p.registry)
	if !ok {
		return
	}
	outcomes := make(map[string]pod.InviteOutcome, len(emails))
	for _, email := range emails {
		outcome, err := ctrl.InviteMember(ctx.Request.Context(), email)
		if err != nil {
			respondError(ctx, err, "failed to invite member")
			return
		}
		outcomes[email] = outcome
	}
	utils.Success(ctx, outcomes)
}

type uploadRequest struct {
	Name string `json:"name"`
	Type string `json:"type"`
	// Data is base64 in JSON.
	Data []byte `json:"data"`
}

type goalRequest struct {
	Text       string         `json:"text"`
	Attachment *uploadRequest `json:"attachment"`
}

// CreateCheckIn posts the morning check-in.
func (p *PodController) CreateCheckIn(ctx *gin.Context) {
	var req struct {
		Focus string        `json:"focus"`
		Goals []goalRequest `json:"goals"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40054, "invalid request payload")
		return
	}
	drafts := make([]pod.GoalDraft, 0, len(req.Goals))
	for _, g := range req.Goals {
		d := pod.GoalDraft{Text: g.Text}
		if g.Attachment != nil {
			if len(g.Attachment.Data) > attachment.MaxSize {
				respondError(ctx, attachment.ErrTooLarge, "invalid attachment")
				return
			}
			d.Attachment = &attachment.Upload{Name: g.Attachment.Name, Type: g.Attachment.Type, Data: g.Attachment.Data}
		}
		drafts = append(drafts, d)
	}
	ctrl, ok := controllerFor(ctx, p.registry)
	if !ok {
		return
	}
	ci, err := ctrl.CreateCheckIn(ctx.Request.Context(), req.Focus, drafts)
	if err != nil {
		respondError(ctx, err, "failed to create check-in")
		return
	}
	utils.Created(ctx, ci)
}

// CompleteReflection submits the evening reflection for a check-in.
func (p *PodController) CompleteReflection(ctx *gin.Context) {
	var req struct {
		Goals []struct {
			ID     string            `json:"id"`
			Status models.GoalStatus `json:"status"`
		} `json:"goals"`
		Recap          string   `json:"recap"`
		PushToTomorrow []string `json:"push_to_tomorrow"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40055, "invalid request payload")
		return
	}
	goals := make([]models.Goal, 0, len(req.Goals))
	for _, g := range req.Goals {
		goals = append(goals, models.Goal{ID: g.ID, Status: g.Status})
	}
	if !pod.CanSubmitReflection(goals) {
		utils.Error(ctx, http.StatusBadRequest, 40056, "mark at least one goal done or skipped")
		return
	}
	ctrl, ok := controllerFor(ctx, p.registry)
	if !ok {
		return
	}
	pushed, err := ctrl.CompleteEveningReflection(ctx.Request.Context(), ctx.Param("id"), goals, req.Recap, req.PushToTomorrow)
	if err != nil {
		respondError(ctx, err, "failed to submit reflection")
		return
	}
	utils.Success(ctx, gin.H{"pushed_goals": pushed})
}

// AddComment replies to a check-in.
func (p *PodController) AddComment(ctx *gin.Context) {
	var req struct {
		Text string `json:"text"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40057, "invalid request payload")
		return
	}
	ctrl, ok := controllerFor(ctx, p.registry)
	if !ok {
		return
	}
	c, err := ctrl.AddComment(ctx.Request.Context(), ctx.Param("id"), req.Text)
	if err != nil {
		respondError(ctx, err, "failed to add comment")
		return
	}
	utils.Created(ctx, c)
}

// React adds, changes or removes the caller's reaction on a check-in.
func (p *PodController) React(ctx *gin.Context) {
	var req struct {
		Emoji string `json:"emoji" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40058, "invalid request payload")
		return
	}
	ctrl, ok := controllerFor(ctx, p.registry)
	if !ok {
		return
	}
	res, err := ctrl.AddReaction(ctx.Request.Context(), ctx.Param("id"), req.Emoji)
	if err != nil {
		respondError(ctx, err, "failed to react")
		return
	}
	utils.Success(ctx, res)
}

// OpenNotification marks one notification read and jumps to its check-in.
func (p *PodController) OpenNotification(ctx *gin.Context) {
	var req struct {
		CheckInID string `json:"check_in_id" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40059, "invalid request payload")
		return
	}
	ctrl, ok := controllerFor(ctx, p.registry)
	if !ok {
		return
	}
	if err := ctrl.OpenNotification(ctx.Request.Context(), ctx.Param("id"), req.CheckInID); err != nil {
		respondError(ctx, err, "failed to open notification")
		return
	}
	utils.Success(ctx, ctrl.State(ctx.Request.Context()))
}

// MarkAllRead clears the unread badge.
func (p *PodController) MarkAllRead(ctx *gin.Context) {
	ctrl, ok := controllerFor(ctx, p.registry)
	if !ok {
		return
	}
	if err := ctrl.MarkAllRead(ctx.Request.Context()); err != nil {
		respondError(ctx, err, "failed to mark notifications read")
		return
	}
	utils.Success(ctx, gin.H{"message": "ok"})
}

// SetView switches dashboards.
func (p *PodController) SetView(ctx *gin.Context) {
	var req struct {
		View string `json:"view"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40060, "invalid request payload")
		return
	}
	ctrl, ok := controllerFor(ctx, p.registry)
	if !ok {
		return
	}
	ctrl.SetView(req.View)
	utils.Success(ctx, gin.H{"view": ctrl.View()})
}

// SelectDate filters the feed to one day; an empty date clears the filter.
func (p *PodController) SelectDate(ctx *gin.Context) {
	var req struct {
		Date string `json:"date"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40061, "invalid request payload")
		return
	}
	ctrl, ok := controllerFor(ctx, p.registry)
	if !ok {
		return
	}
	if err := ctrl.SelectDate(req.Date); err != nil {
		respondError(ctx, err, "failed to select date")
		return
	}
	utils.Success(ctx, gin.H{"selected_date": ctrl.SelectedDate()})
}

// Usage reports the session's interaction quota.
func (p *PodController) Usage(ctx *gin.Context) {
	ctrl, ok := controllerFor(ctx, p.registry)
	if !ok {
		return
	}
	utils.Success(ctx, ctrl.Usage(ctx.Request.Context()))
}
