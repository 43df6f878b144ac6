package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/contextmeet/contextmeet/internal/middleware"
	"github.com/contextmeet/contextmeet/internal/models"
	"github.com/contextmeet/contextmeet/internal/services"
	appErrors "github.com/contextmeet/contextmeet/pkg/errors"
	"github.com/contextmeet/contextmeet/pkg/logger"
	"github.com/contextmeet/contextmeet/pkg/response"
)

// MeetingHandler exposes HTTP endpoints for meetings.
type MeetingHandler struct {
	meetings      *services.MeetingService
	auth          *services.AuthService
	contexts      *services.ContextService
	notifications *services.NotificationService
	sync          *services.SyncService
	log           *zap.Logger
}

// NewMeetingHandler constructs a meeting handler. The sync service may be
// nil when Google credentials are not configured.
func NewMeetingHandler(
	meetings *services.MeetingService,
	auth *services.AuthService,
	contexts *services.ContextService,
	notifications *services.NotificationService,
	sync *services.SyncService,
) *MeetingHandler {
	return &MeetingHandler{
		meetings:      meetings,
		auth:          auth,
		contexts:      contexts,
		notifications: notifications,
		sync:          sync,
		log:           logger.WithModule("handlers.meetings"),
	}
}

type meetingRequest struct {
	EventID         string    `json:"event_id" validate:"max=256"`
	Title           string    `json:"title" validate:"required,max=300"`
	Description     string    `json:"description" validate:"max=5000"`
	StartTime       time.Time `json:"start_time" validate:"required"`
	EndTime         time.Time `json:"end_time"`
	Attendees       []string  `json:"attendees" validate:"dive,email"`
	Location        string    `json:"location" validate:"max=300"`
	MeetingLink     string    `json:"meeting_link" validate:"omitempty,url"`
	Notes           string    `json:"notes" validate:"max=5000"`
	GenerateContext bool      `json:"generate_context"`
}

type meetingUpdateRequest struct {
	Title       *string    `json:"title" validate:"omitempty,max=300"`
	Description *string    `json:"description" validate:"omitempty,max=5000"`
	StartTime   *time.Time `json:"start_time"`
	EndTime     *time.Time `json:"end_time"`
	Attendees   *[]string  `json:"attendees" validate:"omitempty,dive,email"`
	Location    *string    `json:"location" validate:"omitempty,max=300"`
	MeetingLink *string    `json:"meeting_link" validate:"omitempty,url"`
	Notes       *string    `json:"notes" validate:"omitempty,max=5000"`
	IsConfirmed *bool      `json:"is_confirmed"`
}

func autoGenerateEnabled(user *models.User) bool {
	return services.PreferencesFor(user).AutoGenerateContext
}

// List returns the user's meetings with pagination.
func (h *MeetingHandler) List(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	list, err := h.meetings.List(c.Request.Context(), userID, services.MeetingListOptions{
		Page:     parseIntQuery(c, "page", 1),
		PageSize: parseIntQuery(c, "page_size", 20),
		Upcoming: parseBoolQuery(c, "upcoming"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	totalPages := int(list.Total) / list.PageSize
	if int(list.Total)%list.PageSize != 0 {
		totalPages++
	}
	response.SuccessWithMeta(c, http.StatusOK, list.Meetings, &response.Meta{
		Page:       list.Page,
		PerPage:    list.PageSize,
		Total:      int(list.Total),
		TotalPages: totalPages,
	})
}

// Get returns one meeting.
func (h *MeetingHandler) Get(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	meeting, err := h.meetings.Get(c.Request.Context(), userID, strings.TrimSpace(c.Param("id")))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, meeting)
}

// Create stores a meeting, optionally generating its brief and scheduling
// reminders in the same request.
func (h *MeetingHandler) Create(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req meetingRequest
	if !bindAndValidate(c, &req) {
		return
	}

	meeting, created, err := h.meetings.Create(c.Request.Context(), userID, services.MeetingInput{
		EventID:     req.EventID,
		Title:       req.Title,
		Description: req.Description,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Attendees:   req.Attendees,
		Location:    req.Location,
		MeetingLink: req.MeetingLink,
		Notes:       req.Notes,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	user, err := h.auth.GetUser(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	if req.GenerateContext || autoGenerateEnabled(user) {
		if _, err := h.contexts.Generate(c.Request.Context(), userID, meeting.ID, false); err != nil {
			h.log.Warn("context generation failed on create",
				zap.String("meeting_id", meeting.ID), zap.Error(err))
		}
	}

	if _, err := h.notifications.AutoSchedule(c.Request.Context(), user, meeting); err != nil {
		h.log.Warn("reminder scheduling failed on create",
			zap.String("meeting_id", meeting.ID), zap.Error(err))
	}

	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	response.Success(c, status, meeting)
}

// Update applies partial changes to a meeting.
func (h *MeetingHandler) Update(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req meetingUpdateRequest
	if !bindAndValidate(c, &req) {
		return
	}

	meeting, err := h.meetings.Update(c.Request.Context(), userID, strings.TrimSpace(c.Param("id")), services.MeetingUpdateInput{
		Title:       req.Title,
		Description: req.Description,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Attendees:   req.Attendees,
		Location:    req.Location,
		MeetingLink: req.MeetingLink,
		Notes:       req.Notes,
		IsConfirmed: req.IsConfirmed,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, meeting)
}

// Delete removes a meeting and withdraws its pending reminders.
func (h *MeetingHandler) Delete(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.meetings.Delete(c.Request.Context(), userID, strings.TrimSpace(c.Param("id"))); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// Today lists the user's meetings for the current day.
func (h *MeetingHandler) Today(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	meetings, err := h.meetings.Today(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, meetings)
}

// Stats returns aggregate meeting counts.
func (h *MeetingHandler) Stats(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	stats, err := h.meetings.Stats(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, stats)
}

// Sync pulls upcoming events from the user's Google calendar.
func (h *MeetingHandler) Sync(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if h.sync == nil {
		response.Error(c, appErrors.ErrCalendarNotConnected)
		return
	}

	result, err := h.sync.Sync(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}
