package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/contextmeet/contextmeet/internal/middleware"
	"github.com/contextmeet/contextmeet/internal/services"
	appErrors "github.com/contextmeet/contextmeet/pkg/errors"
	"github.com/contextmeet/contextmeet/pkg/response"
)

// NotificationHandler exposes HTTP endpoints for reminders.
type NotificationHandler struct {
	service  *services.NotificationService
	auth     *services.AuthService
	meetings *services.MeetingService
}

// NewNotificationHandler constructs a notification handler.
func NewNotificationHandler(service *services.NotificationService, auth *services.AuthService, meetings *services.MeetingService) *NotificationHandler {
	return &NotificationHandler{service: service, auth: auth, meetings: meetings}
}

type scheduleRequest struct {
	MeetingID     string    `json:"meeting_id" validate:"required"`
	Channel       string    `json:"channel" validate:"required,oneof=email telegram"`
	ScheduledTime time.Time `json:"scheduled_time" validate:"required"`
}

type autoScheduleRequest struct {
	MeetingID string `json:"meeting_id" validate:"required"`
}

// List returns the user's notifications, optionally filtered by status.
func (h *NotificationHandler) List(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	notifications, err := h.service.List(c.Request.Context(), userID, services.NotificationListOptions{
		Status: strings.TrimSpace(c.Query("status")),
		Limit:  parseIntQuery(c, "limit", 50),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, notifications)
}

// Schedule queues one reminder.
func (h *NotificationHandler) Schedule(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req scheduleRequest
	if !bindAndValidate(c, &req) {
		return
	}

	notification, err := h.service.Schedule(c.Request.Context(), userID, req.MeetingID, req.Channel, req.ScheduledTime)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, notification)
}

// AutoSchedule queues reminders for a meeting from the user's preferences.
func (h *NotificationHandler) AutoSchedule(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req autoScheduleRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.auth.GetUser(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	// AutoSchedule trusts the meeting it is given, so ownership is checked
	// here before handing over.
	meeting, err := h.meetings.Get(c.Request.Context(), userID, req.MeetingID)
	if err != nil {
		response.Error(c, err)
		return
	}

	created, err := h.service.AutoSchedule(c.Request.Context(), user, meeting)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, created)
}

// Cancel withdraws a pending reminder.
func (h *NotificationHandler) Cancel(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	notification, err := h.service.Cancel(c.Request.Context(), userID, strings.TrimSpace(c.Param("id")))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, notification)
}

// Resend requeues a failed reminder.
func (h *NotificationHandler) Resend(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	notification, err := h.service.Resend(c.Request.Context(), userID, strings.TrimSpace(c.Param("id")))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, notification)
}

// Stats returns counts by status.
func (h *NotificationHandler) Stats(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	stats, err := h.service.Stats(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, stats)
}

// Pending lists reminders due within the requested window.
func (h *NotificationHandler) Pending(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	hours := parseIntQuery(c, "hours", 24)
	if hours < 1 || hours > 24*7 {
		hours = 24
	}

	notifications, err := h.service.Pending(c.Request.Context(), userID, time.Duration(hours)*time.Hour)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, notifications)
}
