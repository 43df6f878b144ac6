package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/contextmeet/contextmeet/internal/middleware"
	"github.com/contextmeet/contextmeet/internal/services"
	appErrors "github.com/contextmeet/contextmeet/pkg/errors"
	"github.com/contextmeet/contextmeet/pkg/response"
)

// ContextHandler exposes HTTP endpoints for meeting briefs.
type ContextHandler struct {
	service *services.ContextService
}

// NewContextHandler constructs a context handler.
func NewContextHandler(service *services.ContextService) *ContextHandler {
	return &ContextHandler{service: service}
}

type generateRequest struct {
	Force bool `json:"force"`
}

type batchGenerateRequest struct {
	MeetingIDs []string `json:"meeting_ids" validate:"required,min=1,max=20"`
	Force      bool     `json:"force"`
}

type contextUpdateRequest struct {
	AIBrief              *string           `json:"ai_brief" validate:"omitempty,max=10000"`
	KeyTopics            *[]string         `json:"key_topics"`
	PreparationChecklist *[]string         `json:"preparation_checklist"`
	SuggestedAgenda      *[]string         `json:"suggested_agenda"`
	Notes                map[string]string `json:"notes"`
}

// Get returns the brief for a meeting.
func (h *ContextHandler) Get(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	mc, err := h.service.GetByMeeting(c.Request.Context(), userID, strings.TrimSpace(c.Param("meetingId")))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, mc)
}

// Generate builds the brief for a meeting. Passing force regenerates an
// existing brief.
func (h *ContextHandler) Generate(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req generateRequest
	if c.Request.ContentLength > 0 && !bindAndValidate(c, &req) {
		return
	}

	mc, err := h.service.Generate(c.Request.Context(), userID, strings.TrimSpace(c.Param("meetingId")), req.Force)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, mc)
}

// Update applies user edits to a brief.
func (h *ContextHandler) Update(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req contextUpdateRequest
	if !bindAndValidate(c, &req) {
		return
	}

	mc, err := h.service.Update(c.Request.Context(), userID, strings.TrimSpace(c.Param("meetingId")), services.ContextUpdateInput{
		AIBrief:              req.AIBrief,
		KeyTopics:            req.KeyTopics,
		PreparationChecklist: req.PreparationChecklist,
		SuggestedAgenda:      req.SuggestedAgenda,
		Notes:                req.Notes,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, mc)
}

// Delete removes the brief for a meeting.
func (h *ContextHandler) Delete(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.Delete(c.Request.Context(), userID, strings.TrimSpace(c.Param("meetingId"))); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// Recent lists the newest briefs.
func (h *ContextHandler) Recent(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	contexts, err := h.service.Recent(c.Request.Context(), userID, parseIntQuery(c, "limit", 10))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, contexts)
}

// GenerateBatch builds briefs for several meetings in one call. Individual
// failures are reported per item rather than failing the request.
func (h *ContextHandler) GenerateBatch(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req batchGenerateRequest
	if !bindAndValidate(c, &req) {
		return
	}

	results, _ := h.service.GenerateBatch(c.Request.Context(), userID, req.MeetingIDs, req.Force)
	response.Success(c, http.StatusOK, results)
}
