package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/contextmeet/contextmeet/internal/calendar"
	"github.com/contextmeet/contextmeet/internal/middleware"
	"github.com/contextmeet/contextmeet/internal/models"
	"github.com/contextmeet/contextmeet/internal/services"
	appErrors "github.com/contextmeet/contextmeet/pkg/errors"
	"github.com/contextmeet/contextmeet/pkg/response"
)

// AuthHandler exposes registration, login, and the Google OAuth flow. The
// calendar client is nil when Google credentials are not configured.
type AuthHandler struct {
	service  *services.AuthService
	calendar *calendar.Client
}

// NewAuthHandler constructs an auth handler.
func NewAuthHandler(service *services.AuthService, cal *calendar.Client) *AuthHandler {
	return &AuthHandler{service: service, calendar: cal}
}

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=128"`
	FullName string `json:"full_name" validate:"max=120"`
	Timezone string `json:"timezone" validate:"max=64"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type googleCallbackRequest struct {
	Code string `json:"code" validate:"required"`
}

type profileRequest struct {
	FullName       *string             `json:"full_name" validate:"omitempty,max=120"`
	Timezone       *string             `json:"timezone" validate:"omitempty,max=64"`
	TelegramChatID *string             `json:"telegram_chat_id" validate:"omitempty,max=64"`
	Preferences    *models.Preferences `json:"preferences"`
}

func authPayload(result *services.AuthResult) gin.H {
	return gin.H{
		"user":          result.User,
		"access_token":  result.Tokens.AccessToken,
		"refresh_token": result.Tokens.RefreshToken,
		"expires_in":    result.Tokens.ExpiresIn,
	}
}

// Register creates an account and signs the new user in.
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.service.Register(c.Request.Context(), services.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		Timezone: req.Timezone,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, authPayload(result))
}

// Login verifies credentials and returns a token pair.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.service.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, authPayload(result))
}

// Me returns the authenticated user's profile.
func (h *AuthHandler) Me(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	user, err := h.service.GetUser(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, user)
}

// UpdateMe applies partial profile updates.
func (h *AuthHandler) UpdateMe(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req profileRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.service.UpdateProfile(c.Request.Context(), userID, services.UpdateProfileInput{
		FullName:       req.FullName,
		Timezone:       req.Timezone,
		TelegramChatID: req.TelegramChatID,
		Preferences:    req.Preferences,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, user)
}

// Refresh exchanges a refresh token for a new token pair.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.service.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, authPayload(result))
}

// Logout acknowledges the client discarding its tokens. Tokens are stateless
// so there is nothing to revoke server side.
func (h *AuthHandler) Logout(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{"message": "logged out"})
}

// GoogleURL returns the consent page URL to start the OAuth flow.
func (h *AuthHandler) GoogleURL(c *gin.Context) {
	if h.calendar == nil {
		response.Error(c, appErrors.ErrCalendarNotConnected)
		return
	}

	state := c.Query("state")
	response.Success(c, http.StatusOK, gin.H{"url": h.calendar.AuthURL(state)})
}

// GoogleCallback completes the OAuth flow with the authorization code.
func (h *AuthHandler) GoogleCallback(c *gin.Context) {
	var req googleCallbackRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.service.GoogleCallback(c.Request.Context(), req.Code)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, authPayload(result))
}
