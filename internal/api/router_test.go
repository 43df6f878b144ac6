package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/contextmeet/contextmeet/internal/ai"
	iauth "github.com/contextmeet/contextmeet/internal/auth"
	"github.com/contextmeet/contextmeet/internal/database/testutil"
	"github.com/contextmeet/contextmeet/internal/handlers"
	"github.com/contextmeet/contextmeet/internal/services"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	jwt, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "test-secret", Issuer: "contextmeet-test"})
	require.NoError(t, err)

	authSvc, err := services.NewAuthService(db, jwt, nil, testKey)
	require.NoError(t, err)
	meetingSvc, err := services.NewMeetingService(db)
	require.NoError(t, err)
	contextSvc, err := services.NewContextService(db, ai.NewGenerator(ai.NewClient(ai.Config{Enabled: false})))
	require.NoError(t, err)
	notificationSvc, err := services.NewNotificationService(db)
	require.NoError(t, err)

	router, err := NewRouter(Options{
		DB:            db,
		JWT:           jwt,
		Auth:          handlers.NewAuthHandler(authSvc, nil),
		Meetings:      handlers.NewMeetingHandler(meetingSvc, authSvc, contextSvc, notificationSvc, nil),
		Contexts:      handlers.NewContextHandler(contextSvc),
		Notifications: handlers.NewNotificationHandler(notificationSvc, authSvc, meetingSvc),
		HealthEnabled: true,
	})
	require.NoError(t, err)
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func registerAndLogin(t *testing.T, router *gin.Engine) string {
	t.Helper()

	w := doJSON(t, router, http.MethodPost, "/api/auth/register", "", gin.H{
		"email":    "alex@example.com",
		"password": "hunter2hunter2",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var payload struct {
		AccessToken string `json:"access_token"`
	}
	env := decodeEnvelope(t, w)
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	require.NotEmpty(t, payload.AccessToken)
	return payload.AccessToken
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(t)
	w := doJSON(t, router, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, decodeEnvelope(t, w).Success)
}

func TestNoRouteReturnsJSON404(t *testing.T) {
	router := newTestRouter(t)
	w := doJSON(t, router, http.MethodGet, "/api/nope", "", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	env := decodeEnvelope(t, w)
	require.False(t, env.Success)
	require.NotNil(t, env.Error)
}

func TestAuthFlowOverHTTP(t *testing.T) {
	router := newTestRouter(t)
	token := registerAndLogin(t, router)

	w := doJSON(t, router, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var user struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	env := decodeEnvelope(t, w)
	require.NoError(t, json.Unmarshal(env.Data, &user))
	require.Equal(t, "alex@example.com", user.Email)
	// The password hash never leaves the API.
	require.Empty(t, user.Password)

	w = doJSON(t, router, http.MethodGet, "/api/auth/me", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, router, http.MethodPost, "/api/auth/login", "", gin.H{
		"email":    "alex@example.com",
		"password": "wrong",
	})
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRegisterValidation(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/auth/register", "", gin.H{
		"email":    "not-an-email",
		"password": "short",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.False(t, decodeEnvelope(t, w).Success)
}

func TestMeetingCRUDOverHTTP(t *testing.T) {
	router := newTestRouter(t)
	token := registerAndLogin(t, router)

	start := time.Now().UTC().Add(2 * time.Hour).Truncate(time.Second)
	w := doJSON(t, router, http.MethodPost, "/api/meetings", token, gin.H{
		"title":      "Design Review",
		"start_time": start.Format(time.RFC3339),
		"attendees":  []string{"sam@example.com"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var meeting struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	}
	env := decodeEnvelope(t, w)
	require.NoError(t, json.Unmarshal(env.Data, &meeting))
	require.NotEmpty(t, meeting.ID)

	w = doJSON(t, router, http.MethodGet, "/api/meetings/"+meeting.ID, token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodPatch, "/api/meetings/"+meeting.ID, token, gin.H{
		"title": "Design Review (moved)",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/meetings?upcoming=true", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodDelete, "/api/meetings/"+meeting.ID, token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/meetings/"+meeting.ID, token, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestContextEndpointsOverHTTP(t *testing.T) {
	router := newTestRouter(t)
	token := registerAndLogin(t, router)

	start := time.Now().UTC().Add(2 * time.Hour).Truncate(time.Second)
	w := doJSON(t, router, http.MethodPost, "/api/meetings", token, gin.H{
		"title":      "Planning",
		"start_time": start.Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var meeting struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &meeting))

	// Generation is disabled in this fixture, so the brief degrades to the
	// template fallback instead of erroring.
	w = doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/contexts/meeting/%s/generate", meeting.ID), token, gin.H{"force": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var mc struct {
		ConfidenceScore int    `json:"confidence_score"`
		AIBrief         string `json:"ai_brief"`
	}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &mc))
	require.Equal(t, ai.ConfidenceFallback, mc.ConfidenceScore)
	require.NotEmpty(t, mc.AIBrief)

	w = doJSON(t, router, http.MethodPatch, "/api/contexts/meeting/"+meeting.ID, token, gin.H{
		"ai_brief": "Edited",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/contexts/recent", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodDelete, "/api/contexts/meeting/"+meeting.ID, token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/contexts/meeting/"+meeting.ID, token, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestNotificationEndpointsOverHTTP(t *testing.T) {
	router := newTestRouter(t)
	token := registerAndLogin(t, router)

	start := time.Now().UTC().Add(3 * time.Hour).Truncate(time.Second)
	w := doJSON(t, router, http.MethodPost, "/api/meetings", token, gin.H{
		"title":      "Client Call",
		"start_time": start.Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var meeting struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &meeting))

	w = doJSON(t, router, http.MethodPost, "/api/notifications", token, gin.H{
		"meeting_id":     meeting.ID,
		"channel":        "email",
		"scheduled_time": start.Add(-30 * time.Minute).Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var notification struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &notification))

	w = doJSON(t, router, http.MethodPost, "/api/notifications", token, gin.H{
		"meeting_id":     meeting.ID,
		"channel":        "email",
		"scheduled_time": start.Add(-400 * time.Hour).Format(time.RFC3339),
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/notifications?status=scheduled", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodPost, "/api/notifications/"+notification.ID+"/cancel", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodPost, "/api/notifications/"+notification.ID+"/cancel", token, nil)
	require.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, router, http.MethodPost, "/api/notifications/"+notification.ID+"/resend", token, nil)
	require.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/notifications/stats", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
}
