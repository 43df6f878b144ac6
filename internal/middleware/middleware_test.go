package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	iauth "github.com/contextmeet/contextmeet/internal/auth"
)

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(handlers...)
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": UserID(c)})
	})
	return r
}

func perform(r *gin.Engine, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthRejectsMissingHeader(t *testing.T) {
	jwt, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "secret"})
	require.NoError(t, err)

	r := newRouter(Auth(jwt))

	w := perform(r, http.MethodGet, "/ping", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = perform(r, http.MethodGet, "/ping", map[string]string{"Authorization": "Token abc"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthAcceptsValidToken(t *testing.T) {
	jwt, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "secret"})
	require.NoError(t, err)

	pair, err := jwt.GenerateTokenPair("user-42", "a@b.com")
	require.NoError(t, err)

	r := newRouter(Auth(jwt))

	w := perform(r, http.MethodGet, "/ping", map[string]string{"Authorization": "Bearer " + pair.AccessToken})
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "user-42")
}

func TestAuthRejectsRefreshTokenOnAPIRoutes(t *testing.T) {
	jwt, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "secret"})
	require.NoError(t, err)

	pair, err := jwt.GenerateTokenPair("user-42", "")
	require.NoError(t, err)

	r := newRouter(Auth(jwt))

	w := perform(r, http.MethodGet, "/ping", map[string]string{"Authorization": "Bearer " + pair.RefreshToken})
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCORSAllowlist(t *testing.T) {
	r := newRouter(CORS([]string{"https://app.contextmeet.io"}))

	w := perform(r, http.MethodGet, "/ping", map[string]string{"Origin": "https://app.contextmeet.io"})
	require.Equal(t, "https://app.contextmeet.io", w.Header().Get("Access-Control-Allow-Origin"))

	w = perform(r, http.MethodGet, "/ping", map[string]string{"Origin": "https://evil.example.com"})
	require.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSPreflight(t *testing.T) {
	r := newRouter(CORS([]string{"*"}))

	w := perform(r, http.MethodOptions, "/ping", map[string]string{"Origin": "https://anywhere.example.com"})
	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, "https://anywhere.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecoveryConvertsPanic(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Recovery())
	r.GET("/boom", func(c *gin.Context) { panic("kaboom") })

	w := perform(r, http.MethodGet, "/boom", nil)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.NotContains(t, w.Body.String(), "kaboom")
}

func TestSecurityHeaders(t *testing.T) {
	r := newRouter(SecurityHeaders())

	w := perform(r, http.MethodGet, "/ping", nil)
	require.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	require.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}

func TestRateLimitBlocksAfterThreshold(t *testing.T) {
	r := newRouter(RateLimit(2, time.Minute))

	require.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/ping", nil).Code)
	require.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/ping", nil).Code)
	require.Equal(t, http.StatusTooManyRequests, perform(r, http.MethodGet, "/ping", nil).Code)
}
