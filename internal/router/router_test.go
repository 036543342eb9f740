package router

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exquiz-backend/internal/config"
	"github.com/stemsi/exquiz-backend/internal/handler"
	"github.com/stemsi/exquiz-backend/internal/model"
	"github.com/stemsi/exquiz-backend/internal/response"
	"github.com/stemsi/exquiz-backend/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (*gin.Engine, *service.AuthService) {
	t.Helper()
	cfg := &config.Config{
		GinMode:    gin.TestMode,
		JWTSecret:  "router-test-secret",
		JWTExpiry:  time.Hour,
		BcryptCost: 4,
	}
	auth := service.NewAuthService(cfg, nil)
	handlers := &Handlers{Auth: handler.NewAuthHandler(auth, zerolog.Nop())}
	return SetupRouter(auth, handlers, cfg), auth
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthAndMetrics(t *testing.T) {
	r, _ := newTestRouter(t)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = serve(r, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "exquiz_http_requests_total")
}

func TestAdminRoutesRequireToken(t *testing.T) {
	r, _ := newTestRouter(t)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/admin/buckets", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), string(response.ErrTokenRequired))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/buckets", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	w = serve(r, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), string(response.ErrTokenInvalid))
}

func TestAdminProfileWithToken(t *testing.T) {
	r, auth := newTestRouter(t)

	token, _, err := auth.GenerateAdminToken(&model.Admin{ID: 7, Email: "ops@example.com"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/admin/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := serve(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ops@example.com")

	// EventSource clients pass the token as a query parameter.
	w = serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/auth/admin/me?token="+token, nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
