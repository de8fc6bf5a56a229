package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"english_edu_backend/internal/config"
	"english_edu_backend/internal/model"
	"english_edu_backend/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAuthConfig() *config.Config {
	cfg := &config.Config{}
	cfg.JWT.Secret = "test-secret"
	return cfg
}

func testToken(t *testing.T, cfg *config.Config) string {
	t.Helper()
	user := &model.User{Email: "student@example.com", Role: model.Student}
	user.ID = 42
	token, err := util.GenerateJWT(user, cfg.JWT.Secret, time.Hour)
	require.NoError(t, err)
	return token
}

func claimsRouter(cfg *config.Config, mw gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/whoami", mw, func(c *gin.Context) {
		if claims := util.GetUserFromContext(c); claims != nil {
			c.JSON(http.StatusOK, gin.H{"userId": claims.UserID})
			return
		}
		c.JSON(http.StatusOK, gin.H{"userId": 0})
	})
	return router
}

func TestAuthMiddlewareRejectsAnonymous(t *testing.T) {
	cfg := testAuthConfig()
	router := claimsRouter(cfg, AuthMiddleware(cfg))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddlewareAcceptsBearerToken(t *testing.T) {
	cfg := testAuthConfig()
	router := claimsRouter(cfg, AuthMiddleware(cfg))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+testToken(t, cfg))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"userId":42`)
}

func TestTryAuthMiddlewareAllowsAnonymous(t *testing.T) {
	cfg := testAuthConfig()
	router := claimsRouter(cfg, TryAuthMiddleware(cfg))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"userId":0`)
}

func TestTryAuthMiddlewareAttachesClaims(t *testing.T) {
	cfg := testAuthConfig()
	router := claimsRouter(cfg, TryAuthMiddleware(cfg))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+testToken(t, cfg))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"userId":42`)
}

func TestTryAuthMiddlewareIgnoresGarbageToken(t *testing.T) {
	cfg := testAuthConfig()
	router := claimsRouter(cfg, TryAuthMiddleware(cfg))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer not.a.token")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"userId":0`)
}
