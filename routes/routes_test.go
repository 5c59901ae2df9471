package routes

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/yashrajoria/tomeshelf/common/auth"
	"github.com/yashrajoria/tomeshelf/common/middleware"
	"github.com/yashrajoria/tomeshelf/controllers"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestEngine(checks map[string]HealthCheck) (*gin.Engine, *auth.TokenVerifier) {
	verifier := auth.NewTokenVerifier("route-secret")
	r := gin.New()
	// Nil services: these tests only hit paths rejected before a handler runs.
	Register(r, Handlers{
		Cart:     controllers.NewCartController(nil, nil),
		Orders:   controllers.NewOrderController(nil, nil),
		Checkout: controllers.NewCheckoutController(nil, nil),
	}, middleware.AuthMiddleware(verifier, nil, false), checks)
	return r, verifier
}

func get(r *gin.Engine, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRoutes_RequireAuth(t *testing.T) {
	r, _ := newTestEngine(nil)
	for _, path := range []string{"/api/cart", "/api/orders", "/api/orders/abc", "/api/admin/orders"} {
		assert.Equal(t, http.StatusUnauthorized, get(r, path, "").Code, path)
	}
}

func TestRoutes_AdminGroup(t *testing.T) {
	r, v := newTestEngine(nil)
	token, err := v.Sign("64f0c0ffee0000000000abcd", "reader", time.Hour)
	require.NoError(t, err)

	assert.Equal(t, http.StatusForbidden, get(r, "/api/admin/orders", token).Code)
}

func TestHealth(t *testing.T) {
	r, _ := newTestEngine(map[string]HealthCheck{
		"mongo": func(context.Context) error { return nil },
	})
	w := get(r, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"OK","service":"tomeshelf","dependencies":{"mongo":"up"}}`, w.Body.String())

	r, _ = newTestEngine(map[string]HealthCheck{
		"redis": func(context.Context) error { return errors.New("refused") },
	})
	w = get(r, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"redis":"down"`)
}
