package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/yashrajoria/tomeshelf/common/auth"
	"github.com/yashrajoria/tomeshelf/models"
	"github.com/yashrajoria/tomeshelf/repository"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fakeUsers struct {
	owners map[primitive.ObjectID]*models.Owner
	err    error
}

func (f *fakeUsers) FindByID(_ context.Context, id primitive.ObjectID) (*models.Owner, error) {
	if f.err != nil {
		return nil, f.err
	}
	if o, ok := f.owners[id]; ok {
		return o, nil
	}
	return nil, repository.ErrNotFound
}

func authRouter(trustGateway bool) (*gin.Engine, *auth.TokenVerifier) {
	return authRouterWithUsers(nil, trustGateway)
}

func authRouterWithUsers(users UserLookup, trustGateway bool) (*gin.Engine, *auth.TokenVerifier) {
	v := auth.NewTokenVerifier("test-secret")
	r := gin.New()
	r.Use(AuthMiddleware(v, users, trustGateway))
	r.GET("/me", func(c *gin.Context) {
		id := GetIdentity(c)
		c.JSON(http.StatusOK, gin.H{"user": GetUserID(c), "role": id.Role})
	})
	r.GET("/admin", AdminOnly(), func(c *gin.Context) { c.Status(http.StatusOK) })
	return r, v
}

func TestAuthMiddleware_BearerToken(t *testing.T) {
	r, v := authRouter(false)
	token, err := v.Sign("64f0c0ffee0000000000abcd", "reader", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := serve(r, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user":"64f0c0ffee0000000000abcd","role":"reader"}`, w.Body.String())
}

func TestAuthMiddleware_Cookie(t *testing.T) {
	r, v := authRouter(false)
	token, err := v.Sign("u-cookie", "", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: token})
	w := serve(r, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "u-cookie")
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	r, _ := authRouter(false)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"User authentication required"}`, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, serve(r, req).Code)

	// gateway headers are ignored unless trusted
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("X-User-ID", "spoofed")
	assert.Equal(t, http.StatusUnauthorized, serve(r, req).Code)
}

func TestAuthMiddleware_TrustedGatewayHeaders(t *testing.T) {
	r, _ := authRouter(true)

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("X-User-ID", "u-admin")
	req.Header.Set("X-User-Role", "admin")
	assert.Equal(t, http.StatusOK, serve(r, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("X-User-ID", "u-reader")
	w := serve(r, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `{"error":"Admin role required"}`, w.Body.String())
}

func TestAuthMiddleware_RoleFromUserStore(t *testing.T) {
	admin := &models.Owner{ID: primitive.NewObjectID(), UserName: "root", Role: models.RoleAdmin}
	reader := &models.Owner{ID: primitive.NewObjectID(), UserName: "ann", Role: models.RoleReader}
	users := &fakeUsers{owners: map[primitive.ObjectID]*models.Owner{admin.ID: admin, reader.ID: reader}}
	r, v := authRouterWithUsers(users, false)

	// tokens from the auth service carry only the id
	token, err := v.Sign(admin.ID.Hex(), "", time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusOK, serve(r, req).Code)

	// a role claim cannot lift a stored reader to admin
	token, err = v.Sign(reader.ID.Hex(), models.RoleAdmin, time.Hour)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusForbidden, serve(r, req).Code)
}

func TestAuthMiddleware_UnknownUser(t *testing.T) {
	users := &fakeUsers{owners: map[primitive.ObjectID]*models.Owner{}}
	r, v := authRouterWithUsers(users, false)

	for _, id := range []string{primitive.NewObjectID().Hex(), "not-an-object-id"} {
		token, err := v.Sign(id, "", time.Hour)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := serve(r, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.JSONEq(t, `{"error":"User not found"}`, w.Body.String())
	}
}

func TestAuthMiddleware_UserStoreDown(t *testing.T) {
	r, v := authRouterWithUsers(&fakeUsers{err: errors.New("no reachable servers")}, false)
	token, err := v.Sign(primitive.NewObjectID().Hex(), "", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusServiceUnavailable, serve(r, req).Code)
}

func TestAuthMiddleware_GatewayHeadersCheckedAgainstStore(t *testing.T) {
	admin := &models.Owner{ID: primitive.NewObjectID(), Role: models.RoleAdmin}
	users := &fakeUsers{owners: map[primitive.ObjectID]*models.Owner{admin.ID: admin}}
	r, _ := authRouterWithUsers(users, true)

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("X-User-ID", admin.ID.Hex())
	assert.Equal(t, http.StatusOK, serve(r, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("X-User-ID", primitive.NewObjectID().Hex())
	req.Header.Set("X-User-Role", models.RoleAdmin)
	assert.Equal(t, http.StatusUnauthorized, serve(r, req).Code)
}
