package handlers

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Script-By-Lin-226/Auth/internal/authn"
	"github.com/Script-By-Lin-226/Auth/internal/models"
	"github.com/Script-By-Lin-226/Auth/internal/token"
)

func TestRegister(t *testing.T) {
	env := newTestEnv(t)

	payload := map[string]string{
		"username": "test_user",
		"email":    "test@example.com",
		"password": "password",
		"role":     "user",
	}
	rec, c := env.doJSONRequest(http.MethodPost, "/api/v1/auth/register", payload)
	require.NoError(t, env.Auth.Register(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var created models.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Equal(t, "test_user", created.Username)
	require.Equal(t, "test@example.com", created.Email)
	require.Equal(t, models.RoleUser, created.Role)
	require.NotEmpty(t, created.ID)

	var stored models.User
	require.NoError(t, env.DB.First(&stored, created.ID).Error)
	require.NotEmpty(t, stored.PasswordHash)
	require.NotEqual(t, "password", stored.PasswordHash)
}

func TestRegisterDuplicateUsername(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "taken", "taken@example.com", "password", models.RoleUser)

	payload := map[string]string{
		"username": "taken",
		"email":    "other@example.com",
		"password": "password",
		"role":     "user",
	}
	_, c := env.doJSONRequest(http.MethodPost, "/api/v1/auth/register", payload)
	requireHTTPError(t, env.Auth.Register(c), http.StatusConflict)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "someone", "taken@example.com", "password", models.RoleUser)

	payload := map[string]string{
		"username": "someone_else",
		"email":    "taken@example.com",
		"password": "password",
		"role":     "user",
	}
	_, c := env.doJSONRequest(http.MethodPost, "/api/v1/auth/register", payload)
	requireHTTPError(t, env.Auth.Register(c), http.StatusConflict)
}

func TestRegisterInvalidRole(t *testing.T) {
	env := newTestEnv(t)

	payload := map[string]string{
		"username": "test_user",
		"email":    "test@example.com",
		"password": "password",
		"role":     "superuser",
	}
	_, c := env.doJSONRequest(http.MethodPost, "/api/v1/auth/register", payload)
	requireHTTPError(t, env.Auth.Register(c), http.StatusBadRequest)
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "test_user", "test@example.com", "password", models.RoleUser)

	payload := map[string]string{"email": "test@example.com", "password": "password"}
	rec, c := env.doJSONRequest(http.MethodPost, "/api/v1/auth/login", payload)
	require.NoError(t, env.Auth.Login(c))
	require.Equal(t, http.StatusOK, rec.Code)

	access := cookieValue(t, rec, authn.AccessCookie)
	refresh := cookieValue(t, rec, authn.RefreshCookie)
	require.NotEmpty(t, cookieValue(t, rec, SessionCookie))

	accessClaims, err := env.Tokens.DecodeKind(access, token.KindAccess)
	require.NoError(t, err)
	accessID, err := accessClaims.UserID()
	require.NoError(t, err)
	require.Equal(t, user.ID, accessID)

	refreshClaims, err := env.Tokens.DecodeKind(refresh, token.KindRefresh)
	require.NoError(t, err)
	refreshID, err := refreshClaims.UserID()
	require.NoError(t, err)
	require.Equal(t, user.ID, refreshID)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, false, resp["is_admin"])
}

func TestLoginWrongPassword(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "test_user", "test@example.com", "password", models.RoleUser)

	payload := map[string]string{"email": "test@example.com", "password": "wrong"}
	_, c := env.doJSONRequest(http.MethodPost, "/api/v1/auth/login", payload)
	requireHTTPError(t, env.Auth.Login(c), http.StatusUnauthorized)
}

func TestLoginUnknownEmail(t *testing.T) {
	env := newTestEnv(t)

	payload := map[string]string{"email": "ghost@example.com", "password": "password"}
	_, c := env.doJSONRequest(http.MethodPost, "/api/v1/auth/login", payload)

	// Unknown email answers exactly like a wrong password.
	err := env.Auth.Login(c)
	requireHTTPError(t, err, http.StatusUnauthorized)
	require.Contains(t, err.Error(), "invalid email or password")
}

func TestRefresh(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "test_user", "test@example.com", "password", models.RoleUser)

	refresh, err := env.Tokens.IssueRefresh(user.ID)
	require.NoError(t, err)

	rec, c := env.doJSONRequest(http.MethodPost, "/api/v1/auth/refresh", nil, withRefreshCookie(refresh))
	require.NoError(t, env.Auth.Refresh(c))
	require.Equal(t, http.StatusOK, rec.Code)

	access := cookieValue(t, rec, authn.AccessCookie)
	claims, err := env.Tokens.DecodeKind(access, token.KindAccess)
	require.NoError(t, err)
	id, err := claims.UserID()
	require.NoError(t, err)
	require.Equal(t, user.ID, id)
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "test_user", "test@example.com", "password", models.RoleUser)

	// A structurally valid access token must not pass where a refresh
	// token is expected.
	access := env.accessToken(t, user.ID)
	_, c := env.doJSONRequest(http.MethodPost, "/api/v1/auth/refresh", nil, withRefreshCookie(access))
	requireHTTPError(t, env.Auth.Refresh(c), http.StatusUnauthorized)
}

func TestRefreshRevoked(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "test_user", "test@example.com", "password", models.RoleUser)

	refresh, err := env.Tokens.IssueRefresh(user.ID)
	require.NoError(t, err)
	env.Auth.RefreshBlacklist.Revoke(refresh)

	_, c := env.doJSONRequest(http.MethodPost, "/api/v1/auth/refresh", nil, withRefreshCookie(refresh))
	requireHTTPError(t, env.Auth.Refresh(c), http.StatusUnauthorized)
}

func TestLogoutRequiresBothCookies(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "test_user", "test@example.com", "password", models.RoleUser)
	access := env.accessToken(t, user.ID)

	_, c := env.doJSONRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	requireHTTPError(t, env.Auth.Logout(c), http.StatusUnauthorized)

	_, c = env.doJSONRequest(http.MethodPost, "/api/v1/auth/logout", nil, withAccessCookie(access))
	requireHTTPError(t, env.Auth.Logout(c), http.StatusUnauthorized)
}

func TestLogoutRevokesPresentedTokens(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "test_user", "test@example.com", "password", models.RoleUser)

	access := env.accessToken(t, user.ID)
	refresh, err := env.Tokens.IssueRefresh(user.ID)
	require.NoError(t, err)

	rec, c := env.doJSONRequest(http.MethodPost, "/api/v1/auth/logout", nil,
		withAccessCookie(access), withRefreshCookie(refresh))
	require.NoError(t, env.Auth.Logout(c))
	require.Equal(t, http.StatusOK, rec.Code)

	require.True(t, env.Auth.AccessBlacklist.IsRevoked(access))
	require.True(t, env.Auth.RefreshBlacklist.IsRevoked(refresh))

	// The revoked-but-unexpired access token no longer resolves.
	_, err = env.Resolver.Resolve(c.Request().Context(), access)
	require.ErrorIs(t, err, authn.ErrUnauthenticated)

	// A different token for the same subject is untouched by design:
	// revocation is exact string match, not subject-wide.
	longer, err := token.NewService(token.Config{
		SecretKey:  "test-secret",
		Algorithm:  "HS256",
		AccessTTL:  30 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
	})
	require.NoError(t, err)
	other, err := longer.IssueAccess(user.ID)
	require.NoError(t, err)
	require.NotEqual(t, access, other)
	_, err = env.Resolver.Resolve(c.Request().Context(), other)
	require.NoError(t, err)
}
