package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Script-By-Lin-226/Auth/internal/authn"
	"github.com/Script-By-Lin-226/Auth/internal/events"
	"github.com/Script-By-Lin-226/Auth/internal/hash"
	"github.com/Script-By-Lin-226/Auth/internal/models"
	"github.com/Script-By-Lin-226/Auth/internal/revocation"
	"github.com/Script-By-Lin-226/Auth/internal/token"
)

type testEnv struct {
	E        *echo.Echo
	DB       *gorm.DB
	Tokens   *token.Service
	Resolver *authn.Resolver
	Auth     *AuthHandler
	Posts    *PostHandler
	Admin    *AdminHandler
}

func initTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Post{}))
	return db
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := initTestDB(t)

	tokens, err := token.NewService(token.Config{
		SecretKey:  "test-secret",
		Algorithm:  "HS256",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
	})
	require.NoError(t, err)

	accessBlacklist := revocation.NewMemoryRegistry()
	refreshBlacklist := revocation.NewMemoryRegistry()

	return &testEnv{
		E:        echo.New(),
		DB:       db,
		Tokens:   tokens,
		Resolver: &authn.Resolver{DB: db, Tokens: tokens, Revoked: accessBlacklist},
		Auth: &AuthHandler{
			DB:               db,
			Tokens:           tokens,
			AccessBlacklist:  accessBlacklist,
			RefreshBlacklist: refreshBlacklist,
			Producer:         &events.Producer{},
		},
		Posts: &PostHandler{DB: db, Producer: &events.Producer{}, Index: "post"},
		Admin: &AdminHandler{DB: db},
	}
}

func (env *testEnv) createUser(t *testing.T, username, email, password string, role models.Role) models.User {
	t.Helper()
	pwHash, err := hash.HashPassword(password)
	require.NoError(t, err)
	user := models.User{
		Username:     username,
		Email:        email,
		PasswordHash: pwHash,
		Role:         role,
	}
	require.NoError(t, env.DB.Create(&user).Error)
	return user
}

func (env *testEnv) accessToken(t *testing.T, userID uint) string {
	t.Helper()
	raw, err := env.Tokens.IssueAccess(userID)
	require.NoError(t, err)
	return raw
}

type reqOption func(*http.Request)

func withAccessCookie(raw string) reqOption {
	return func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: authn.AccessCookie, Value: raw})
	}
}

func withRefreshCookie(raw string) reqOption {
	return func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: authn.RefreshCookie, Value: raw})
	}
}

func (env *testEnv) doJSONRequest(method, path string, payload any, opts ...reqOption) (*httptest.ResponseRecorder, echo.Context) {
	var body []byte
	if payload != nil {
		body, _ = json.Marshal(payload)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for _, opt := range opts {
		opt(req)
	}
	rec := httptest.NewRecorder()
	c := env.E.NewContext(req, rec)
	return rec, c
}

func cookieValue(t *testing.T, rec *httptest.ResponseRecorder, name string) string {
	t.Helper()
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == name {
			return cookie.Value
		}
	}
	t.Fatalf("cookie %q not set", name)
	return ""
}

func requireHTTPError(t *testing.T, err error, code int) {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError, got %v", err)
	require.Equal(t, code, he.Code)
}
