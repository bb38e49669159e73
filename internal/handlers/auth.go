package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/Script-By-Lin-226/Auth/internal/authn"
	"github.com/Script-By-Lin-226/Auth/internal/events"
	"github.com/Script-By-Lin-226/Auth/internal/hash"
	"github.com/Script-By-Lin-226/Auth/internal/logging"
	"github.com/Script-By-Lin-226/Auth/internal/models"
	"github.com/Script-By-Lin-226/Auth/internal/revocation"
	"github.com/Script-By-Lin-226/Auth/internal/token"
)

const SessionCookie = "session_id"

type AuthHandler struct {
	DB               *gorm.DB
	Tokens           *token.Service
	AccessBlacklist  revocation.Registry
	RefreshBlacklist revocation.Registry
	Producer         *events.Producer
}

func (h *AuthHandler) publish(c echo.Context, key string, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "user_events", key, event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka_publish_error", "error", err)
	}
}

func (h *AuthHandler) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_register")

	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("register_failed", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		l.Warn("register_failed", "status", 400, "reason", "missing_fields")
		return echo.NewHTTPError(http.StatusBadRequest, "username, email and password are required")
	}
	role, err := models.ParseRole(req.Role)
	if err != nil {
		l.Warn("register_failed", "status", 400, "reason", "invalid_role")
		return echo.NewHTTPError(http.StatusBadRequest, "invalid role")
	}

	var existing models.User
	err = h.DB.WithContext(ctx).
		Where("username = ? OR email = ?", req.Username, req.Email).
		First(&existing).Error
	if err == nil {
		l.Warn("register_failed", "status", 409, "reason", "user_exists")
		return echo.NewHTTPError(http.StatusConflict, "username or email already exists")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		l.Error("register_failed", "status", 500, "reason", "db_error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	pwHash, err := hash.HashPassword(req.Password)
	if err != nil {
		l.Error("register_failed", "status", 500, "reason", "cannot hash the password", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	user := models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: pwHash,
		Role:         role,
	}
	if err := h.DB.WithContext(ctx).Create(&user).Error; err != nil {
		l.Error("register_failed", "status", 500, "reason", "db_error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	h.publish(c, fmt.Sprint(user.ID), map[string]any{
		"type":     "user_registered",
		"user_id":  user.ID,
		"username": user.Username,
	})

	l.Info("register_success", "status", 201, "user_id", user.ID)
	return c.JSON(http.StatusCreated, user)
}

func (h *AuthHandler) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_login")

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("login_failed", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	// Same answer for unknown email and wrong password, so callers cannot
	// enumerate accounts.
	var user models.User
	if err := h.DB.WithContext(ctx).Where("email = ?", req.Email).First(&user).Error; err != nil {
		l.Warn("login_failed", "status", 401, "reason", "invalid email or password")
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid email or password")
	}
	if !hash.CheckPassword(user.PasswordHash, req.Password) {
		l.Warn("login_failed", "status", 401, "reason", "invalid email or password")
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid email or password")
	}

	accessToken, err := h.Tokens.IssueAccess(user.ID)
	if err != nil {
		l.Error("login_failed", "status", 500, "reason", "cannot create token", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot create token")
	}
	refreshToken, err := h.Tokens.IssueRefresh(user.ID)
	if err != nil {
		l.Error("login_failed", "status", 500, "reason", "cannot create token", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot create token")
	}

	now := time.Now()
	c.SetCookie(CreateCookie(authn.AccessCookie, accessToken, "/", now.Add(h.Tokens.AccessTTL())))
	c.SetCookie(CreateCookie(authn.RefreshCookie, refreshToken, "/", now.Add(h.Tokens.RefreshTTL())))

	// Informational session marker; authentication rests on the tokens.
	sessionID := uuid.NewString()
	c.SetCookie(CreateCookie(SessionCookie, sessionID, "/", now.Add(h.Tokens.RefreshTTL())))

	h.publish(c, fmt.Sprint(user.ID), map[string]any{
		"type":     "user_logged_in",
		"user_id":  user.ID,
		"username": user.Username,
	})

	l.Info("login_success", "user_id", user.ID, "session_id", sessionID)
	return c.JSON(http.StatusOK, echo.Map{
		"message":  "login successful",
		"is_admin": user.Role == models.RoleAdmin,
	})
}

// Refresh mints a fresh access token from a valid refresh token cookie.
func (h *AuthHandler) Refresh(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_refresh")

	cookie, err := c.Cookie(authn.RefreshCookie)
	if err != nil || cookie.Value == "" {
		l.Warn("refresh_failed", "status", 401, "reason", "missing_refresh_cookie")
		return echo.NewHTTPError(http.StatusUnauthorized, "could not validate credentials")
	}

	claims, err := h.Tokens.DecodeKind(cookie.Value, token.KindRefresh)
	if err != nil {
		l.Warn("refresh_failed", "status", 401, "reason", "invalid_refresh_token", "error", err)
		return echo.NewHTTPError(http.StatusUnauthorized, "could not validate credentials")
	}
	if h.RefreshBlacklist.IsRevoked(cookie.Value) {
		l.Warn("refresh_failed", "status", 401, "reason", "refresh_token_revoked")
		return echo.NewHTTPError(http.StatusUnauthorized, "could not validate credentials")
	}
	userID, err := claims.UserID()
	if err != nil {
		l.Warn("refresh_failed", "status", 401, "reason", "bad_subject", "error", err)
		return echo.NewHTTPError(http.StatusUnauthorized, "could not validate credentials")
	}
	var user models.User
	if err := h.DB.WithContext(ctx).First(&user, userID).Error; err != nil {
		l.Warn("refresh_failed", "status", 401, "reason", "unknown_user")
		return echo.NewHTTPError(http.StatusUnauthorized, "could not validate credentials")
	}

	accessToken, err := h.Tokens.IssueAccess(user.ID)
	if err != nil {
		l.Error("refresh_failed", "status", 500, "reason", "cannot create token", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot create token")
	}
	c.SetCookie(CreateCookie(authn.AccessCookie, accessToken, "/", time.Now().Add(h.Tokens.AccessTTL())))

	l.Info("refresh_success", "user_id", user.ID)
	return c.JSON(http.StatusOK, echo.Map{"message": "token refreshed"})
}

// Logout blacklists the exact token strings presented with the request and
// clears the cookies. Both tokens must be present.
func (h *AuthHandler) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_logout")

	accessCookie, err := c.Cookie(authn.AccessCookie)
	if err != nil || accessCookie.Value == "" {
		l.Warn("logout_failed", "status", 401, "reason", "missing_access_cookie")
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}
	refreshCookie, err := c.Cookie(authn.RefreshCookie)
	if err != nil || refreshCookie.Value == "" {
		l.Warn("logout_failed", "status", 401, "reason", "missing_refresh_cookie")
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}

	h.AccessBlacklist.Revoke(accessCookie.Value)
	h.RefreshBlacklist.Revoke(refreshCookie.Value)

	c.SetCookie(DeleteCookie(authn.AccessCookie, "/"))
	c.SetCookie(DeleteCookie(authn.RefreshCookie, "/"))
	c.SetCookie(DeleteCookie(SessionCookie, "/"))

	l.Info("logout_success")
	return c.JSON(http.StatusOK, echo.Map{"message": "logout successful"})
}
