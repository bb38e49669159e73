package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/Script-By-Lin-226/Auth/internal/authn"
	"github.com/Script-By-Lin-226/Auth/internal/hash"
	"github.com/Script-By-Lin-226/Auth/internal/logging"
	"github.com/Script-By-Lin-226/Auth/internal/models"
)

// AdminHandler serves the admin panel. Routes are mounted behind
// RequireRole(admin); the role-update path re-checks the acting principal
// on its own so a relaxed route gate cannot silently open role mutation.
type AdminHandler struct {
	DB *gorm.DB
}

func (h *AdminHandler) ListUsers(c echo.Context) error {
	ctx := c.Request().Context()

	users := []models.User{}
	if err := h.DB.WithContext(ctx).Order("id ASC").Find(&users).Error; err != nil {
		logging.FromContext(ctx).Error("list_users_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return c.JSON(http.StatusOK, users)
}

func (h *AdminHandler) GetUser(c echo.Context) error {
	ctx := c.Request().Context()

	var user models.User
	err := h.DB.WithContext(ctx).
		Where("username = ?", c.Param("username")).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "user not found")
		}
		logging.FromContext(ctx).Error("get_user_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return c.JSON(http.StatusOK, user)
}

// UpdateUser applies a partial update to the target user. Empty fields are
// left untouched; a role change requires the acting principal to be admin.
func (h *AdminHandler) UpdateUser(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin_update_user")

	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("update_failed", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	var target models.User
	err := h.DB.WithContext(ctx).
		Where("username = ?", c.Param("username")).
		First(&target).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			l.Warn("update_failed", "status", 404, "reason", "user_not_found")
			return echo.NewHTTPError(http.StatusNotFound, "user not found")
		}
		l.Error("update_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	if req.Username != "" {
		target.Username = req.Username
	}
	if req.Email != "" {
		target.Email = req.Email
	}
	if req.Password != "" {
		pwHash, err := hash.HashPassword(req.Password)
		if err != nil {
			l.Error("update_failed", "status", 500, "reason", "cannot hash the password", "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
		}
		target.PasswordHash = pwHash
	}
	if req.Role != "" {
		actor := authn.Principal(c)
		if actor == nil || actor.Role != models.RoleAdmin {
			l.Warn("update_failed", "status", 403, "reason", "role_change_denied")
			return echo.NewHTTPError(http.StatusForbidden, "only admin can update roles")
		}
		role, err := models.ParseRole(req.Role)
		if err != nil {
			l.Warn("update_failed", "status", 400, "reason", "invalid_role")
			return echo.NewHTTPError(http.StatusBadRequest, "invalid role")
		}
		target.Role = role
	}

	if err := h.DB.WithContext(ctx).Save(&target).Error; err != nil {
		l.Error("update_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	l.Info("update_success", "user_id", target.ID)
	return c.JSON(http.StatusOK, echo.Map{
		"message": "update success",
		"user":    target,
	})
}
