package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/Script-By-Lin-226/Auth/internal/authn"
	"github.com/Script-By-Lin-226/Auth/internal/events"
	"github.com/Script-By-Lin-226/Auth/internal/logging"
	"github.com/Script-By-Lin-226/Auth/internal/models"
	"github.com/Script-By-Lin-226/Auth/internal/search"
	"github.com/Script-By-Lin-226/Auth/internal/util"
)

type PostHandler struct {
	DB       *gorm.DB
	Producer *events.Producer
	ES       *elasticsearch.Client
	Index    string
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}

func (h *PostHandler) publish(c echo.Context, key string, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "post_events", key, event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka_publish_error", "error", err)
	}
}

func (h *PostHandler) Upload(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "post_upload")
	user := authn.Principal(c)

	var req struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("upload_failed", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Title == "" || req.Content == "" {
		l.Warn("upload_failed", "status", 400, "reason", "missing_fields")
		return echo.NewHTTPError(http.StatusBadRequest, "title and content are required")
	}

	post := models.Post{
		Title:   req.Title,
		Content: req.Content,
		Author:  user.Username,
	}
	if err := h.DB.WithContext(ctx).Create(&post).Error; err != nil {
		l.Error("upload_failed", "status", 500, "reason", "db_error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	if h.ES != nil {
		esCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := search.IndexPost(esCtx, h.ES, h.Index, post); err != nil {
			l.Error("index_error", "post_id", post.ID, "error", err)
		}
	}

	h.publish(c, fmt.Sprint(user.ID), map[string]any{
		"type":    "post_created",
		"post_id": post.ID,
		"author":  post.Author,
	})

	l.Info("upload_success", "status", 201, "post_id", post.ID)
	return c.JSON(http.StatusCreated, post)
}

// ListMine returns the acting user's posts, oldest first.
func (h *PostHandler) ListMine(c echo.Context) error {
	ctx := c.Request().Context()
	user := authn.Principal(c)

	posts := []models.Post{}
	if err := h.DB.WithContext(ctx).
		Where("author = ?", user.Username).
		Order("id ASC").
		Find(&posts).Error; err != nil {
		logging.FromContext(ctx).Error("list_posts_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return c.JSON(http.StatusOK, posts)
}

// Feed returns all posts newest first, paginated.
func (h *PostHandler) Feed(c echo.Context) error {
	ctx := c.Request().Context()
	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	var total int64
	if err := h.DB.WithContext(ctx).Model(&models.Post{}).Count(&total).Error; err != nil {
		logging.FromContext(ctx).Error("feed_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	posts := []models.Post{}
	if err := h.DB.WithContext(ctx).
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&posts).Error; err != nil {
		logging.FromContext(ctx).Error("feed_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"data": posts,
		"meta": echo.Map{
			"page":        page,
			"size":        limit,
			"total":       total,
			"total_pages": (total + int64(limit) - 1) / int64(limit),
			"has_prev":    page > 1,
			"has_next":    int64(offset+limit) < total,
		},
	})
}

// Get returns one of the acting user's posts; other authors' posts are 404.
func (h *PostHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()
	user := authn.Principal(c)

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid post id")
	}

	var post models.Post
	err = h.DB.WithContext(ctx).
		Where("id = ? AND author = ?", id, user.Username).
		First(&post).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "post not found")
		}
		logging.FromContext(ctx).Error("get_post_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return c.JSON(http.StatusOK, echo.Map{"post": post})
}

func (h *PostHandler) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "post_delete")
	user := authn.Principal(c)

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid post id")
	}

	var post models.Post
	err = h.DB.WithContext(ctx).
		Where("id = ? AND author = ?", id, user.Username).
		First(&post).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "post not found")
		}
		l.Error("delete_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	if err := h.DB.WithContext(ctx).Delete(&post).Error; err != nil {
		l.Error("delete_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	if h.ES != nil {
		esCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := search.DeletePost(esCtx, h.ES, h.Index, post.ID); err != nil {
			l.Error("index_delete_error", "post_id", post.ID, "error", err)
		}
	}

	h.publish(c, fmt.Sprint(user.ID), map[string]any{
		"type":    "post_deleted",
		"post_id": post.ID,
		"author":  post.Author,
	})

	l.Info("delete_success", "status", 204, "post_id", post.ID)
	return c.NoContent(http.StatusNoContent)
}

// Search queries the post index.
func (h *PostHandler) Search(c echo.Context) error {
	ctx := c.Request().Context()

	query := c.QueryParam("q")
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query parameter q is required")
	}
	if h.ES == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "search is not available")
	}

	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	from, limit := util.Calculate(page, size)

	total, posts, err := search.Posts(ctx, h.ES, h.Index, query, from, limit)
	if err != nil {
		logging.FromContext(ctx).Error("search_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"data": posts,
		"meta": echo.Map{"page": page, "size": limit, "total": total},
	})
}
