package httpserver

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/Script-By-Lin-226/Auth/internal/authn"
	"github.com/Script-By-Lin-226/Auth/internal/handlers"
	"github.com/Script-By-Lin-226/Auth/internal/models"
)

type Deps struct {
	AuthHandler  *handlers.AuthHandler
	PostHandler  *handlers.PostHandler
	AdminHandler *handlers.AdminHandler
	Resolver     *authn.Resolver

	// LoginRatePerMin caps login attempts per client IP. Zero means the
	// default of 5.
	LoginRatePerMin int
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	v1 := e.Group("/api/v1")

	auth := v1.Group("/auth")
	auth.POST("/register", d.AuthHandler.Register)
	auth.POST("/login", d.AuthHandler.Login, loginLimiter(d.LoginRatePerMin))
	auth.POST("/refresh", d.AuthHandler.Refresh)
	auth.POST("/logout", d.AuthHandler.Logout)

	posts := v1.Group("/posts", d.Resolver.RequireSession)
	posts.POST("", d.PostHandler.Upload)
	posts.GET("", d.PostHandler.ListMine)
	posts.GET("/feed", d.PostHandler.Feed)
	posts.GET("/search", d.PostHandler.Search)
	posts.GET("/:id", d.PostHandler.Get)
	posts.DELETE("/:id", d.PostHandler.Delete)

	admin := v1.Group("/admin", d.Resolver.RequireRole(models.RoleAdmin))
	admin.GET("/users", d.AdminHandler.ListUsers)
	admin.GET("/users/:username", d.AdminHandler.GetUser)
	admin.PATCH("/users/:username", d.AdminHandler.UpdateUser)
}

// loginLimiter throttles login attempts per client IP. Exceeding the quota
// answers 429, distinct from the 401 a bad credential gets.
func loginLimiter(perMin int) echo.MiddlewareFunc {
	if perMin <= 0 {
		perMin = 5
	}
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(float64(perMin) / 60.0),
		Burst:     perMin,
		ExpiresIn: 3 * time.Minute,
	})
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusForbidden, "cannot identify client")
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return echo.NewHTTPError(http.StatusTooManyRequests, "too many login attempts")
		},
	})
}
