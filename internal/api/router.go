package api

import (
	"fmt"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/rapidrecall/dashboard/docs"
	"github.com/rapidrecall/dashboard/internal/api/handler"
	"github.com/rapidrecall/dashboard/internal/api/middleware"
)

// Dependencies are the collaborators the HTTP surface is built from.
type Dependencies struct {
	Sessions  middleware.Sessions
	Cookie    middleware.CookieOptions
	Log       zerolog.Logger
	Auth      *handler.AuthHandler
	Pages     *handler.PageHandler
	Recalls   *handler.RecallHandler
	Users     *handler.UserHandler
	Documents *handler.DocumentHandler
	Session   *handler.SessionHandler
	Readiness *handler.ReadinessHandler
	// UploadMaxBytes caps a document's size; the request body may exceed it by
	// multipartOverhead. Zero disables the cap.
	UploadMaxBytes int64
}

const multipartOverhead = 64 << 10

// pageRoutes are served by the route guard. Unknown paths are redirected by
// the guard rather than answered with 404.
var pageRoutes = []string{
	"/",
	"/documents",
	"/recalls",
	"/settings",
	"/admin",
	"/admin/*",
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Dependencies) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Log)

	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(deps.Log))
	e.Use(echoprometheus.NewMiddleware("dashboard"))

	e.GET("/health", handler.NewHealthHandler().Liveness)
	e.GET("/health/ready", deps.Readiness.Readiness)
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	e.GET("/auth/login", deps.Auth.Login)
	e.GET("/auth/callback", deps.Auth.Callback)
	e.POST("/auth/logout", deps.Auth.Logout)

	session := middleware.Session(deps.Sessions, deps.Cookie, deps.Log)

	pages := e.Group("", session, middleware.Guard())
	for _, p := range pageRoutes {
		pages.GET(p, deps.Pages.Render)
	}
	pages.RouteNotFound("/*", deps.Pages.Render)

	api := e.Group("/api", session, middleware.RequireIdentity())
	api.GET("/session", deps.Session.Get)

	api.GET("/recalls", deps.Recalls.List)
	api.PUT("/recalls/:id/acknowledge", deps.Recalls.Acknowledge)
	api.PUT("/recalls/:id/unacknowledge", deps.Recalls.Unacknowledge)
	api.PUT("/recalls/:id/review", deps.Recalls.Review)
	api.PUT("/recalls/:id/unreview", deps.Recalls.Unreview)
	api.PUT("/recalls/:id/classification", deps.Recalls.Classify)

	api.GET("/users", deps.Users.List)
	api.POST("/users/:uid/role", deps.Users.SetRole)

	api.GET("/documents", deps.Documents.History)
	api.POST("/documents", deps.Documents.Upload, uploadBodyLimit(deps.UploadMaxBytes))
	api.RouteNotFound("/*", func(echo.Context) error { return echo.ErrNotFound })

	return e
}

// uploadBodyLimit rejects document uploads larger than maxBytes with 413
// before the multipart body is parsed.
func uploadBodyLimit(maxBytes int64) echo.MiddlewareFunc {
	if maxBytes <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return echomiddleware.BodyLimit(fmt.Sprintf("%dB", maxBytes+multipartOverhead))
}

// requestLogger logs one line per request through zerolog.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			evt := log.Info()
			if v.Error != nil {
				evt = log.Warn().Err(v.Error)
			}
			evt.
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}
