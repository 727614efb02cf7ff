// Package server is the HTTP surface of linkd: authentication, routing,
// the JSON error envelope, and request instrumentation around the
// catalog, recommendation, audit, and metrics services.
package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/linkd/internal/audit"
	"github.com/fyrsmithlabs/linkd/internal/catalog"
	"github.com/fyrsmithlabs/linkd/internal/config"
	"github.com/fyrsmithlabs/linkd/internal/ingest"
	"github.com/fyrsmithlabs/linkd/internal/meta"
	"github.com/fyrsmithlabs/linkd/internal/recommend"
	"github.com/fyrsmithlabs/linkd/internal/seo"
)

// healthCheckTimeout bounds the vector index probe on /api/health.
const healthCheckTimeout = 5 * time.Second

// Options wires the server to its services.
type Options struct {
	Config config.ServerConfig
	Logger *zap.Logger

	Store     catalog.Store
	Lister    catalog.Lister
	Ingest    *ingest.Service
	Recommend *recommend.Service
	Audit     *audit.Service
	Meta      *meta.Service
	SEO       *seo.Cache

	LLMConfigured        bool
	EmbeddingsConfigured bool
}

// Server is the linkd HTTP API.
type Server struct {
	echo   *echo.Echo
	logger *zap.Logger
	opts   Options
}

// NewServer builds the echo instance with middleware and routes.
func NewServer(opts Options) (*Server, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Store == nil {
		return nil, errors.New("catalog store is required")
	}
	if !opts.Config.SecretKey.IsSet() {
		return nil, errors.New("secret key is required")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{echo: e, logger: opts.Logger, opts: opts}
	e.HTTPErrorHandler = s.handleError

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{opts.Config.AllowedOrigin},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization},
	}))
	e.Use(s.requestLogger())
	e.Use(NewHTTPMetrics(opts.Logger).Middleware())
	e.Use(s.auth())

	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	e := s.echo

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/api/health", s.handleHealth)

	e.POST("/api/catalog-sync", s.handleCatalogSync)
	e.DELETE("/api/catalog-sync", s.handleCatalogDelete)
	e.POST("/api/catalog-sync-batch", s.handleCatalogSyncBatch)

	e.POST("/api/smart-link", s.handleSmartLink)
	e.POST("/api/link-audit", s.handleLinkAudit)
	e.POST("/api/meta-generate", s.handleMetaGenerate)

	e.GET("/api/dismiss-opportunity", s.handleDismissGet)
	e.POST("/api/dismiss-opportunity", s.handleDismissPost)
	e.DELETE("/api/dismiss-opportunity", s.handleDismissDelete)

	e.GET("/api/seo-metrics", s.handleSEOMetrics)
	e.POST("/api/seo-metrics", s.handleSEOMetrics)
	e.GET("/api/catalog-stats", s.handleCatalogStats)
}

// auth returns bearer-token middleware. The health and metrics endpoints
// stay open so probes and scrapers need no credentials.
func (s *Server) auth() echo.MiddlewareFunc {
	secret := []byte(s.opts.Config.SecretKey.Value())
	return middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
		KeyLookup:  "header:" + echo.HeaderAuthorization,
		AuthScheme: "Bearer",
		Skipper: func(c echo.Context) bool {
			p := c.Path()
			return p == "/api/health" || p == "/metrics"
		},
		Validator: func(key string, c echo.Context) (bool, error) {
			return subtle.ConstantTimeCompare([]byte(key), secret) == 1, nil
		},
		ErrorHandler: func(err error, c echo.Context) error {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing or invalid bearer token")
		},
	})
}

func (s *Server) requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			s.logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return err
		}
	}
}

// errorEnvelope is the uniform error body.
type errorEnvelope struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// handleError renders every error as the JSON envelope. Unexpected errors
// surface as 500 without leaking internals beyond the message string.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		message = fmt.Sprint(he.Message)
	}

	if code >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("uri", c.Request().RequestURI),
			zap.Int("status", code),
			zap.Error(err))
	}

	label := errorLabel(code)
	env := errorEnvelope{Error: label}
	if message != "" && !strings.EqualFold(message, label) {
		env.Message = message
	}
	if writeErr := c.JSON(code, env); writeErr != nil {
		s.logger.Error("writing error response failed", zap.Error(writeErr))
	}
}

func errorLabel(code int) string {
	switch code {
	case http.StatusBadRequest:
		return "Validation failed"
	case http.StatusUnauthorized:
		return "Unauthorized"
	case http.StatusNotFound:
		return "Not found"
	case http.StatusMethodNotAllowed:
		return "Method not allowed"
	case http.StatusInternalServerError:
		return "Internal server error"
	default:
		return http.StatusText(code)
	}
}

// Echo exposes the router for tests.
func (s *Server) Echo() *echo.Echo { return s.echo }

// Start blocks serving HTTP until Shutdown or a listener error.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.opts.Config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
