package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AI2HU/gsnweb/internal/config"
	"github.com/AI2HU/gsnweb/internal/db"
	"github.com/AI2HU/gsnweb/internal/gsn"
	"github.com/AI2HU/gsnweb/internal/logger"
	"github.com/AI2HU/gsnweb/internal/metrics"
	"github.com/AI2HU/gsnweb/internal/models"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

// GSNClient is the part of the GSN client the API needs
type GSNClient interface {
	AuthorizeURL(state, redirectURI string) (string, error)
	ExchangeCode(ctx context.Context, code, redirectURI string) (*gsn.TokenResponse, error)
	RefreshToken(ctx context.Context, refreshToken string) (*gsn.TokenResponse, error)
	ServiceToken(ctx context.Context) (string, error)
	InvalidateServiceToken()
	ListSensors(ctx context.Context, accessToken string) (json.RawMessage, error)
	SensorData(ctx context.Context, accessToken, sensor string, q gsn.DataQuery) (json.RawMessage, error)
}

// Server is the HTTP API of the web-UI backend
type Server struct {
	router     *gin.Engine
	db         db.Database
	gsn        GSNClient
	settings   *config.Config
	corsOrigin string
	publicURL  string
	log        *logger.Logger
	now        func() time.Time
}

// NewServer creates the API server. settings must already be validated.
func NewServer(database db.Database, client GSNClient, settings *config.Config, corsOrigin string) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		router:     gin.New(),
		db:         database,
		gsn:        client,
		settings:   settings,
		corsOrigin: corsOrigin,
		log:        logger.Named("api"),
		now:        time.Now,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(gin.Recovery(), s.requestLogger(), s.cors())

	s.router.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/health", s.healthCheck)
		v1.GET("/settings", s.getSettings)

		auth := v1.Group("/auth")
		auth.GET("/login", s.login)
		auth.GET("/callback", s.callback)
		auth.POST("/logout", s.logout)

		v1.GET("/sensors", s.listSensors)
		v1.GET("/sensors/:name/data", s.sensorData)
	}
}

// SetPublicURL sets the address browsers reach this server at, e.g. behind a reverse proxy.
// OAuth2 redirects are built from it instead of the request's Host header.
func (s *Server) SetPublicURL(raw string) error {
	if raw == "" {
		s.publicURL = ""
		return nil
	}
	if err := config.ValidateAbsoluteURL(raw); err != nil {
		return fmt.Errorf("invalid public URL: %w", err)
	}
	s.publicURL = raw
	return nil
}

// Handler returns the HTTP handler of the server
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("%s %s %d %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

func (s *Server) cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.corsOrigin == "" {
			c.Next()
			return
		}
		c.Header("Access-Control-Allow-Origin", s.corsOrigin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if s.corsOrigin != "*" {
			c.Header("Access-Control-Allow-Credentials", "true")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (s *Server) successResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, models.APIResponse{
		Success: true,
		Data:    data,
	})
}

func (s *Server) errorResponse(c *gin.Context, status int, message string) {
	c.JSON(status, models.APIResponse{
		Success: false,
		Error:   message,
	})
}

// healthCheck handles GET /api/v1/health
func (s *Server) healthCheck(c *gin.Context) {
	if err := s.db.Ping(c.Request.Context()); err != nil {
		s.errorResponse(c, http.StatusServiceUnavailable, "Database connection failed")
		return
	}

	s.successResponse(c, map[string]interface{}{
		"status":    "healthy",
		"timestamp": s.now(),
		"version":   Version,
	})
}

// SettingsResponse lists the active configuration keys and values
type SettingsResponse struct {
	Keys   []string               `json:"keys"`
	Values map[string]interface{} `json:"values"`
}

// getSettings handles GET /api/v1/settings
func (s *Server) getSettings(c *gin.Context) {
	values := s.settings.Values()
	if secret, ok := values[config.KeyClientSecret].(string); ok {
		values[config.KeyClientSecret] = config.MaskSecret(secret)
	}

	s.successResponse(c, SettingsResponse{
		Keys:   s.settings.Keys(),
		Values: values,
	})
}
