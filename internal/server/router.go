package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/MarcoPoloResearchLab/dharma/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/dharma/backend/internal/content"
	"github.com/MarcoPoloResearchLab/dharma/backend/internal/metrics"
	"github.com/MarcoPoloResearchLab/dharma/backend/internal/web"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var (
	errMissingAdminGate      = errors.New("admin gate dependency required")
	errMissingContentService = errors.New("content service dependency required")
)

// Dependencies lists the collaborators of the HTTP surface.
type Dependencies struct {
	AdminGate      *auth.AdminGate
	ContentService *content.Service
	Metrics        *metrics.Collector
	Logger         *zap.Logger
	AllowedOrigins []string
	CookieSecure   bool
}

// NewHTTPHandler builds the gin engine serving the API and the embedded UI.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.AdminGate == nil {
		return nil, errMissingAdminGate
	}
	if deps.ContentService == nil {
		return nil, errMissingContentService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware(deps.AllowedOrigins...))
	router.Use(observeRequests(logger, deps.Metrics))

	handler := &httpHandler{
		gate:           deps.AdminGate,
		contentService: deps.ContentService,
		metrics:        deps.Metrics,
		logger:         logger,
		cookieSecure:   deps.CookieSecure,
	}

	router.GET("/healthz", handler.handleHealth)
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	router.POST("/admin/login", handler.handleLogin)
	router.POST("/admin/logout", handler.handleLogout)
	router.GET("/admin/me", handler.handleMe)

	router.GET("/links", handler.handleListLinks)
	router.GET("/progress", handler.handleListProgress)
	router.POST("/progress", handler.handleProgressAction)
	router.GET("/progress/stats", handler.handleProgressStats)

	protected := router.Group("/links")
	protected.Use(handler.requireAdmin)
	protected.POST("", handler.handleCreateLink)
	protected.PUT("/:id", handler.handleUpdateLink)
	protected.DELETE("/:id", handler.handleDeleteLink)

	if err := web.Register(router); err != nil {
		return nil, err
	}

	return router, nil
}

type httpHandler struct {
	gate           *auth.AdminGate
	contentService *content.Service
	metrics        *metrics.Collector
	logger         *zap.Logger
	cookieSecure   bool
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// corsMiddleware allows every origin without credentials when no origins are
// configured. A configured list is matched exactly and may send the admin cookie.
func corsMiddleware(allowedOrigins ...string) gin.HandlerFunc {
	config := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Content-Type", "Origin", "Accept"},
		MaxAge:       12 * time.Hour,
	}
	if len(allowedOrigins) == 0 {
		config.AllowOrigins = []string{"*"}
		return cors.New(config)
	}
	config.AllowOrigins = allowedOrigins
	config.AllowCredentials = true
	return cors.New(config)
}

func observeRequests(logger *zap.Logger, collector *metrics.Collector) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		elapsed := time.Since(started)
		route := c.FullPath()
		status := c.Writer.Status()
		collector.ObserveRequest(c.Request.Method, route, status, elapsed)
		logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", elapsed))
	}
}
