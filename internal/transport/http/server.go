// Package http exposes a local status and control API for the chat session.
package http

import (
	stdhttp "net/http"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-client/internal/config"
	"github.com/vovakirdan/wirechat-client/internal/core"
)

// Session is the part of the connection manager the API drives.
type Session interface {
	Snapshot() core.Snapshot
	Start() error
	SetParams(p core.Params) error
	TrySend(body string) error
	Disconnect()
}

// NewServer builds the HTTP server with status and control routes.
func NewServer(session Session, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	return &stdhttp.Server{
		Addr:              cfg.StatusAddr,
		Handler:           NewRouter(session, cfg.SendRateLimit, clock.New(), logger),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// NewRouter registers the API routes. sendLimit caps POST /messages per minute; zero disables it.
func NewRouter(session Session, sendLimit int, clk clock.Clock, logger *zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	h := NewAPIHandlers(session, logger)

	router.GET("/health", healthHandler)
	router.GET("/session", h.GetSession)
	router.GET("/messages", h.ListMessages)
	router.POST("/messages", RateLimitMiddleware(newRateLimiter(sendLimit, clk), logger), h.PostMessage)
	router.POST("/connect", h.Connect)
	router.POST("/disconnect", h.Disconnect)

	return router
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
