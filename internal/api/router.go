// Package api is the HTTP transport: chat (JSON or Server-Sent Events),
// document management, health and the MCP endpoint.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bull/docqa/internal/logger"
)

// RouterConfig holds the router's dependencies. MCP and Landing are optional.
type RouterConfig struct {
	Chat           ChatService
	Documents      DocumentService
	Health         HealthChecker
	MCP            http.Handler
	Landing        http.Handler
	Log            *logger.Logger
	MaxUploadBytes int64
	AllowOrigins   []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	log := cfg.Log
	if log == nil {
		log = logger.Nop()
	}

	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(log), CORS(cfg.AllowOrigins))

	r.GET("/health", healthHandler(cfg.Health))

	chats := &chatHandler{svc: cfg.Chat}
	docs := &documentHandler{svc: cfg.Documents, maxUploadBytes: cfg.MaxUploadBytes}

	api := r.Group("/api")
	{
		api.POST("/chat", chats.chat)
		api.DELETE("/conversations/:id", chats.dropConversation)

		api.POST("/documents", docs.upload)
		api.GET("/documents", docs.list)
		api.GET("/documents/:id", docs.get)
		api.DELETE("/documents/:id", docs.delete)
	}

	if cfg.Landing != nil {
		r.GET("/", gin.WrapH(cfg.Landing))
	}
	if cfg.MCP != nil {
		r.Any("/mcp", gin.WrapH(cfg.MCP))
	}
	return r
}
