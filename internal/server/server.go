package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ravianlabs/quantum-chat/internal/chat"
	"github.com/ravianlabs/quantum-chat/internal/models"
	"go.uber.org/zap"
)

const userIDHeader = "X-User-ID"

// Server exposes the chat service as the dashboard HTTP API. The
// upstream authentication layer injects the caller's id via the
// X-User-ID header; requests without it are rejected.
type Server struct {
	service *chat.Service
	logger  *zap.Logger
	router  *gin.Engine
}

func New(service *chat.Service, logger *zap.Logger) *Server {
	s := &Server{
		service: service,
		logger:  logger,
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/api", s.identity)
	api.POST("/conversations", s.createConversation)
	api.GET("/conversations", s.listConversations)
	api.PUT("/conversations/:id", s.renameConversation)
	api.DELETE("/conversations/:id", s.deleteConversation)
	api.GET("/conversations/:id/messages", s.getMessages)
	api.POST("/chat", s.sendMessage)
	api.GET("/usage", s.getUsage)
	api.GET("/stats", s.getStats)

	s.router = r
	return s
}

// Handler returns the http handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}

func (s *Server) identity(ctx *gin.Context) {
	userID := ctx.GetHeader(userIDHeader)
	if userID == "" {
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"code":  "unauthenticated",
			"error": "missing user identity",
		})
		return
	}
	ctx.Set("user_id", userID)
	ctx.Next()
}

func currentUser(ctx *gin.Context) string {
	return ctx.GetString("user_id")
}

// writeError maps the core error taxonomy onto HTTP codes. Quota gets
// a distinct code so the UI can show "try again tomorrow" instead of a
// generic retry.
func (s *Server) writeError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrEmptyContent), errors.Is(err, models.ErrInvalidRole):
		ctx.JSON(http.StatusBadRequest, gin.H{"code": "validation", "error": err.Error()})
	case errors.Is(err, models.ErrNotFound):
		ctx.JSON(http.StatusNotFound, gin.H{"code": "not_found", "error": err.Error()})
	case errors.Is(err, models.ErrForbidden):
		ctx.JSON(http.StatusForbidden, gin.H{"code": "forbidden", "error": err.Error()})
	case errors.Is(err, models.ErrQuotaExceeded):
		ctx.JSON(http.StatusTooManyRequests, gin.H{"code": "quota_exceeded", "error": err.Error()})
	default:
		s.logger.Error("Request failed", zap.Error(err))
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"code": "store_unavailable", "error": "temporary storage failure"})
	}
}
