package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func (s *Server) createConversation(ctx *gin.Context) {
	convo, err := s.service.NewConversation(ctx.Request.Context(), currentUser(ctx))
	if err != nil {
		s.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, convo)
}

func (s *Server) listConversations(ctx *gin.Context) {
	convos, err := s.service.ListConversations(ctx.Request.Context(), currentUser(ctx))
	if err != nil {
		s.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"conversations": convos})
}

func (s *Server) renameConversation(ctx *gin.Context) {
	convoID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"code": "validation", "error": "invalid conversation id"})
		return
	}

	type request struct {
		Title string `json:"title" binding:"required"`
	}
	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"code": "validation", "error": err.Error()})
		return
	}

	if err := s.service.Rename(ctx.Request.Context(), currentUser(ctx), convoID, req.Title); err != nil {
		s.writeError(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

func (s *Server) deleteConversation(ctx *gin.Context) {
	convoID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"code": "validation", "error": "invalid conversation id"})
		return
	}

	if err := s.service.DeleteConversation(ctx.Request.Context(), currentUser(ctx), convoID); err != nil {
		s.writeError(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

func (s *Server) getMessages(ctx *gin.Context) {
	convoID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"code": "validation", "error": "invalid conversation id"})
		return
	}

	msgs, err := s.service.History(ctx.Request.Context(), currentUser(ctx), convoID)
	if err != nil {
		s.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (s *Server) sendMessage(ctx *gin.Context) {
	type request struct {
		ConversationID string `json:"conversation_id"`
		Content        string `json:"content" binding:"required"`
	}
	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"code": "validation", "error": err.Error()})
		return
	}

	convoID := uuid.Nil
	if req.ConversationID != "" {
		parsed, err := uuid.Parse(req.ConversationID)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"code": "validation", "error": "invalid conversation id"})
			return
		}
		convoID = parsed
	}

	turn, err := s.service.SendMessage(ctx.Request.Context(), currentUser(ctx), convoID, req.Content)
	if err != nil {
		s.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, turn)
}

func (s *Server) getUsage(ctx *gin.Context) {
	usage, err := s.service.Usage(ctx.Request.Context(), currentUser(ctx))
	if err != nil {
		s.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, usage)
}

func (s *Server) getStats(ctx *gin.Context) {
	stats, err := s.service.Stats(ctx.Request.Context(), currentUser(ctx))
	if err != nil {
		s.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, stats)
}
