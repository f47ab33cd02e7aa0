package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/epathshala/portal-api/internal/models"
	"github.com/epathshala/portal-api/pkg/response"
)

type chatHistoryService interface {
	History(ctx context.Context, roomID string, limit int) (*models.ChatHistory, error)
}

// ChatHandler serves chat history over REST. Live messages go over /ws.
type ChatHandler struct {
	service chatHistoryService
}

// NewChatHandler constructs a ChatHandler.
func NewChatHandler(svc chatHistoryService) *ChatHandler {
	return &ChatHandler{service: svc}
}

// History godoc
// @Summary Chat room history
// @Description Most recent messages of a room, oldest first
// @Tags Chat
// @Produce json
// @Param roomId path string true "Room ID"
// @Param limit query int false "Maximum messages"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /chat/rooms/{roomId}/messages [get]
func (h *ChatHandler) History(c *gin.Context) {
	history, err := h.service.History(c.Request.Context(), c.Param("roomId"), queryInt(c, "limit", 0))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, history, nil)
}
