package httpgin

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// @Summary  Ask an AI agent about a café
// @Security BearerAuth
// @Param    req body  ChatRequest true "payload"
// @Success  200 {object} insight.Reply
// @Failure  503 {object} ErrorResponse "model unavailable"
// @Router   /ai/chat [post]
func (h *Handler) chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	cafeID := uuid.MustParse(req.CafeID)
	if !h.manage(c, cafeID) {
		return
	}

	reply, err := h.svcs.Insight.Chat(c.Request.Context(), mustUser(c).ID, cafeID, req.AgentType, req.Message)
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, reply)
}

// @Summary  Past AI conversations
// @Security BearerAuth
// @Param    limit  query  int  false  "page size"
// @Success  200 {array} gormrepo.Conversation
// @Router   /ai/history [get]
func (h *Handler) chatHistory(c *gin.Context) {
	out, err := h.svcs.Insight.History(c.Request.Context(), mustUser(c).ID, parseIntDefault(c.Query("limit"), 20))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
