package httpgin

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kirinyoku/gamecafe/internal/repository/gormrepo"
)

// @Summary  VAPID public key for browser subscriptions
// @Success  200 {object} map[string]string
// @Failure  404 {object} ErrorResponse "push disabled"
// @Router   /push/vapid-key [get]
func (h *Handler) vapidKey(c *gin.Context) {
	if h.vapid == "" {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "push notifications are disabled"})
		return
	}
	writeCached(c, http.StatusOK, gin.H{"public_key": h.vapid}, 24*time.Hour, true)
}

// @Summary  Register a browser push subscription
// @Security BearerAuth
// @Param    req body  PushSubscriptionRequest true "payload"
// @Success  204
// @Router   /push/subscriptions [post]
func (h *Handler) subscribePush(c *gin.Context) {
	if h.push == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "push notifications are disabled"})
		return
	}
	var req PushSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	sub := &gormrepo.PushSubscription{
		Endpoint:  req.Endpoint,
		UserID:    mustUser(c).ID,
		P256DH:    req.Keys.P256DH,
		Auth:      req.Keys.Auth,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.push.SaveSubscription(c.Request.Context(), sub); err != nil {
		respondErr(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// @Summary  Remove a browser push subscription
// @Security BearerAuth
// @Param    req body  DeletePushSubscriptionRequest true "payload"
// @Success  204
// @Failure  404 {object} ErrorResponse "not subscribed"
// @Router   /push/subscriptions [delete]
func (h *Handler) unsubscribePush(c *gin.Context) {
	if h.push == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "push notifications are disabled"})
		return
	}
	var req DeletePushSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	subs, err := h.push.Subscriptions(ctx, mustUser(c).ID)
	if err != nil {
		respondErr(c, err)
		return
	}

	owned := false
	for _, s := range subs {
		if s.Endpoint == req.Endpoint {
			owned = true
			break
		}
	}
	if !owned {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "subscription not found"})
		return
	}

	if err := h.push.DeleteSubscription(ctx, req.Endpoint); err != nil {
		respondErr(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
