package httpgin

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kirinyoku/gamecafe/internal/domain"
	"github.com/kirinyoku/gamecafe/internal/service/cafe"
)

// @Summary  Create cafe
// @Security BearerAuth
// @Param    req body  CreateCafeRequest true "payload"
// @Success  201 {object} domain.Cafe
// @Router   /cafes [post]
func (h *Handler) createCafe(c *gin.Context) {
	var req CreateCafeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	cf, err := h.svcs.Cafes.Create(c.Request.Context(), mustUser(c).ID, cafe.Input{
		Name:    req.Name,
		Address: req.Address,
		City:    req.City,
	})
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusCreated, cf)
}

// @Summary  List the cafes the caller manages
// @Security BearerAuth
// @Success  200 {array} domain.Cafe
// @Router   /cafes [get]
func (h *Handler) listCafes(c *gin.Context) {
	ctx := c.Request.Context()

	ids, err := h.svcs.Cafes.ManagedIDs(ctx, mustUser(c))
	if err != nil {
		respondErr(c, err)
		return
	}

	out := make([]domain.Cafe, 0, len(ids))
	for _, id := range ids {
		cf, err := h.svcs.Cafes.Get(ctx, id)
		if err != nil {
			respondErr(c, err)
			return
		}
		out = append(out, cf)
	}

	c.JSON(http.StatusOK, out)
}

// @Summary  Get cafe
// @Security BearerAuth
// @Param    id  path  string  true  "Cafe ID"
// @Success  200 {object} domain.Cafe
// @Failure  404 {object} ErrorResponse
// @Router   /cafes/{id} [get]
func (h *Handler) getCafe(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	cf, err := h.svcs.Cafes.Get(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}

	writeCached(c, http.StatusOK, cf, time.Minute, false)
}

// @Summary  Cafe counters
// @Security BearerAuth
// @Param    id     path   string  true   "Cafe ID"
// @Param    since  query  string  false  "RFC3339, defaults to 24h ago"
// @Success  200 {object} domain.CafeStats
// @Router   /cafes/{id}/stats [get]
func (h *Handler) cafeStats(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok || !h.manage(c, id) {
		return
	}

	since := time.Now().Add(-24 * time.Hour)
	if raw := c.Query("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			badRequest(c, "invalid since (RFC3339)")
			return
		}
		since = t
	}

	stats, err := h.svcs.Sessions.Stats(c.Request.Context(), id, since)
	if err != nil {
		respondErr(c, err)
		return
	}

	writeCached(c, http.StatusOK, stats, 15*time.Second, false)
}
