package httpgin

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type sweepFunc func(ctx context.Context, cafeIDs []uuid.UUID) (int, error)

// @Summary  Cancel sessions whose customer never checked in
// @Security BearerAuth
// @Param    cafe_id  query  string  false  "limit to one café"
// @Success  200 {object} SweepResponse
// @Router   /automation/noshows [post]
func (h *Handler) sweepNoShows(c *gin.Context) {
	h.sweep(c, h.svcs.Sessions.SweepNoShows)
}

// @Summary  Charge overstay for sessions past their end time
// @Security BearerAuth
// @Param    cafe_id  query  string  false  "limit to one café"
// @Success  200 {object} SweepResponse
// @Router   /automation/overstays [post]
func (h *Handler) sweepOverstays(c *gin.Context) {
	h.sweep(c, h.svcs.Sessions.SweepOverstays)
}

// sweep runs fn over the cafés the caller manages, or the single cafe_id given.
func (h *Handler) sweep(c *gin.Context, fn sweepFunc) {
	ctx := c.Request.Context()

	var ids []uuid.UUID
	if raw := c.Query("cafe_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			badRequest(c, "invalid cafe_id")
			return
		}
		if !h.manage(c, id) {
			return
		}
		ids = []uuid.UUID{id}
	} else {
		var err error
		ids, err = h.svcs.Cafes.ManagedIDs(ctx, mustUser(c))
		if err != nil {
			respondErr(c, err)
			return
		}
	}

	n, err := fn(ctx, ids)
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, SweepResponse{Processed: n, Cafes: len(ids)})
}
