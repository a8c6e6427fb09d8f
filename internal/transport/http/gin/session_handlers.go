package httpgin

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kirinyoku/gamecafe/internal/domain"
	redisx "github.com/kirinyoku/gamecafe/internal/redis"
)

// @Summary  Start session (idempotent)
// @Security BearerAuth
// @Param    req body  StartSessionRequest true "payload"
// @Header   201 {string} Idempotency-Key "echo"
// @Success  201 {object} domain.Session
// @Failure  409 {object} ErrorResponse "device unavailable / idem in progress"
// @Router   /sessions [post]
func (h *Handler) startSession(c *gin.Context) {
	var req StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	u := mustUser(c)
	deviceID := uuid.MustParse(req.DeviceID)

	customerID := u.ID
	if req.CustomerID != "" && req.CustomerID != u.ID.String() {
		if u.Role == domain.RoleCustomer {
			respondErr(c, domain.ErrForbidden)
			return
		}
		d, err := h.svcs.Devices.Get(ctx, deviceID)
		if err != nil {
			respondErr(c, err)
			return
		}
		if !h.manage(c, d.CafeID) {
			return
		}
		customerID = uuid.MustParse(req.CustomerID)
	}

	idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	var idemStorageKey string
	if h.idem != nil && idemKey != "" {
		idemStorageKey = redisx.KeyIdemSessionStart(customerID, idemKey)

		if payload, ok, _ := h.idem.GetResult(ctx, idemStorageKey); ok {
			c.Header("Idempotency-Key", idemKey)
			c.Data(http.StatusCreated, "application/json; charset=utf-8", []byte(payload))
			return
		}

		locked, err := h.idem.AcquireLock(ctx, idemStorageKey, 60*time.Second)
		if err != nil {
			respondErr(c, domain.Upstream(err))
			return
		}
		if !locked {
			if payload, ok, _ := h.idem.GetResult(ctx, idemStorageKey); ok {
				c.Header("Idempotency-Key", idemKey)
				c.Data(http.StatusCreated, "application/json; charset=utf-8", []byte(payload))
				return
			}
			c.Header("Retry-After", "1")
			c.JSON(http.StatusConflict, ErrorResponse{Error: "idempotency key in progress"})
			return
		}
	}

	s, err := h.svcs.Sessions.Start(ctx, customerID, deviceID)
	if err != nil {
		if idemStorageKey != "" {
			_ = h.idem.Release(ctx, idemStorageKey)
		}
		respondErr(c, err)
		return
	}

	if idemStorageKey != "" {
		b, _ := json.Marshal(s)
		_ = h.idem.SaveResult(ctx, idemStorageKey, string(b))
		c.Header("Idempotency-Key", idemKey)
	}

	c.JSON(http.StatusCreated, s)
}

// @Summary  End session
// @Security BearerAuth
// @Param    id  path  string  true  "Session ID"
// @Success  200 {object} domain.Session
// @Failure  404 {object} ErrorResponse "unknown or already closed"
// @Router   /sessions/{id}/end [post]
func (h *Handler) endSession(c *gin.Context) {
	s, ok := h.sessionFor(c)
	if !ok {
		return
	}

	s, err := h.svcs.Sessions.End(c.Request.Context(), s.ID)
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, s)
}

// @Summary  Extend session
// @Security BearerAuth
// @Param    id  path  string  true  "Session ID"
// @Param    req body  ExtendSessionRequest true "payload"
// @Success  200 {object} domain.Session
// @Failure  409 {object} ErrorResponse "session closed"
// @Router   /sessions/{id}/extend [post]
func (h *Handler) extendSession(c *gin.Context) {
	var req ExtendSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	s, ok := h.sessionFor(c)
	if !ok {
		return
	}

	s, err := h.svcs.Sessions.Extend(c.Request.Context(), s.ID, req.Hours)
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, s)
}

// @Summary  Confirm arrival
// @Security BearerAuth
// @Param    id  path  string  true  "Session ID"
// @Success  200 {object} domain.Session
// @Router   /sessions/{id}/checkin [post]
func (h *Handler) checkIn(c *gin.Context) {
	s, ok := h.sessionFor(c)
	if !ok {
		return
	}

	s, err := h.svcs.Sessions.CheckIn(c.Request.Context(), s.ID)
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, s)
}

// @Summary  Attach coupon
// @Security BearerAuth
// @Param    id  path  string  true  "Session ID"
// @Param    req body  ApplyCouponRequest true "payload"
// @Success  200 {object} domain.Session
// @Failure  400 {object} ErrorResponse "invalid or expired coupon"
// @Failure  409 {object} ErrorResponse "usage limit reached"
// @Router   /sessions/{id}/coupon [post]
func (h *Handler) applyCoupon(c *gin.Context) {
	var req ApplyCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	s, ok := h.sessionFor(c)
	if !ok {
		return
	}

	s, err := h.svcs.Sessions.ApplyCoupon(c.Request.Context(), s.ID, req.Code)
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, s)
}

// @Summary  Get session
// @Security BearerAuth
// @Param    id  path  string  true  "Session ID"
// @Success  200 {object} domain.Session
// @Router   /sessions/{id} [get]
func (h *Handler) getSession(c *gin.Context) {
	s, ok := h.sessionFor(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s)
}

// @Summary  My sessions
// @Security BearerAuth
// @Param    limit  query  int  false  "page size"
// @Success  200 {array} domain.Session
// @Router   /sessions [get]
func (h *Handler) listMySessions(c *gin.Context) {
	out, err := h.svcs.Sessions.ListByCustomer(c.Request.Context(), mustUser(c).ID, parseIntDefault(c.Query("limit"), 50))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// @Summary  Cafe sessions
// @Security BearerAuth
// @Param    id      path   string  true   "Cafe ID"
// @Param    status  query  string  false  "ACTIVE, EXTENDED, COMPLETED or NO_SHOW"
// @Param    limit   query  int     false  "page size"
// @Success  200 {array} domain.Session
// @Router   /cafes/{id}/sessions [get]
func (h *Handler) listCafeSessions(c *gin.Context) {
	cafeID, ok := uuidParam(c, "id")
	if !ok || !h.manage(c, cafeID) {
		return
	}

	var status *domain.SessionStatus
	if raw := c.Query("status"); raw != "" {
		st := domain.SessionStatus(strings.ToUpper(raw))
		if !st.Open() && !st.Terminal() {
			badRequest(c, "invalid status")
			return
		}
		status = &st
	}

	out, err := h.svcs.Sessions.ListByCafe(c.Request.Context(), cafeID, status, parseIntDefault(c.Query("limit"), 100))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
