// Package httpgin exposes the services over HTTP with gin.
package httpgin

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/kirinyoku/gamecafe/internal/domain"
	"github.com/kirinyoku/gamecafe/internal/repository/gormrepo"
	"github.com/kirinyoku/gamecafe/internal/service"
)

// IdempotencyStore remembers the first response for a client-chosen key.
type IdempotencyStore interface {
	AcquireLock(ctx context.Context, key string, lockTTL time.Duration) (bool, error)
	SaveResult(ctx context.Context, key string, jsonPayload string) error
	GetResult(ctx context.Context, key string) (string, bool, error)
	Release(ctx context.Context, key string) error
}

type PushStore interface {
	SaveSubscription(ctx context.Context, sub *gormrepo.PushSubscription) error
	Subscriptions(ctx context.Context, userID uuid.UUID) ([]gormrepo.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
}

// Options carries the optional collaborators. Nil fields switch the matching feature off.
type Options struct {
	Idempotency    IdempotencyStore
	Hub            *Hub
	Push           PushStore
	VAPIDPublicKey string
	RateLimitRPS   float64
	RateLimitBurst int
}

type Handler struct {
	svcs  *service.Services
	idem  IdempotencyStore
	hub   *Hub
	push  PushStore
	vapid string
	log   *zap.Logger
}

var managers = []domain.Role{domain.RoleSuperAdmin, domain.RoleCafeOwner, domain.RoleStaff}

func NewRouter(
	svcs *service.Services,
	opts Options,
	log *zap.Logger,
	middlewares ...gin.HandlerFunc,
) *gin.Engine {
	if log == nil {
		log = zap.NewNop()
	}

	h := &Handler{
		svcs:  svcs,
		idem:  opts.Idempotency,
		hub:   opts.Hub,
		push:  opts.Push,
		vapid: opts.VAPIDPublicKey,
		log:   log,
	}

	r := gin.New()

	r.Use(gin.Recovery(), RequestIDMiddleware(), LoggingMiddleware(log), CORS(), RateLimiter(opts.RateLimitRPS, opts.RateLimitBurst))
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	// Swagger UI
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// health
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Public API
	r.POST("/auth/otp", h.requestOTP)
	r.POST("/auth/verify", h.verifyOTP)
	r.POST("/auth/register", h.register)
	r.GET("/passes/catalog", h.passCatalog)
	r.GET("/push/vapid-key", h.vapidKey)

	api := r.Group("/", Authenticated(svcs.Auth))
	{
		api.GET("/me", h.me)

		api.GET("/cafes", h.listCafes)
		api.POST("/cafes", RequireRole(domain.RoleSuperAdmin, domain.RoleCafeOwner), h.createCafe)
		api.GET("/cafes/:id", h.getCafe)
		api.GET("/cafes/:id/devices", h.listDevices)
		api.POST("/cafes/:id/coupons/quote", h.quoteCoupon)

		api.GET("/devices/:id", h.getDevice)
		api.GET("/devices/:id/rate", h.deviceRate)

		api.POST("/sessions", h.startSession)
		api.GET("/sessions", h.listMySessions)
		api.GET("/sessions/:id", h.getSession)
		api.POST("/sessions/:id/end", h.endSession)
		api.POST("/sessions/:id/extend", h.extendSession)
		api.POST("/sessions/:id/checkin", h.checkIn)
		api.POST("/sessions/:id/coupon", h.applyCoupon)

		api.GET("/wallet", h.balance)
		api.POST("/wallet/topup", h.topUp)
		api.GET("/wallet/transactions", h.transactions)
		api.GET("/wallet/audit", h.audit)

		api.POST("/passes", h.purchasePass)
		api.GET("/passes", h.listPasses)
		api.POST("/referrals", h.applyReferral)

		api.POST("/push/subscriptions", h.subscribePush)
		api.DELETE("/push/subscriptions", h.unsubscribePush)

		api.GET("/ws/cafes/:id/devices", h.deviceFeed)

		staff := api.Group("/", RequireRole(managers...))
		{
			staff.GET("/cafes/:id/stats", h.cafeStats)
			staff.GET("/cafes/:id/sessions", h.listCafeSessions)

			staff.POST("/cafes/:id/devices", h.createDevice)
			staff.PATCH("/devices/:id/status", h.setDeviceStatus)
			staff.DELETE("/devices/:id", h.deactivateDevice)
			staff.POST("/devices/:id/maintenance", h.scheduleMaintenance)
			staff.GET("/cafes/:id/maintenance", h.listMaintenance)
			staff.POST("/maintenance/:id/complete", h.completeMaintenance)
			staff.POST("/devices/:id/health-log", h.logDeviceHealth)
			staff.GET("/devices/:id/health", h.deviceHealth)

			staff.POST("/cafes/:id/pricing-rules", h.createRule)
			staff.GET("/cafes/:id/pricing-rules", h.listRules)
			staff.PATCH("/pricing-rules/:id", h.setRuleActive)
			staff.POST("/cafes/:id/coupons", h.createCoupon)
			staff.GET("/cafes/:id/coupons", h.listCoupons)

			staff.POST("/automation/noshows", h.sweepNoShows)
			staff.POST("/automation/overstays", h.sweepOverstays)
		}

		owners := api.Group("/ai", RequireRole(domain.RoleSuperAdmin, domain.RoleCafeOwner))
		{
			owners.POST("/chat", h.chat)
			owners.GET("/history", h.chatHistory)
		}
	}

	return r
}

// --- Helpers ---

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

func mustUser(c *gin.Context) domain.User {
	u, _ := currentUser(c)
	return u
}

// manage aborts with the mapped error unless the caller may manage the café.
func (h *Handler) manage(c *gin.Context, cafeID uuid.UUID) bool {
	if _, err := h.svcs.Cafes.EnsureOwner(c.Request.Context(), cafeID, mustUser(c)); err != nil {
		respondErr(c, err)
		return false
	}
	return true
}

// canSee allows the session's customer and anyone managing its café.
func (h *Handler) canSee(c *gin.Context, s domain.Session) bool {
	u := mustUser(c)
	if u.ID == s.CustomerID {
		return true
	}
	if u.Role == domain.RoleCustomer {
		respondErr(c, domain.ErrForbidden)
		return false
	}
	return h.manage(c, s.CafeID)
}

// sessionFor loads the path session and checks access.
func (h *Handler) sessionFor(c *gin.Context) (domain.Session, bool) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return domain.Session{}, false
	}
	s, err := h.svcs.Sessions.Get(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return domain.Session{}, false
	}
	if !h.canSee(c, s) {
		return domain.Session{}, false
	}
	return s, true
}
