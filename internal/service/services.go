package service

import (
	"time"

	"go.uber.org/zap"

	redisrepo "github.com/kirinyoku/gamecafe/internal/repository/redis"
	"github.com/kirinyoku/gamecafe/internal/service/auth"
	"github.com/kirinyoku/gamecafe/internal/service/cafe"
	"github.com/kirinyoku/gamecafe/internal/service/device"
	"github.com/kirinyoku/gamecafe/internal/service/insight"
	"github.com/kirinyoku/gamecafe/internal/service/membership"
	"github.com/kirinyoku/gamecafe/internal/service/pricing"
	"github.com/kirinyoku/gamecafe/internal/service/session"
	"github.com/kirinyoku/gamecafe/internal/service/wallet"
	"github.com/kirinyoku/gamecafe/internal/uow"
)

type Services struct {
	Auth       *auth.Service
	Cafes      *cafe.Service
	Devices    *device.Registry
	Pricing    *pricing.Engine
	Wallet     *wallet.Ledger
	Sessions   *session.Ledger
	Membership *membership.Service
	Insight    *insight.Service
}

// Deps are the collaborators outside the transactional store. Any of them may be nil.
type Deps struct {
	Cache         *redisrepo.Cache
	Publisher     device.Publisher
	OTPs          auth.OTPStore
	Limiter       auth.Limiter
	Sender        auth.Sender
	Notifier      session.Notifier
	Provider      insight.Provider
	Conversations insight.ConversationStore
	Log           *zap.Logger
}

type Config struct {
	JWTSecret string
	JWTTTL    time.Duration
	Auth      auth.Config
	Device    device.Config
	Pricing   pricing.Config
	Session   session.Config
	Insight   insight.Config
}

func NewServices(runner uow.Runner, deps Deps, cfg Config) *Services {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}

	devices := device.New(runner, deps.Cache, deps.Publisher, log.Named("device"), cfg.Device)
	engine := pricing.New(runner, cfg.Pricing)
	ledger := wallet.New(runner)
	tokens := auth.NewTokens(cfg.JWTSecret, cfg.JWTTTL, nil)

	return &Services{
		Auth:       auth.New(runner, deps.OTPs, deps.Limiter, deps.Sender, tokens, log.Named("auth"), cfg.Auth),
		Cafes:      cafe.New(runner),
		Devices:    devices,
		Pricing:    engine,
		Wallet:     ledger,
		Sessions:   session.New(runner, devices, engine, ledger, deps.Notifier, log.Named("session"), cfg.Session),
		Membership: membership.New(runner, ledger, nil),
		Insight:    insight.New(runner, deps.Provider, deps.Conversations, log.Named("insight"), cfg.Insight),
	}
}
