package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kirinyoku/gamecafe/internal/config"
	"github.com/kirinyoku/gamecafe/internal/notify"
	"github.com/kirinyoku/gamecafe/internal/postgres"
	redisx "github.com/kirinyoku/gamecafe/internal/redis"
	"github.com/kirinyoku/gamecafe/internal/repository/gormrepo"
	"github.com/kirinyoku/gamecafe/internal/repository/memory"
	postgresrepo "github.com/kirinyoku/gamecafe/internal/repository/postgres"
	redisrepo "github.com/kirinyoku/gamecafe/internal/repository/redis"
	"github.com/kirinyoku/gamecafe/internal/service"
	"github.com/kirinyoku/gamecafe/internal/service/auth"
	"github.com/kirinyoku/gamecafe/internal/service/device"
	"github.com/kirinyoku/gamecafe/internal/service/insight"
	"github.com/kirinyoku/gamecafe/internal/service/pricing"
	"github.com/kirinyoku/gamecafe/internal/service/session"
	httpgin "github.com/kirinyoku/gamecafe/internal/transport/http/gin"
	"github.com/kirinyoku/gamecafe/internal/uow"
	"github.com/kirinyoku/gamecafe/internal/worker"
)

type App struct {
	cfg        *config.Config
	logger     *zap.Logger
	httpServer *http.Server
	pool       *pgxpool.Pool
	pubsub     *redisx.DevicesPubSub
	hub        *httpgin.Hub
	sweeper    *worker.Sweeper
	push       *notify.Pool
}

func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	loc, err := time.LoadLocation(cfg.Billing.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone: %w", err)
	}

	a := &App{cfg: cfg, logger: logger}

	// Transactional store
	var (
		runner uow.Runner
		gdsn   string
	)
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		logger.Warn("using in-memory storage, data is lost on restart")
		runner = memory.New()
	default:
		dsn := cfg.Postgres.DSN()
		if cfg.Storage.MigrationsAuto {
			if err := postgres.Migrate(ctx, dsn); err != nil {
				return nil, fmt.Errorf("failed to migrate postgres: %w", err)
			}
		}

		a.pool, err = postgres.New(ctx, postgres.Config{DSN: dsn, MaxConns: 20, StatementTimeout: 15 * time.Second})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize postgres: %w", err)
		}
		runner = uow.NewUoW(postgresrepo.NewStore(a.pool))
		gdsn = dsn
	}

	gdb, err := gormrepo.Open(gormrepo.Config{DSN: gdsn, MaxOpenConns: 5, Debug: cfg.Log.Level == "debug"})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}
	records := gormrepo.NewStore(gdb)

	rdb, err := redisx.New(ctx, redisx.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	cache := redisrepo.New(rdb)
	a.pubsub = redisx.NewDevicesPubSub(rdb)
	otps := redisrepo.NewOTPStore(rdb)
	limiter := redisrepo.NewSlidingWindowLimiter(rdb, "otp", 5, 15*time.Minute)
	idempotencyStore := redisrepo.NewIdempotencyStore(rdb, 2*time.Hour)

	deps := service.Deps{
		Cache:         cache,
		Publisher:     a.pubsub,
		OTPs:          otps,
		Limiter:       limiter,
		Sender:        auth.LogSender{Log: logger.Named("otp")},
		Conversations: records,
		Log:           logger,
	}

	if cfg.AI.APIKey != "" {
		deps.Provider = insight.NewChatCompletions(cfg.AI.BaseURL, cfg.AI.APIKey, cfg.AI.Model, cfg.AI.Timeout, nil)
	} else {
		logger.Warn("AI_API_KEY is not set, AI agents will answer 503")
	}

	if cfg.Push.VAPIDPublicKey != "" && cfg.Push.VAPIDPrivateKey != "" {
		a.push = notify.NewPool(records, notify.WebPushSender{}, logger.Named("push"), notify.Config{
			VAPIDPublicKey:  cfg.Push.VAPIDPublicKey,
			VAPIDPrivateKey: cfg.Push.VAPIDPrivateKey,
			Subscriber:      cfg.Push.Subscriber,
			Workers:         cfg.Push.Workers,
		})
		deps.Notifier = a.push
	}

	// Initialize services
	services := service.NewServices(runner, deps, service.Config{
		JWTSecret: cfg.Auth.JWTSecret,
		JWTTTL:    cfg.Auth.JWTTTL,
		Auth: auth.Config{
			OTPTTL:    cfg.Auth.OTPTTL,
			OTPLength: cfg.Auth.OTPLength,
			Echo:      cfg.Auth.OTPEcho,
		},
		Device:  device.Config{},
		Pricing: pricing.Config{Location: loc},
		Session: session.Config{
			NoShowGrace:        cfg.Automation.NoShowGrace,
			NoShowPenalty:      cfg.Billing.NoShowPenalty,
			OverstayMax:        cfg.Automation.OverstayMax,
			OverstayMultiplier: cfg.Billing.OverstayMultiplier,
			ExtensionPricing:   cfg.Billing.ExtensionPricing,
		},
		Insight: insight.Config{Timeout: cfg.AI.Timeout, Location: loc},
	})

	a.sweeper = worker.NewSweeper(services.Cafes, services.Sessions, cfg.Automation.SweepInterval, logger.Named("sweeper"))
	a.hub = httpgin.NewHub(logger.Named("ws"))

	opts := httpgin.Options{
		Idempotency:    idempotencyStore,
		Hub:            a.hub,
		RateLimitRPS:   cfg.RateLimit.RPS,
		RateLimitBurst: cfg.RateLimit.Burst,
	}
	if a.push != nil {
		opts.Push = records
		opts.VAPIDPublicKey = cfg.Push.VAPIDPublicKey
	}

	// Initialize Gin router
	router := httpgin.NewRouter(services, opts, logger.Named("http"))

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if a.pool != nil {
		defer a.pool.Close()
	}

	g, gCtx := errgroup.WithContext(ctx)

	// Start HTTP server
	g.Go(func() error {
		a.logger.Info("HTTP server listening", zap.String("host", a.cfg.Server.Host), zap.Int("port", a.cfg.Server.Port))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	})

	// Device status fan-out to websocket watchers
	g.Go(func() error {
		if err := a.pubsub.Subscribe(gCtx, a.hub.Handle); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("device status subscription: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return a.sweeper.Run(gCtx)
	})

	if a.push != nil {
		g.Go(func() error {
			return a.push.Run(gCtx)
		})
	}

	// Graceful shutdown
	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("shutting down HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.httpServer.Shutdown(ctx)
	})

	return g.Wait()
}
