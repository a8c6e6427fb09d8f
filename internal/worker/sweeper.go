// Package worker runs the periodic no-show and overstay sweeps.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kirinyoku/gamecafe/internal/logger"
)

type CafeLister interface {
	ActiveIDs(ctx context.Context) ([]uuid.UUID, error)
}

type SessionSweeper interface {
	SweepNoShows(ctx context.Context, cafeIDs []uuid.UUID) (int, error)
	SweepOverstays(ctx context.Context, cafeIDs []uuid.UUID) (int, error)
}

type Result struct {
	Cafes     int `json:"cafes"`
	NoShows   int `json:"noshows_processed"`
	Overstays int `json:"overstays_processed"`
}

type Sweeper struct {
	cafes    CafeLister
	sessions SessionSweeper
	interval time.Duration
	log      *zap.Logger
}

// NewSweeper returns a sweeper that ticks every interval. A non-positive interval disables Run.
func NewSweeper(cafes CafeLister, sessions SessionSweeper, interval time.Duration, log *zap.Logger) *Sweeper {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sweeper{cafes: cafes, sessions: sessions, interval: interval, log: log}
}

// RunOnce sweeps every active café once. No-shows go first so a session is never
// flagged as overstaying after it was closed as absent.
func (s *Sweeper) RunOnce(ctx context.Context) (Result, error) {
	const op = "worker.Sweeper.RunOnce"

	ids, err := s.cafes.ActiveIDs(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("%s:%w", op, err)
	}

	res := Result{Cafes: len(ids)}
	if len(ids) == 0 {
		return res, nil
	}

	res.NoShows, err = s.sessions.SweepNoShows(ctx, ids)
	if err != nil {
		return res, fmt.Errorf("%s:%w", op, err)
	}

	res.Overstays, err = s.sessions.SweepOverstays(ctx, ids)
	if err != nil {
		return res, fmt.Errorf("%s:%w", op, err)
	}

	return res, nil
}

// Run blocks until ctx is done. Sweep errors are logged and the next tick retries.
func (s *Sweeper) Run(ctx context.Context) error {
	if s.interval <= 0 {
		s.log.Info("sweeper disabled")
		return nil
	}

	t := time.NewTicker(s.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			res, err := s.RunOnce(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.log.Error("sweep failed", zap.String(logger.FieldOperation, "sweep"), zap.Error(err))
				continue
			}
			if res.NoShows > 0 || res.Overstays > 0 {
				s.log.Info("sweep done",
					zap.Int("noshows", res.NoShows),
					zap.Int("overstays", res.Overstays),
					zap.Int(logger.FieldCount, res.Cafes))
			}
		}
	}
}
