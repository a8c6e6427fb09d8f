package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kirinyoku/gamecafe/internal/domain"
	"github.com/kirinyoku/gamecafe/internal/logger"
	"github.com/kirinyoku/gamecafe/internal/repository"
	"github.com/kirinyoku/gamecafe/internal/service/pricing"
	"github.com/kirinyoku/gamecafe/internal/service/wallet"
	"github.com/kirinyoku/gamecafe/internal/uow"
)

// errSkip marks a candidate that no longer qualifies once its row is locked.
var errSkip = errors.New("skip")

// SweepNoShows closes ACTIVE sessions nobody checked in to within the grace period:
// the session becomes NO_SHOW, the device is released and the customer is charged the
// no-show penalty. Each session is settled in its own unit of work; a failure is logged
// and the sweep moves on.
//
// Returns:
//   - int: number of sessions closed.
//   - error: only if the candidate list could not be read.
func (l *Ledger) SweepNoShows(ctx context.Context, cafeIDs []uuid.UUID) (int, error) {
	const op = "service.session.SweepNoShows"

	if len(cafeIDs) == 0 {
		return 0, nil
	}

	now := l.now()
	cutoff := now.Add(-l.cfg.NoShowGrace)

	processed := 0
	err := l.eachOpen(ctx, repository.OpenSessionFilter{
		CafeIDs:       cafeIDs,
		Statuses:      []domain.SessionStatus{domain.SessionActive},
		StartedBefore: cutoff,
		NotCheckedIn:  true,
	}, func(c domain.Session) {
		err := l.uow.Do(ctx, func(ctx context.Context, repos repository.Repos, after func(uow.AfterCommit)) error {
			s, err := repos.Sessions().GetForUpdate(ctx, c.ID)
			if err != nil {
				return err
			}

			if s.Status != domain.SessionActive || s.CheckedInAt != nil || !s.StartTime.Before(cutoff) {
				return errSkip
			}

			err = repos.Sessions().Finish(ctx, s.ID, repository.SessionFinish{
				Status:        domain.SessionNoShow,
				EndTime:       now,
				DurationHours: roundHours(elapsedHours(s.StartTime, now)),
				TotalAmount:   s.TotalAmount,
			})
			if err != nil {
				return err
			}

			if err := l.releaseDevice(ctx, repos, after, s); err != nil {
				return err
			}

			if l.cfg.NoShowPenalty > 0 {
				ref := s.ID
				_, err = l.wallet.With(repos).Debit(ctx, wallet.Entry{
					CustomerID:  s.CustomerID,
					Amount:      l.cfg.NoShowPenalty,
					Type:        domain.TxPenalty,
					Description: "No-show penalty",
					ReferenceID: &ref,
				})
				if err != nil {
					return err
				}
			}

			after(func(ctx context.Context) {
				l.notify(ctx, s.CustomerID, "Session marked as no-show",
					fmt.Sprintf("A no-show penalty of %.2f was charged to your wallet.", l.cfg.NoShowPenalty))
			})

			return nil
		})
		if err != nil {
			if !errors.Is(err, errSkip) {
				l.log.Warn("no-show sweep item failed",
					zap.String(logger.FieldOperation, op),
					zap.String(logger.FieldSessionID, c.ID.String()),
					zap.Error(err),
				)
			}
			return
		}

		processed++
	})
	if err != nil {
		return processed, fmt.Errorf("%s:%w", op, err)
	}

	return processed, nil
}

// eachOpen calls fn for every session matching f, one page at a time. Pages are keyed
// on (start_time, id) so rows settled by fn never shift the next page.
func (l *Ledger) eachOpen(ctx context.Context, f repository.OpenSessionFilter, fn func(domain.Session)) error {
	f.Limit = l.cfg.SweepBatch

	for {
		page, err := l.uow.Repos().Sessions().ListOpen(ctx, f)
		if err != nil {
			return mapRepoErr(err)
		}

		for _, s := range page {
			if ctx.Err() != nil {
				return nil
			}
			fn(s)
		}

		if len(page) < f.Limit {
			return nil
		}

		f.After = repository.CursorAt(page[len(page)-1])
	}
}

// SweepOverstays flags open sessions running longer than the overstay threshold and
// recomputes their amount from start_time to now at the device rate times the overstay
// multiplier. The amount never drops below what is already committed. Sessions stay
// open and keep their device.
//
// Returns:
//   - int: number of sessions recomputed.
//   - error: only if the candidate list could not be read.
func (l *Ledger) SweepOverstays(ctx context.Context, cafeIDs []uuid.UUID) (int, error) {
	const op = "service.session.SweepOverstays"

	if len(cafeIDs) == 0 {
		return 0, nil
	}

	now := l.now()
	cutoff := now.Add(-l.cfg.OverstayMax)

	processed := 0
	err := l.eachOpen(ctx, repository.OpenSessionFilter{
		CafeIDs:       cafeIDs,
		Statuses:      []domain.SessionStatus{domain.SessionActive, domain.SessionExtended},
		StartedBefore: cutoff,
	}, func(c domain.Session) {
		err := l.uow.Do(ctx, func(ctx context.Context, repos repository.Repos, after func(uow.AfterCommit)) error {
			s, err := repos.Sessions().GetForUpdate(ctx, c.ID)
			if err != nil {
				return err
			}

			if !s.Status.Open() || !s.StartTime.Before(cutoff) {
				return errSkip
			}

			d, err := repos.Devices().Get(ctx, s.DeviceID)
			if err != nil {
				return err
			}

			hours := elapsedHours(s.StartTime, now)
			total := pricing.RoundMoney(hours * d.HourlyRate * l.cfg.OverstayMultiplier)
			if total < s.TotalAmount {
				total = s.TotalAmount
			}

			if err := repos.Sessions().MarkOverstay(ctx, s.ID, roundHours(hours), total); err != nil {
				return err
			}

			if !s.OverstayPenalty {
				after(func(ctx context.Context) {
					l.notify(ctx, s.CustomerID, "Session overstay",
						fmt.Sprintf("Your session passed %s; overstay pricing now applies.", l.cfg.OverstayMax))
				})
			}

			return nil
		})
		if err != nil {
			if !errors.Is(err, errSkip) {
				l.log.Warn("overstay sweep item failed",
					zap.String(logger.FieldOperation, op),
					zap.String(logger.FieldSessionID, c.ID.String()),
					zap.Error(err),
				)
			}
			return
		}

		processed++
	})
	if err != nil {
		return processed, fmt.Errorf("%s:%w", op, err)
	}

	return processed, nil
}

func (l *Ledger) notify(ctx context.Context, customerID uuid.UUID, title, body string) {
	if l.notifier == nil {
		return
	}
	l.notifier.NotifyCustomer(ctx, customerID, title, body)
}
