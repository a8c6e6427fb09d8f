// Package insight answers café owners' questions through an external language model,
// grounded on a read-only snapshot of the café's devices, sessions and revenue.
package insight

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kirinyoku/gamecafe/internal/domain"
	"github.com/kirinyoku/gamecafe/internal/logger"
	"github.com/kirinyoku/gamecafe/internal/repository"
	"github.com/kirinyoku/gamecafe/internal/repository/gormrepo"
	"github.com/kirinyoku/gamecafe/internal/uow"
)

type ConversationStore interface {
	SaveConversation(ctx context.Context, c *gormrepo.Conversation) error
	Conversations(ctx context.Context, ownerID uuid.UUID, limit int) ([]gormrepo.Conversation, error)
}

type Config struct {
	// Timeout bounds a single provider call.
	Timeout  time.Duration
	Location *time.Location
	Now      func() time.Time
}

type Service struct {
	uow      uow.Runner
	provider Provider
	store    ConversationStore
	log      *zap.Logger
	cfg      Config
}

// New builds the service. A nil provider makes every Chat fail as upstream unavailable.
func New(runner uow.Runner, provider Provider, store ConversationStore, log *zap.Logger, cfg Config) *Service {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Service{uow: runner, provider: provider, store: store, log: log, cfg: cfg}
}

type Reply struct {
	Agent    Agent   `json:"agent_type"`
	Response string  `json:"response"`
	Context  Context `json:"context"`
}

// Chat builds the café context, asks the provider and logs the exchange.
//
// Parameters:
//   - ownerID: the asking user, recorded with the conversation.
//   - agent: one of the Agent constants; empty selects the owner assistant.
//
// Returns:
//   - error: domain.ErrValidation for an unknown agent or an empty question to the owner assistant.
//   - error: domain.ErrNotFound if the café does not exist.
//   - error: domain.ErrUpstreamUnavailable if the provider failed or timed out.
func (s *Service) Chat(ctx context.Context, ownerID, cafeID uuid.UUID, agent, message string) (Reply, error) {
	const op = "service.insight.Chat"

	a, err := ParseAgent(agent)
	if err != nil {
		return Reply{}, fmt.Errorf("%s:%w", op, err)
	}

	message = strings.TrimSpace(message)
	if a == AgentOwnerAssistant && message == "" {
		return Reply{}, fmt.Errorf("%s:%w", op, domain.ValidationError{Field: "message", Reason: "required"})
	}

	snapshot, err := s.Snapshot(ctx, cafeID)
	if err != nil {
		return Reply{}, fmt.Errorf("%s:%w", op, err)
	}

	if s.provider == nil {
		return Reply{}, fmt.Errorf("%s:%w", op, domain.Upstream(errors.New("insight provider not configured")))
	}

	system, user := prompt(a, snapshot, message)

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	answer, err := s.provider.Complete(callCtx, system, user)
	if err != nil {
		return Reply{}, fmt.Errorf("%s:%w", op, domain.Upstream(err))
	}

	if s.store != nil {
		conv := &gormrepo.Conversation{
			OwnerID:   ownerID,
			CafeID:    cafeID,
			Agent:     string(a),
			Message:   message,
			Response:  answer,
			CreatedAt: s.cfg.Now().UTC(),
		}
		if err := s.store.SaveConversation(ctx, conv); err != nil {
			s.log.Warn("save conversation",
				zap.String(logger.FieldUserID, ownerID.String()),
				zap.Error(err))
		}
	}

	return Reply{Agent: a, Response: answer, Context: snapshot}, nil
}

// Snapshot aggregates the café state read-only. Day and month boundaries follow the
// café time zone.
func (s *Service) Snapshot(ctx context.Context, cafeID uuid.UUID) (Context, error) {
	const op = "service.insight.Snapshot"

	repos := s.uow.Repos()

	if _, err := repos.Cafes().Get(ctx, cafeID); err != nil {
		return Context{}, fmt.Errorf("%s:%w", op, mapRepoErr(err))
	}

	now := s.cfg.Now().In(s.cfg.Location)
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.cfg.Location)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, s.cfg.Location)

	today, err := repos.Sessions().Stats(ctx, cafeID, dayStart)
	if err != nil {
		return Context{}, fmt.Errorf("%s:%w", op, mapRepoErr(err))
	}

	month, err := repos.Sessions().Stats(ctx, cafeID, monthStart)
	if err != nil {
		return Context{}, fmt.Errorf("%s:%w", op, mapRepoErr(err))
	}

	devices, err := repos.Devices().ListByCafe(ctx, cafeID)
	if err != nil {
		return Context{}, fmt.Errorf("%s:%w", op, mapRepoErr(err))
	}

	c := Context{
		Version:        ContextVersion,
		CafeID:         cafeID,
		TotalDevices:   int(today.TotalDevices),
		ActiveSessions: int(today.ActiveSessions),
		TodayRevenue:   round2(today.RevenueSince),
		MonthRevenue:   round2(month.RevenueSince),
	}

	var occupied int
	var rates float64
	var active int
	for _, d := range devices {
		if !d.IsActive {
			continue
		}
		active++
		rates += d.HourlyRate
		if d.Status == domain.DeviceOccupied {
			occupied++
		}
	}

	if active > 0 {
		c.AvgUtilization = round2(float64(occupied) / float64(active) * 100)
		rate := round2(rates / float64(active))
		c.CurrentRate = &rate
	}

	if month.CompletedCount > 0 {
		avg := round2(month.AvgDurationHours)
		c.AvgDurationHours = &avg
	}

	if err := c.Validate(); err != nil {
		return Context{}, fmt.Errorf("%s:%w", op, err)
	}

	return c, nil
}

func (s *Service) History(ctx context.Context, ownerID uuid.UUID, limit int) ([]gormrepo.Conversation, error) {
	const op = "service.insight.History"

	if s.store == nil {
		return nil, nil
	}

	out, err := s.store.Conversations(ctx, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, domain.Upstream(err))
	}

	return out, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func mapRepoErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrUnavailable):
		return domain.Upstream(err)
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: %w", domain.ErrNotFound, err)
	}
	return err
}
