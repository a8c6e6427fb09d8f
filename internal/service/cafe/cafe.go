package cafe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/kirinyoku/gamecafe/internal/domain"
	"github.com/kirinyoku/gamecafe/internal/repository"
	"github.com/kirinyoku/gamecafe/internal/uow"
)

type Service struct {
	uow uow.Runner
}

func New(runner uow.Runner) *Service {
	return &Service{uow: runner}
}

type Input struct {
	Name    string
	Address string
	City    string
}

// Create registers a café owned by ownerID.
//
// Returns:
//   - error: domain.ErrValidation if the name is empty.
//   - error: domain.ErrNotFound if the owner does not exist.
func (s *Service) Create(ctx context.Context, ownerID uuid.UUID, in Input) (domain.Cafe, error) {
	const op = "service.cafe.Create"

	if strings.TrimSpace(in.Name) == "" {
		return domain.Cafe{}, fmt.Errorf("%s:%w", op, domain.ValidationError{Field: "name", Reason: "required"})
	}

	c := domain.Cafe{
		ID:      uuid.New(),
		OwnerID: ownerID,
		Name:    strings.TrimSpace(in.Name),
		Address: strings.TrimSpace(in.Address),
		City:    strings.TrimSpace(in.City),
	}

	if err := s.uow.Repos().Cafes().Create(ctx, &c); err != nil {
		return domain.Cafe{}, fmt.Errorf("%s:%w", op, mapRepoErr(err))
	}

	return c, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (domain.Cafe, error) {
	const op = "service.cafe.Get"

	c, err := s.uow.Repos().Cafes().Get(ctx, id)
	if err != nil {
		return domain.Cafe{}, fmt.Errorf("%s:%w", op, mapRepoErr(err))
	}

	return c, nil
}

func (s *Service) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Cafe, error) {
	const op = "service.cafe.ListByOwner"

	cafes, err := s.uow.Repos().Cafes().ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, mapRepoErr(err))
	}

	return cafes, nil
}

// ActiveIDs lists every active café. The sweeper runs over these.
func (s *Service) ActiveIDs(ctx context.Context) ([]uuid.UUID, error) {
	const op = "service.cafe.ActiveIDs"

	ids, err := s.uow.Repos().Cafes().ListActiveIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, mapRepoErr(err))
	}

	return ids, nil
}

// EnsureOwner checks that the user may manage the café. Super admins manage every café,
// staff only the café they are attached to.
//
// Returns:
//   - domain.Cafe: the café.
//   - error: domain.ErrForbidden if the user has no rights over it.
func (s *Service) EnsureOwner(ctx context.Context, cafeID uuid.UUID, user domain.User) (domain.Cafe, error) {
	const op = "service.cafe.EnsureOwner"

	c, err := s.Get(ctx, cafeID)
	if err != nil {
		return domain.Cafe{}, fmt.Errorf("%s:%w", op, err)
	}

	switch user.Role {
	case domain.RoleSuperAdmin:
		return c, nil
	case domain.RoleCafeOwner:
		if c.OwnerID == user.ID {
			return c, nil
		}
	case domain.RoleStaff:
		if user.CafeID != nil && *user.CafeID == c.ID {
			return c, nil
		}
	}

	return domain.Cafe{}, fmt.Errorf("%s:%w", op, domain.ErrForbidden)
}

// ManagedIDs lists the cafés the user manages.
func (s *Service) ManagedIDs(ctx context.Context, user domain.User) ([]uuid.UUID, error) {
	switch user.Role {
	case domain.RoleSuperAdmin:
		return s.ActiveIDs(ctx)
	case domain.RoleStaff:
		if user.CafeID == nil {
			return nil, nil
		}
		return []uuid.UUID{*user.CafeID}, nil
	case domain.RoleCafeOwner:
		cafes, err := s.ListByOwner(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		ids := make([]uuid.UUID, 0, len(cafes))
		for _, c := range cafes {
			ids = append(ids, c.ID)
		}
		return ids, nil
	}
	return nil, nil
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
