package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidState        = errors.New("invalid state")
	ErrDeviceUnavailable   = errors.New("device unavailable")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidCoupon       = errors.New("invalid coupon")
	ErrCouponExpired       = errors.New("coupon expired")
	ErrCouponLimitReached  = errors.New("coupon usage limit reached")
	ErrValidation          = errors.New("validation error")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrConflict            = errors.New("conflict")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrForbidden           = errors.New("forbidden")
	ErrRateLimited         = errors.New("rate limited")
)

type DeviceUnavailableError struct {
	DeviceID uuid.UUID
	Status   DeviceStatus
}

func (e DeviceUnavailableError) Error() string {
	if e.Status == "" {
		return fmt.Sprintf("device %s unavailable", e.DeviceID)
	}
	return fmt.Sprintf("device %s unavailable: status %s", e.DeviceID, e.Status)
}

func (e DeviceUnavailableError) Is(target error) bool {
	return target == ErrDeviceUnavailable
}

type InvalidStateError struct {
	Entity string
	Status string
	Op     string
}

func (e InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s %s in status %s", e.Op, e.Entity, e.Status)
}

func (e InvalidStateError) Is(target error) bool {
	return target == ErrInvalidState
}

type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Upstream wraps a collaborator failure so callers can tell it apart from business-rule failures.
func Upstream(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
}
