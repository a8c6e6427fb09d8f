package device

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/kirinyoku/gamecafe/internal/domain"
)

const (
	healthHistoryLimit = 100
	maxHealthValue     = 256
)

var metricName = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)

// LogHealth records one metric reading for the device. Metric names are lower snake case
// (temperature, uptime, gpu_errors); values are stored as reported.
//
// Returns:
//   - domain.DeviceHealthLog: the stored reading.
//   - error: domain.ErrValidation on a malformed metric or value.
//   - error: domain.ErrNotFound if the device does not exist.
func (r *Registry) LogHealth(ctx context.Context, deviceID uuid.UUID, metric, value string) (domain.DeviceHealthLog, error) {
	const op = "service.device.LogHealth"

	metric = strings.ToLower(strings.TrimSpace(metric))
	if !metricName.MatchString(metric) {
		return domain.DeviceHealthLog{}, fmt.Errorf("%s:%w", op,
			domain.ValidationError{Field: "metric", Reason: "must be lower snake case, at most 64 characters"})
	}

	value = strings.TrimSpace(value)
	if value == "" || utf8.RuneCountInString(value) > maxHealthValue {
		return domain.DeviceHealthLog{}, fmt.Errorf("%s:%w", op,
			domain.ValidationError{Field: "value", Reason: fmt.Sprintf("required, at most %d characters", maxHealthValue)})
	}

	repos := r.uow.Repos()

	d, err := repos.Devices().Get(ctx, deviceID)
	if err != nil {
		return domain.DeviceHealthLog{}, fmt.Errorf("%s:%w", op, mapRepoErr(err))
	}

	l := domain.DeviceHealthLog{
		ID:         uuid.New(),
		DeviceID:   d.ID,
		CafeID:     d.CafeID,
		Metric:     metric,
		Value:      value,
		RecordedAt: r.cfg.Now().UTC(),
	}

	if err := repos.HealthLogs().Append(ctx, &l); err != nil {
		return domain.DeviceHealthLog{}, fmt.Errorf("%s:%w", op, mapRepoErr(err))
	}

	return l, nil
}

// Health returns the device's latest readings, newest first.
func (r *Registry) Health(ctx context.Context, deviceID uuid.UUID) ([]domain.DeviceHealthLog, error) {
	const op = "service.device.Health"

	logs, err := r.uow.Repos().HealthLogs().ListByDevice(ctx, deviceID, healthHistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, mapRepoErr(err))
	}

	return logs, nil
}
