package device

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/gamecafe/internal/domain"
)

func TestLogHealth(t *testing.T) {
	ctx := context.Background()
	r, _, cafeID := newRegistry(t)

	d, err := r.Create(ctx, cafeID, Spec{Name: "PC-1", Type: domain.DevicePC, HourlyRate: 100})
	require.NoError(t, err)
	other, err := r.Create(ctx, cafeID, Spec{Name: "PC-2", Type: domain.DevicePC, HourlyRate: 100})
	require.NoError(t, err)

	l, err := r.LogHealth(ctx, d.ID, " Temperature ", "71C")
	require.NoError(t, err)
	assert.Equal(t, "temperature", l.Metric)
	assert.Equal(t, cafeID, l.CafeID)
	assert.False(t, l.RecordedAt.IsZero())

	_, err = r.LogHealth(ctx, d.ID, "uptime", "36h")
	require.NoError(t, err)
	_, err = r.LogHealth(ctx, other.ID, "uptime", "2h")
	require.NoError(t, err)

	logs, err := r.Health(ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "uptime", logs[0].Metric)
	assert.Equal(t, "temperature", logs[1].Metric)

	// readings never touch status
	got, err := r.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DeviceAvailable, got.Status)
}

func TestLogHealth_Validation(t *testing.T) {
	ctx := context.Background()
	r, _, cafeID := newRegistry(t)

	d, err := r.Create(ctx, cafeID, Spec{Name: "PC-1", Type: domain.DevicePC, HourlyRate: 100})
	require.NoError(t, err)

	tests := []struct {
		name   string
		metric string
		value  string
	}{
		{name: "no metric", metric: "", value: "1"},
		{name: "metric with spaces", metric: "fan speed", value: "1"},
		{name: "metric too long", metric: strings.Repeat("a", 65), value: "1"},
		{name: "no value", metric: "uptime", value: "  "},
		{name: "value too long", metric: "uptime", value: strings.Repeat("x", 257)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.LogHealth(ctx, d.ID, tt.metric, tt.value)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}

	_, err = r.LogHealth(ctx, uuid.New(), "uptime", "1h")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	logs, err := r.Health(ctx, d.ID)
	require.NoError(t, err)
	assert.Empty(t, logs)
}
