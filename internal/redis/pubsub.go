package redisx

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/kirinyoku/gamecafe/internal/domain"
)

// DeviceStatusEvent is published after every committed device status change.
type DeviceStatusEvent struct {
	Type     string              `json:"type"`
	CafeID   uuid.UUID           `json:"cafe_id"`
	DeviceID uuid.UUID           `json:"device_id"`
	Status   domain.DeviceStatus `json:"status"`
	TsUnix   int64               `json:"ts_unix"`
}

type DevicesPubSub struct {
	rdb     *redis.Client
	channel string
}

func NewDevicesPubSub(rdb *redis.Client) *DevicesPubSub {
	return &DevicesPubSub{
		rdb:     rdb,
		channel: ChannelDeviceStatus(),
	}
}

func (p *DevicesPubSub) PublishDeviceStatus(
	ctx context.Context,
	cafeID, deviceID uuid.UUID,
	status domain.DeviceStatus,
) error {
	msg := DeviceStatusEvent{
		Type:     "device_status",
		CafeID:   cafeID,
		DeviceID: deviceID,
		Status:   status,
		TsUnix:   time.Now().Unix(),
	}

	b, _ := json.Marshal(msg)

	return p.rdb.Publish(ctx, p.channel, b).Err()
}

// Subscribe blocks until ctx is done, passing every well-formed event to handler.
func (p *DevicesPubSub) Subscribe(ctx context.Context, handler func(ctx context.Context, ev DeviceStatusEvent)) error {
	sub := p.rdb.Subscribe(ctx, p.channel)
	defer sub.Close()

	ch := sub.Channel(redis.WithChannelSize(256))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var ev DeviceStatusEvent
			if err := json.Unmarshal([]byte(m.Payload), &ev); err == nil && ev.DeviceID != uuid.Nil {
				handler(ctx, ev)
			}
		}
	}
}
