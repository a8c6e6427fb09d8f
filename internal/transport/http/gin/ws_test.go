package httpgin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/gamecafe/internal/domain"
	redisx "github.com/kirinyoku/gamecafe/internal/redis"
)

func TestDeviceFeed(t *testing.T) {
	hub := NewHub(nil)
	api := newTestAPI(t, Options{Hub: hub})

	srv := httptest.NewServer(api.router)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/cafes/" + api.cafe.ID.String() +
		"/devices?access_token=" + api.token(t, api.customer)

	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var snap boardSnapshot
	require.NoError(t, conn.ReadJSON(&snap))
	assert.Equal(t, "snapshot", snap.Type)
	require.Len(t, snap.Devices, 1)
	assert.Equal(t, api.device.ID, snap.Devices[0].ID)

	require.Eventually(t, func() bool { return hub.Watchers(api.cafe.ID) == 1 }, time.Second, 10*time.Millisecond)

	// events for other cafés are not delivered
	hub.Handle(context.Background(), redisx.DeviceStatusEvent{Type: "device_status", CafeID: uuid.New(), DeviceID: uuid.New()})
	hub.Handle(context.Background(), redisx.DeviceStatusEvent{
		Type:     "device_status",
		CafeID:   api.cafe.ID,
		DeviceID: api.device.ID,
		Status:   domain.DeviceOccupied,
	})

	var ev redisx.DeviceStatusEvent
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &ev))
	assert.Equal(t, api.device.ID, ev.DeviceID)
	assert.Equal(t, domain.DeviceOccupied, ev.Status)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.Watchers(api.cafe.ID) == 0 }, time.Second, 10*time.Millisecond)
}

func TestDeviceFeed_Rejects(t *testing.T) {
	api := newTestAPI(t, Options{Hub: NewHub(nil)})
	srv := httptest.NewServer(api.router)
	t.Cleanup(srv.Close)

	base := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/cafes/"

	tests := []struct {
		name string
		url  string
		want int
	}{
		{name: "no token", url: base + api.cafe.ID.String() + "/devices", want: http.StatusUnauthorized},
		{name: "unknown cafe", url: base + uuid.NewString() + "/devices?access_token=" + api.token(t, api.customer), want: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, resp, err := websocket.DefaultDialer.Dial(tt.url, nil)
			require.Error(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestHub_DropsSlowClient(t *testing.T) {
	hub := NewHub(nil)
	cafeID := uuid.New()
	cl := &wsClient{cafeID: cafeID, send: make(chan []byte, 1)}
	hub.register(cl)

	hub.Broadcast(cafeID, []byte("a"))
	assert.Equal(t, 1, hub.Watchers(cafeID))

	hub.Broadcast(cafeID, []byte("b"))
	assert.Equal(t, 0, hub.Watchers(cafeID))

	_, open := <-cl.send
	assert.True(t, open)
	_, open = <-cl.send
	assert.False(t, open)
}
