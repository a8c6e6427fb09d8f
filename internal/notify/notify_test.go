package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/gamecafe/internal/repository/gormrepo"
)

type fakeSubs struct {
	mu      sync.Mutex
	subs    map[uuid.UUID][]gormrepo.PushSubscription
	deleted []string
}

func (f *fakeSubs) Subscriptions(_ context.Context, userID uuid.UUID) ([]gormrepo.PushSubscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subs[userID], nil
}

func (f *fakeSubs) DeleteSubscription(_ context.Context, endpoint string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, endpoint)
	return nil
}

func (f *fakeSubs) deletedEndpoints() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

type mockSender struct {
	SendFunc func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

func (m *mockSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return m.SendFunc(payload, sub, options)
}

func response(code int) *http.Response {
	return &http.Response{StatusCode: code, Body: io.NopCloser(bytes.NewReader(nil))}
}

func TestPool_DeliversAndPrunesGoneEndpoints(t *testing.T) {
	user := uuid.New()
	subs := &fakeSubs{subs: map[uuid.UUID][]gormrepo.PushSubscription{
		user: {
			{Endpoint: "https://push.example/live", UserID: user, P256DH: "p", Auth: "a"},
			{Endpoint: "https://push.example/gone", UserID: user, P256DH: "p", Auth: "a"},
		},
	}}

	var (
		mu       sync.Mutex
		payloads []Message
		wg       sync.WaitGroup
	)
	wg.Add(2)
	sender := &mockSender{SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
		defer wg.Done()
		assert.Equal(t, "vapid-public", options.VAPIDPublicKey)

		var m Message
		require.NoError(t, json.Unmarshal(payload, &m))
		mu.Lock()
		payloads = append(payloads, m)
		mu.Unlock()

		if sub.Endpoint == "https://push.example/gone" {
			return response(http.StatusGone), nil
		}
		return response(http.StatusCreated), nil
	}}

	pool := NewPool(subs, sender, nil, Config{VAPIDPublicKey: "vapid-public", Workers: 1})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = pool.Run(ctx)
		close(done)
	}()

	pool.NotifyCustomer(ctx, user, "Session overstay", "pricing applies")
	wg.Wait()

	assert.Eventually(t, func() bool {
		return len(subs.deletedEndpoints()) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"https://push.example/gone"}, subs.deletedEndpoints())

	mu.Lock()
	require.Len(t, payloads, 2)
	assert.Equal(t, "Session overstay", payloads[0].Title)
	mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pool did not stop")
	}
}

func TestPool_NotifyNeverBlocks(t *testing.T) {
	pool := NewPool(&fakeSubs{}, &mockSender{}, nil, Config{Workers: 1})

	finished := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			pool.NotifyCustomer(context.Background(), uuid.New(), "t", "b")
		}
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("NotifyCustomer blocked without running workers")
	}
}
