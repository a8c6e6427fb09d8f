// Package notify delivers customer alerts as web push notifications from a worker pool.
package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kirinyoku/gamecafe/internal/logger"
	"github.com/kirinyoku/gamecafe/internal/repository/gormrepo"
)

// Sender sends a single web push message.
type Sender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender sends through the push service named in the subscription endpoint.
type WebPushSender struct{}

func (WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

type Subscriptions interface {
	Subscriptions(ctx context.Context, userID uuid.UUID) ([]gormrepo.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
}

type Config struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subscriber      string
	Workers         int
	TTL             int
}

type Message struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type job struct {
	userID uuid.UUID
	msg    Message
}

// Pool fans notifications out to the user's registered endpoints.
type Pool struct {
	subs    Subscriptions
	sender  Sender
	options *webpush.Options
	jobs    chan job
	workers int
	log     *zap.Logger
}

func NewPool(subs Subscriptions, sender Sender, log *zap.Logger, cfg Config) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 3600
	}
	if sender == nil {
		sender = WebPushSender{}
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Pool{
		subs:   subs,
		sender: sender,
		options: &webpush.Options{
			Subscriber:      cfg.Subscriber,
			VAPIDPublicKey:  cfg.VAPIDPublicKey,
			VAPIDPrivateKey: cfg.VAPIDPrivateKey,
			TTL:             cfg.TTL,
		},
		jobs:    make(chan job, cfg.Workers*16),
		workers: cfg.Workers,
		log:     log,
	}
}

// NotifyCustomer queues a message. It never blocks; when the queue is full the message
// is dropped.
func (p *Pool) NotifyCustomer(_ context.Context, customerID uuid.UUID, title, body string) {
	select {
	case p.jobs <- job{userID: customerID, msg: Message{Title: title, Body: body}}:
	default:
		p.log.Warn("push queue full, dropping notification",
			zap.String(logger.FieldUserID, customerID.String()))
	}
}

// Run starts the workers and blocks until ctx is done.
func (p *Pool) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.worker(ctx)
		}()
	}
	wg.Wait()
	return nil
}

func (p *Pool) worker(ctx context.Context) {
	for {
		select {
		case j := <-p.jobs:
			p.deliver(ctx, j)
		case <-ctx.Done():
			return
		}
	}
}

func (p *Pool) deliver(ctx context.Context, j job) {
	subs, err := p.subs.Subscriptions(ctx, j.userID)
	if err != nil {
		p.log.Warn("load push subscriptions",
			zap.String(logger.FieldUserID, j.userID.String()),
			zap.Error(err))
		return
	}

	if len(subs) == 0 {
		return
	}

	payload, err := json.Marshal(j.msg)
	if err != nil {
		return
	}

	for _, sub := range subs {
		p.send(ctx, sub, payload)
	}
}

func (p *Pool) send(ctx context.Context, sub gormrepo.PushSubscription, payload []byte) {
	resp, err := p.sender.Send(payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys:     webpush.Keys{P256dh: sub.P256DH, Auth: sub.Auth},
	}, p.options)
	if err != nil {
		p.log.Warn("send push", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound {
		if err := p.subs.DeleteSubscription(ctx, sub.Endpoint); err != nil {
			p.log.Warn("delete expired subscription", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		}
	}
}
