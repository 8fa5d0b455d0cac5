package notification

import (
	"context"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"

	"lab-loan-backend/internal/store"
)

// PushSender defines the interface for sending a single web push message.
type PushSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of PushSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// NoopSender discards push messages. Used when VAPID keys are not
// configured, so the rest of the system behaves identically without
// delivery credentials.
type NoopSender struct{}

// Send logs and drops the message.
func (s *NoopSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	log.Printf("push (noop) to %s: %s", sub.Endpoint, payload)
	return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody}, nil
}

// PushJob asks the pool to deliver one message to all of a user's devices.
type PushJob struct {
	UserID  string
	Message string
}

// WorkerPool manages a pool of workers for sending push notifications.
type WorkerPool struct {
	size    int
	jobs    chan PushJob
	store   store.Store
	webpush *webpush.Options
	sender  PushSender
}

// NewWorkerPool creates a new worker pool. If webpushOptions carries no
// VAPID keys the pool falls back to the no-op sender.
func NewWorkerPool(size int, s store.Store, webpushOptions *webpush.Options) *WorkerPool {
	var sender PushSender = &WebPushSender{}
	if webpushOptions == nil || webpushOptions.VAPIDPrivateKey == "" {
		sender = &NoopSender{}
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan PushJob, size*4),
		store:   s,
		webpush: webpushOptions,
		sender:  sender,
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	for {
		select {
		case job := <-wp.jobs:
			wp.deliverToUser(ctx, job)
		case <-ctx.Done():
			log.Printf("push worker %d shutting down", id)
			return
		}
	}
}

// Dispatch queues a job without blocking. If the queue is full the job is
// dropped: push delivery is best-effort and must never stall a loan
// operation or a sweep.
func (wp *WorkerPool) Dispatch(job PushJob) {
	select {
	case wp.jobs <- job:
	default:
		log.Printf("push queue full, dropping notification for user %s", job.UserID)
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan PushJob {
	return wp.jobs
}

// deliverToUser fans the message out to every device subscription the user
// holds. Per-device failures are isolated.
func (wp *WorkerPool) deliverToUser(ctx context.Context, job PushJob) {
	subs, err := wp.store.FindSubscriptionsByUser(ctx, job.UserID)
	if err != nil {
		log.Printf("error fetching subscriptions for user %s: %v", job.UserID, err)
		return
	}
	if len(subs) == 0 {
		return
	}

	for _, sub := range subs {
		wp.sendOne(ctx, sub.Endpoint, sub.P256DH, sub.Auth, []byte(job.Message))
	}
}

func (wp *WorkerPool) sendOne(ctx context.Context, endpoint, p256dh, auth string, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: endpoint,
		Keys: webpush.Keys{
			P256dh: p256dh,
			Auth:   auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Printf("error sending push to %s: %v", endpoint, err)
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone {
		log.Printf("subscription %s is expired, deleting", endpoint)
		if err := wp.store.DeleteSubscription(ctx, endpoint); err != nil {
			log.Printf("failed to delete expired subscription %s: %v", endpoint, err)
		}
	}
}
