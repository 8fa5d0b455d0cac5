package notification

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"lab-loan-backend/internal/model"
	"lab-loan-backend/internal/store"
)

// Gateway is the capability the loan engine uses to reach users. Delivery is
// best-effort: a failure here must never surface as a failed loan operation.
type Gateway interface {
	// Notify records an in-app notification and queues best-effort push
	// delivery. It never returns an error to the caller.
	Notify(ctx context.Context, userID string, typ model.NotificationType, message string)

	// HasNotificationToday reports whether a notification of the given type
	// matching the message pattern was already sent to the user within the
	// calendar day containing now.
	HasNotificationToday(ctx context.Context, userID string, typ model.NotificationType, pattern string, now time.Time) (bool, error)
}

// gateway persists notification records synchronously and hands push
// delivery to a worker pool.
type gateway struct {
	store store.Store
	pool  *WorkerPool
}

// NewGateway creates a Gateway backed by the given store and worker pool.
// The pool may be nil, in which case no push delivery is attempted (in-app
// records are still written).
func NewGateway(s store.Store, pool *WorkerPool) Gateway {
	return &gateway{store: s, pool: pool}
}

func (g *gateway) Notify(ctx context.Context, userID string, typ model.NotificationType, message string) {
	n := &model.Notification{
		ID:      uuid.NewString(),
		UserID:  userID,
		Type:    typ,
		Message: message,
		SentAt:  time.Now().UTC(),
	}
	if err := g.store.CreateNotification(ctx, n); err != nil {
		log.Printf("notification: failed to record notification for user %s: %v", userID, err)
		return
	}

	if g.pool != nil {
		g.pool.Dispatch(PushJob{UserID: userID, Message: message})
	}
}

func (g *gateway) HasNotificationToday(ctx context.Context, userID string, typ model.NotificationType, pattern string, now time.Time) (bool, error) {
	return g.store.HasNotificationToday(ctx, userID, typ, pattern, now)
}
