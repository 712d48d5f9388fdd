package engagement

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/stridefit/stride/internal/domain"
)

// Notifier fans domain events out to subscribed listeners.
//   - Delivery is synchronous, in subscription order, after the state is saved
//   - A panicking listener is logged and skipped; it never fails the caller
//   - Listeners must not call back into the services
type Notifier struct {
	mu        sync.RWMutex
	listeners []domain.Listener
	log       *zap.Logger
}

// NewNotifier creates an empty notifier.
func NewNotifier(log *zap.Logger) *Notifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Notifier{log: log}
}

// Subscribe registers l for every subsequent event.
func (n *Notifier) Subscribe(l domain.Listener) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.listeners = append(n.listeners, l)
}

// Publish delivers each event to every listener.
func (n *Notifier) Publish(ctx context.Context, events ...domain.Event) {
	if n == nil || len(events) == 0 {
		return
	}
	n.mu.RLock()
	listeners := append([]domain.Listener(nil), n.listeners...)
	n.mu.RUnlock()

	for _, evt := range events {
		for _, l := range listeners {
			n.deliver(ctx, l, evt)
		}
	}
}

func (n *Notifier) deliver(ctx context.Context, l domain.Listener, evt domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			n.log.Error("listener panicked",
				zap.String("event", string(evt.Type)),
				zap.String("subject", evt.SubjectID),
				zap.Any("panic", r),
			)
		}
	}()
	l.HandleEvent(ctx, evt)
}

// LogListener writes every domain event to log at info level.
func LogListener(log *zap.Logger) domain.Listener {
	log = log.Named("events")
	return domain.ListenerFunc(func(_ context.Context, evt domain.Event) {
		log.Info("domain event",
			zap.String("type", string(evt.Type)),
			zap.String("subject", evt.SubjectID),
			zap.Time("at", evt.OccurredAt),
			zap.Any("payload", evt.Payload),
		)
	})
}
