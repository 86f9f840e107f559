package session

import (
	"context"
	"slices"

	"github.com/victornm/quizarena/internal/domain"
	"github.com/victornm/quizarena/internal/event"
)

// Notifier hands outbound messages to the event bus. Subscribers that need
// per-recipient order, such as the pubsub transport, subscribe with
// SubscribeOrdered; Notify then only enqueues and never waits on delivery.
type Notifier struct {
	eb *event.Bus
}

func NewNotifier(eb *event.Bus) *Notifier {
	return &Notifier{eb: eb}
}

func (n *Notifier) Notify(ctx context.Context, recipients []string, m domain.Message) {
	if len(recipients) == 0 {
		return
	}

	n.eb.Publish(ctx, domain.EventNotificationRequested{
		Recipients: slices.Clone(recipients),
		Message:    m,
	})
}
