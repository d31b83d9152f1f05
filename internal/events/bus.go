package events

import (
	"context"
	"log/slog"
	"sync"

	rpgevents "github.com/KirkDiggler/rpg-toolkit/events"

	"github.com/KirkDiggler/rpg-dungeon/internal/errors"
)

//go:generate mockgen -destination=mock/mock_bus.go -package=eventsmock github.com/KirkDiggler/rpg-dungeon/internal/events Bus

// HandlerFunc handles one published event
type HandlerFunc func(ctx context.Context, e Event) error

// Bus delivers events synchronously to subscribers
type Bus interface {
	// Subscribe registers h for events of type t and returns the subscription id
	Subscribe(t Type, h HandlerFunc) string
	Unsubscribe(id string) error
	// Publish calls every handler for the event's type in subscription order.
	// Handler errors are joined; a failing handler does not stop the others.
	Publish(ctx context.Context, e Event) error
	Close()
}

// RunBus is the Bus of one run, layered on a rpg-toolkit EventBus. Toolkit
// handlers subscribed directly on the underlying bus receive the same
// GameEvents, with the fields of the typed event in their context.
type RunBus struct {
	bus rpgevents.EventBus

	mu     sync.Mutex
	order  int
	closed bool
}

// NewBus returns a RunBus over a fresh toolkit bus
func NewBus() *RunBus {
	return NewRunBus(rpgevents.NewBus())
}

// NewRunBus layers a RunBus over bus
func NewRunBus(bus rpgevents.EventBus) *RunBus {
	return &RunBus{bus: bus}
}

var _ Bus = (*RunBus)(nil)

// Toolkit returns the underlying toolkit bus
func (b *RunBus) Toolkit() rpgevents.EventBus {
	return b.bus
}

type collectorKey struct{}

// collector gathers handler errors of one Publish so every handler runs
type collector struct {
	errs []error
}

// Subscribe implements Bus. Each subscription gets the next priority, which
// makes the toolkit bus run handlers in subscription order.
func (b *RunBus) Subscribe(t Type, h HandlerFunc) string {
	b.mu.Lock()
	b.order++
	priority := b.order
	b.mu.Unlock()

	return b.bus.SubscribeFunc(string(t), priority, func(ctx context.Context, ge rpgevents.Event) error {
		e, ok := Decode(ge)
		if !ok {
			return nil
		}
		err := h(ctx, e)
		if err == nil {
			return nil
		}
		slog.Warn("Event handler failed", "event", ge.Type(), "error", err)
		if c, ok := ctx.Value(collectorKey{}).(*collector); ok {
			c.errs = append(c.errs, err)
			return nil
		}
		return err
	})
}

// Unsubscribe implements Bus
func (b *RunBus) Unsubscribe(id string) error {
	if err := b.bus.Unsubscribe(id); err != nil {
		return errors.WrapWithCode(err, errors.CodeNotFound, "failed to unsubscribe").
			WithMeta("subscription_id", id)
	}
	return nil
}

// Publish implements Bus. Handlers may publish or subscribe themselves.
func (b *RunBus) Publish(ctx context.Context, e Event) error {
	if e == nil {
		return errors.InvalidArgument("event is required")
	}

	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return errors.Unavailable("event bus is closed")
	}

	c := &collector{}
	err := b.bus.Publish(context.WithValue(ctx, collectorKey{}, c), Encode(e))
	return errors.Join(append(c.errs, err)...)
}

// Close drops every subscription; later publishes fail
func (b *RunBus) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()

	b.bus.ClearAll()
}
