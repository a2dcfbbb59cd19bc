package plugins

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wintent/plugin-config/pkg/logger"
)

// Lifecycle events emitted by the Manager.
const (
	EventAfterInstallPlugin = "afterInstallPlugin"
	EventAfterEnablePlugin  = "afterEnablePlugin"
	EventAfterDisablePlugin = "afterDisablePlugin"
)

// Event is delivered to subscribers of a lifecycle event.
type Event struct {
	Name   string
	Plugin Descriptor
}

// Handler reacts to an emitted event.
type Handler func(ctx context.Context, event Event) error

// Subscriber is the registration side of the bus handed to plugins.
type Subscriber interface {
	On(event string, handler Handler)
}

// EventBus dispatches lifecycle events to handlers in registration order.
type EventBus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	log      *zap.Logger
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{
		handlers: make(map[string][]Handler),
		log:      logger.WithModule("events"),
	}
}

// On registers handler for event. Nil handlers are ignored.
func (b *EventBus) On(event string, handler Handler) {
	event = strings.TrimSpace(event)
	if event == "" || handler == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[event] = append(b.handlers[event], handler)
}

// Count returns the number of handlers registered for event.
func (b *EventBus) Count(event string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[event])
}

// Emit runs every handler for event sequentially. A failing or panicking handler is
// logged and does not stop later handlers; all failures are returned combined.
func (b *EventBus) Emit(ctx context.Context, event string, plugin Descriptor) error {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[event]...)
	b.mu.RUnlock()

	payload := Event{Name: event, Plugin: plugin}
	var errs error
	for i, handler := range handlers {
		if err := b.invoke(ctx, handler, payload); err != nil {
			b.log.Error("event handler failed",
				zap.String("event", event),
				zap.String("plugin", plugin.Name),
				zap.Int("handler", i),
				zap.Error(err),
			)
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

func (b *EventBus) invoke(ctx context.Context, handler Handler, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("events: handler panic: %v", r)
		}
	}()
	return handler(ctx, event)
}
