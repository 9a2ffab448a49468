// Package eventbus is the in-process fan-out between the payment event
// router and its listeners.
package eventbus

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"accounting-sync/internal/core/domain"
	"accounting-sync/internal/core/ports"
)

// Bus delivers each event synchronously to every handler subscribed to its
// channel, in subscription order.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]ports.EventHandler
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{handlers: make(map[string][]ports.EventHandler)}
}

// Subscribe registers handler on channel.
func (b *Bus) Subscribe(channel string, handler ports.EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[channel] = append(b.handlers[channel], handler)
}

// Publish runs every handler of channel. All handlers run even when one
// fails; the joined error is returned. A channel with no handlers is a no-op.
func (b *Bus) Publish(ctx context.Context, channel string, event domain.NormalizedPaymentEvent) error {
	b.mu.RLock()
	handlers := slices.Clone(b.handlers[channel])
	b.mu.RUnlock()

	var errs []error
	for _, h := range handlers {
		if err := invoke(ctx, h, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func invoke(ctx context.Context, h ports.EventHandler, event domain.NormalizedPaymentEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("event handler panic: %v", r)
		}
	}()
	return h(ctx, event)
}
