package mq

import (
	"context"
	"sync"
)

// Publisher/Subscriber keep the broker swappable; Bus is the in-process one.

type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

type Subscriber interface {
	Subscribe(topic string, handler func([]byte) error) error
}

type Noop struct{}

func (Noop) Publish(ctx context.Context, topic string, payload []byte) error { return nil }
func (Noop) Subscribe(topic string, handler func([]byte) error) error        { return nil }

// Bus delivers each message synchronously to every handler of its topic, in
// subscription order. The first handler error is returned to the publisher
// after all handlers have run.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]func([]byte) error
}

func NewBus() *Bus { return &Bus{handlers: make(map[string][]func([]byte) error)} }

func (b *Bus) Subscribe(topic string, handler func([]byte) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], handler)
	return nil
}

func (b *Bus) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.RLock()
	hs := append([]func([]byte) error(nil), b.handlers[topic]...)
	b.mu.RUnlock()

	var first error
	for _, h := range hs {
		if err := h(payload); err != nil && first == nil {
			first = err
		}
	}
	return first
}
