package memory

import (
	"context"
	"sync"

	"shopgate/contexts/catalog-sync/replica-synchronizer/domain/entities"
	"shopgate/contexts/catalog-sync/replica-synchronizer/ports"
)

// ChangeFeed delivers raw channel messages synchronously on Publish, so a
// test sees every effect of a message once Publish returns.
type ChangeFeed struct {
	mu       sync.Mutex
	handlers map[string][]func(context.Context, []byte) error
}

func NewChangeFeed() *ChangeFeed {
	return &ChangeFeed{handlers: make(map[string][]func(context.Context, []byte) error)}
}

func (f *ChangeFeed) Subscribe(_ context.Context, channel string, handler func(context.Context, []byte) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[channel] = append(f.handlers[channel], handler)
	return nil
}

// Publish returns the first handler error, after every handler ran.
func (f *ChangeFeed) Publish(ctx context.Context, channel string, raw []byte) error {
	f.mu.Lock()
	handlers := append([]func(context.Context, []byte) error(nil), f.handlers[channel]...)
	f.mu.Unlock()

	var first error
	for _, handler := range handlers {
		if err := handler(ctx, raw); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// AppliedFeed is the synchronous counterpart of the in-process broker.
type AppliedFeed struct {
	mu       sync.Mutex
	handlers []func(context.Context, entities.AppliedChange) error
	changes  []entities.AppliedChange
}

func (f *AppliedFeed) Publish(ctx context.Context, change entities.AppliedChange) error {
	f.mu.Lock()
	f.changes = append(f.changes, change)
	handlers := append([]func(context.Context, entities.AppliedChange) error(nil), f.handlers...)
	f.mu.Unlock()

	for _, handler := range handlers {
		if err := handler(ctx, change); err != nil {
			return err
		}
	}
	return nil
}

func (f *AppliedFeed) Subscribe(
	_ context.Context,
	_ string,
	handler func(context.Context, entities.AppliedChange) error,
) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers = append(f.handlers, handler)
	return nil
}

// Changes lists every published signal in order.
func (f *AppliedFeed) Changes() []entities.AppliedChange {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]entities.AppliedChange(nil), f.changes...)
}

var _ ports.ChangeSubscriber = (*ChangeFeed)(nil)
var _ ports.AppliedPublisher = (*AppliedFeed)(nil)
var _ ports.AppliedSubscriber = (*AppliedFeed)(nil)
