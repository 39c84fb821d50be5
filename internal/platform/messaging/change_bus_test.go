package messaging

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/surrealdb/surrealdb.go/contrib/rews"
)

// scriptedReader replays messages and then fails with err, or blocks until
// the context ends when err is nil.
type scriptedReader struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (r *scriptedReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.messages) > 0 {
		message := r.messages[0]
		r.messages = r.messages[1:]
		return message, nil
	}
	if r.err != nil {
		return kafka.Message{}, r.err
	}
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *scriptedReader) Close() error {
	r.closed = true
	return nil
}

type readerScript struct {
	mu      sync.Mutex
	readers []*scriptedReader
	opened  []string
}

func (s *readerScript) factory(channel string) MessageReader {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opened = append(s.opened, channel)
	if len(s.readers) == 0 {
		return &scriptedReader{}
	}
	reader := s.readers[0]
	s.readers = s.readers[1:]
	return reader
}

func (s *readerScript) openCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.opened)
}

func TestChangeBusDeliversMessagesInOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	script := &readerScript{readers: []*scriptedReader{{
		messages: []kafka.Message{{Value: []byte("1")}, {Value: []byte("2")}, {Value: []byte("3")}},
	}}}
	bus := newChangeBus(script.factory, nil, nil, nil)

	var mu sync.Mutex
	var got []string
	require.NoError(t, bus.Subscribe(ctx, "db.changes", func(_ context.Context, raw []byte) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, string(raw))
		return nil
	}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 3
	}, time.Second, 5*time.Millisecond)
	cancel()
	bus.Wait()

	assert.Equal(t, []string{"1", "2", "3"}, got)
}

func TestChangeBusReconnectsWithBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	broken := errors.New("broker unreachable")
	script := &readerScript{readers: []*scriptedReader{
		{err: broken},
		{err: broken},
		{messages: []kafka.Message{{Value: []byte("after")}}},
	}}

	var waitsMu sync.Mutex
	var waits []time.Duration
	sleep := func(_ context.Context, d time.Duration) error {
		waitsMu.Lock()
		defer waitsMu.Unlock()
		waits = append(waits, d)
		return nil
	}
	bus := newChangeBus(script.factory, &rews.ExponentialBackoffRetryer{
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2,
	}, sleep, nil)

	delivered := make(chan string, 1)
	require.NoError(t, bus.Subscribe(ctx, "db.changes", func(_ context.Context, raw []byte) error {
		delivered <- string(raw)
		return nil
	}))

	select {
	case value := <-delivered:
		assert.Equal(t, "after", value)
	case <-time.After(2 * time.Second):
		t.Fatal("message not delivered after reconnect")
	}
	cancel()
	bus.Wait()

	assert.Equal(t, 3, script.openCount())
	waitsMu.Lock()
	defer waitsMu.Unlock()
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, waits)
}

func TestChangeBusSurvivesHandlerErrors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	script := &readerScript{readers: []*scriptedReader{{
		messages: []kafka.Message{{Value: []byte("bad")}, {Value: []byte("good")}},
	}}}
	bus := newChangeBus(script.factory, nil, nil, nil)

	var mu sync.Mutex
	var seen []string
	require.NoError(t, bus.Subscribe(ctx, "db.changes", func(_ context.Context, raw []byte) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, string(raw))
		if string(raw) == "bad" {
			return errors.New("cannot handle")
		}
		return nil
	}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 2
	}, time.Second, 5*time.Millisecond)
	cancel()
	bus.Wait()
	assert.Equal(t, 1, script.openCount())
}

func TestChangeBusRejectsEmptyChannel(t *testing.T) {
	bus := newChangeBus((&readerScript{}).factory, nil, nil, nil)
	assert.Error(t, bus.Subscribe(context.Background(), " ", func(context.Context, []byte) error { return nil }))
}

func TestChangeBusStopsWhenBackoffGivesUp(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	broken := errors.New("broker unreachable")
	script := &readerScript{readers: []*scriptedReader{{err: broken}, {err: broken}, {err: broken}}}
	sleep := func(context.Context, time.Duration) error { return nil }
	bus := newChangeBus(script.factory, rews.NewFixedDelayRetryer(time.Millisecond, 2), sleep, nil)

	require.NoError(t, bus.Subscribe(ctx, "db.changes", func(context.Context, []byte) error { return nil }))
	bus.Wait()

	assert.Equal(t, 3, script.openCount())
}
