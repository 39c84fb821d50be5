package workers

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"shopgate/contexts/catalog-sync/replica-synchronizer/adapters/memory"
	"shopgate/contexts/catalog-sync/replica-synchronizer/application/commands"
	"shopgate/contexts/catalog-sync/replica-synchronizer/domain/entities"
	"shopgate/internal/platform/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type consumerFixture struct {
	store    *memory.Store
	index    *memory.SearchIndex
	cache    *memory.CacheStamp
	metrics  *memory.Metrics
	applied  *memory.AppliedFeed
	feed     *memory.ChangeFeed
	consumer ChangeConsumer
}

func newConsumerFixture() consumerFixture {
	registry := entities.DefaultRegistry()
	clock := memory.NewClock(time.Date(2026, time.March, 3, 9, 0, 0, 0, time.UTC), time.Second)
	store := memory.NewStore(registry)
	index := memory.NewSearchIndex()
	cache := memory.NewCacheStamp(clock)
	metrics := memory.NewMetrics()
	applied := &memory.AppliedFeed{}
	feed := memory.NewChangeFeed()

	applier := commands.OrderedApplier{
		Applier:  commands.ReplicaApplier{Registry: registry, Store: store, Clock: clock},
		Attempts: 2,
		Delay:    time.Millisecond,
		Sleep:    func(ctx context.Context, _ time.Duration) error { return ctx.Err() },
		Metrics:  metrics,
	}
	return consumerFixture{
		store:   store,
		index:   index,
		cache:   cache,
		metrics: metrics,
		applied: applied,
		feed:    feed,
		consumer: ChangeConsumer{
			Subscriber: feed,
			Applier:    applier,
			SideEffects: commands.SideEffects{
				Store:     store,
				Projector: commands.SearchProjector{Index: index},
				Cache:     cache,
				Metrics:   metrics,
			},
			Publisher: applied,
			Metrics:   metrics,
		},
	}
}

func TestChangeConsumerAppliesAndSignals(t *testing.T) {
	f := newConsumerFixture()
	require.NoError(t, f.consumer.Start(context.Background()))

	require.NoError(t, f.feed.Publish(context.Background(), DefaultChangeChannel, []byte(
		`{"table":"categories","operation":"INSERT","id":"c1","data":{"name":"Kitchen","slug":"kitchen"}}`,
	)))

	_, ok := f.store.Row("categories", "c1")
	assert.True(t, ok)
	doc, ok := f.index.Category("c1")
	require.True(t, ok)
	assert.Equal(t, "Kitchen", doc.Name)
	assert.Equal(t, 1, f.cache.Bumps())
	assert.Equal(t, 1, f.metrics.Applies("categories", "INSERT", "applied"))

	changes := f.applied.Changes()
	require.Len(t, changes, 1)
	assert.Equal(t, "categories", changes[0].Resource)
	assert.Equal(t, "c1", changes[0].ID)
	assert.Equal(t, entities.OperationInsert, changes[0].Operation)
}

func TestChangeConsumerDropsUndecodableMessages(t *testing.T) {
	f := newConsumerFixture()

	assert.NoError(t, f.consumer.Handle(context.Background(), []byte(`not json`)))
	assert.Equal(t, 1, f.metrics.Drops("", "decode"))
	assert.Empty(t, f.applied.Changes())
}

func TestChangeConsumerDropsUnknownTables(t *testing.T) {
	f := newConsumerFixture()

	assert.NoError(t, f.consumer.Handle(context.Background(), []byte(
		`{"table":"sessions","operation":"INSERT","id":"s1","data":{}}`,
	)))
	assert.Equal(t, 1, f.metrics.Drops("sessions", "permanent"))
}

func TestChangeConsumerLogsCarryTraceID(t *testing.T) {
	f := newConsumerFixture()
	var buf bytes.Buffer
	logger := logging.New(&buf, "debug", "json")
	f.consumer.Logger = logger
	f.consumer.Applier.Logger = logger

	provider := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	ctx, span := provider.Tracer("change-consumer-test").Start(context.Background(), "change_bus.message")
	defer span.End()
	traceID := span.SpanContext().TraceID().String()

	require.NoError(t, f.consumer.Handle(ctx, []byte("{not json")))
	require.NoError(t, f.consumer.Handle(ctx, []byte(
		`{"table":"sessions","operation":"INSERT","id":"s1","data":{}}`,
	)))
	require.NoError(t, f.consumer.Handle(ctx, []byte(
		`{"table":"order_items","operation":"INSERT","id":"oi1","data":{"order_id":"o404","quantity":1}}`,
	)))

	events := map[string]bool{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var record map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &record))
		assert.Equal(t, traceID, record["trace_id"], "record %v", record["event"])
		events[record["event"].(string)] = true
	}
	assert.True(t, events["replica_event_decode_failed"])
	assert.True(t, events["replica_event_dropped"])
	assert.True(t, events["replica_apply_ordering_retry"])
	assert.True(t, events["replica_apply_retry_exhausted"])
}

func TestChangeConsumerDropsAfterOrderingRetries(t *testing.T) {
	f := newConsumerFixture()

	assert.NoError(t, f.consumer.Handle(context.Background(), []byte(
		`{"table":"order_items","operation":"INSERT","id":"oi1","data":{"order_id":"o404","quantity":1}}`,
	)))
	assert.Equal(t, 1, f.metrics.Drops("order_items", "ordering"))
	assert.Equal(t, 2, f.metrics.Retries("order_items"))
	assert.Equal(t, 0, f.store.Count("order_items"))
}

func TestChangeConsumerSkipsSignalWhenNothingWritten(t *testing.T) {
	f := newConsumerFixture()

	assert.NoError(t, f.consumer.Handle(context.Background(), []byte(
		`{"table":"users","operation":"INSERT","id":"u1","data":{"email":"oauth@example.com"}}`,
	)))
	assert.Equal(t, 1, f.metrics.Applies("users", "INSERT", "skipped"))
	assert.Empty(t, f.applied.Changes())
	assert.Equal(t, 0, f.store.Count("users"))
}

func TestChangeConsumerKeepsGoingAfterSideEffectFailure(t *testing.T) {
	f := newConsumerFixture()
	f.index.FailWith(assert.AnError)

	assert.NoError(t, f.consumer.Handle(context.Background(), []byte(
		`{"table":"categories","operation":"INSERT","id":"c1","data":{"name":"Kitchen"}}`,
	)))
	_, ok := f.store.Row("categories", "c1")
	assert.True(t, ok)
	assert.Equal(t, 1, f.metrics.SideEffectFailures("search"))
	assert.Len(t, f.applied.Changes(), 1)
}
