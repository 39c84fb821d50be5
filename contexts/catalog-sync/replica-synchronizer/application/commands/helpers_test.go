package commands

import (
	"context"
	"time"

	"shopgate/contexts/catalog-sync/replica-synchronizer/adapters/memory"
	"shopgate/contexts/catalog-sync/replica-synchronizer/domain/entities"
)

var testStart = time.Date(2026, time.March, 3, 9, 0, 0, 0, time.UTC)

type fixture struct {
	registry *entities.Registry
	store    *memory.Store
	index    *memory.SearchIndex
	cache    *memory.CacheStamp
	metrics  *memory.Metrics
	clock    *memory.Clock
}

func newFixture() fixture {
	registry := entities.DefaultRegistry()
	clock := memory.NewClock(testStart, time.Second)
	return fixture{
		registry: registry,
		store:    memory.NewStore(registry),
		index:    memory.NewSearchIndex(),
		cache:    memory.NewCacheStamp(clock),
		metrics:  memory.NewMetrics(),
		clock:    clock,
	}
}

func (f fixture) applier() ReplicaApplier {
	return ReplicaApplier{Registry: f.registry, Store: f.store, Clock: f.clock}
}

func (f fixture) sideEffects() SideEffects {
	return SideEffects{
		Store:     f.store,
		Projector: SearchProjector{Index: f.index},
		Cache:     f.cache,
		Metrics:   f.metrics,
	}
}

func (f fixture) schema(table string) entities.TableSchema {
	schema, _ := f.registry.Lookup(table)
	return schema
}

func insertEvent(table string, id string, data map[string]any) entities.ChangeEvent {
	return entities.ChangeEvent{Table: table, Operation: entities.OperationInsert, ID: id, Data: data}
}

func updateEvent(table string, id string, data map[string]any) entities.ChangeEvent {
	return entities.ChangeEvent{Table: table, Operation: entities.OperationUpdate, ID: id, Data: data}
}

func deleteEvent(table string, id string) entities.ChangeEvent {
	return entities.ChangeEvent{Table: table, Operation: entities.OperationDelete, ID: id}
}

type recordingSleeper struct {
	waits  []time.Duration
	before func(call int)
}

func (s *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	s.waits = append(s.waits, d)
	if s.before != nil {
		s.before(len(s.waits))
	}
	return ctx.Err()
}
