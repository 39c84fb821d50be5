package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"shopgate/contexts/catalog-sync/replica-synchronizer/domain/entities"
	"shopgate/contexts/catalog-sync/replica-synchronizer/ports"
)

// SearchIndex keeps search documents in maps keyed by id.
type SearchIndex struct {
	mu         sync.Mutex
	products   map[string]entities.ProductDocument
	categories map[string]entities.CategoryDocument
	deletes    []string
	failWith   error
}

func NewSearchIndex() *SearchIndex {
	return &SearchIndex{
		products:   make(map[string]entities.ProductDocument),
		categories: make(map[string]entities.CategoryDocument),
	}
}

// FailWith makes every later call return err; nil restores normal behavior.
func (s *SearchIndex) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = err
}

func (s *SearchIndex) IndexProduct(_ context.Context, doc entities.ProductDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	s.products[doc.ID] = doc
	return nil
}

func (s *SearchIndex) IndexCategory(_ context.Context, doc entities.CategoryDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	s.categories[doc.ID] = doc
	return nil
}

func (s *SearchIndex) Delete(_ context.Context, kind entities.SearchKind, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	switch kind {
	case entities.SearchProduct:
		delete(s.products, id)
	case entities.SearchCategory:
		delete(s.categories, id)
	default:
		return fmt.Errorf("unknown search kind %q", kind)
	}
	s.deletes = append(s.deletes, string(kind)+"/"+id)
	return nil
}

func (s *SearchIndex) Product(id string) (entities.ProductDocument, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.products[id]
	return doc, ok
}

func (s *SearchIndex) Category(id string) (entities.CategoryDocument, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.categories[id]
	return doc, ok
}

// Deletes lists removals as "<kind>/<id>" in call order.
func (s *SearchIndex) Deletes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deletes...)
}

// CacheStamp counts bumps and stores the latest token.
type CacheStamp struct {
	mu       sync.Mutex
	clock    ports.Clock
	bumps    int
	value    string
	failWith error
}

func NewCacheStamp(clock ports.Clock) *CacheStamp {
	return &CacheStamp{clock: clock}
}

func (s *CacheStamp) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = err
}

func (s *CacheStamp) Bump(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	now := time.Now().UTC()
	if s.clock != nil {
		now = s.clock.Now()
	}
	s.bumps++
	s.value = fmt.Sprintf("%d", now.UnixMilli())
	return nil
}

func (s *CacheStamp) Bumps() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bumps
}

func (s *CacheStamp) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// JobSink records published email jobs.
type JobSink struct {
	mu   sync.Mutex
	jobs []ports.EmailJob
}

func (s *JobSink) PublishEmailJob(_ context.Context, job ports.EmailJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, job)
	return nil
}

func (s *JobSink) Jobs() []ports.EmailJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ports.EmailJob(nil), s.jobs...)
}

// Broadcaster records broadcast events in order.
type Broadcaster struct {
	mu     sync.Mutex
	events []string
	notify chan struct{}
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{notify: make(chan struct{}, 64)}
}

func (b *Broadcaster) Broadcast(_ context.Context, event string) error {
	b.mu.Lock()
	b.events = append(b.events, event)
	b.mu.Unlock()
	select {
	case b.notify <- struct{}{}:
	default:
	}
	return nil
}

func (b *Broadcaster) Events() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.events...)
}

// Signals fires once per broadcast, best effort.
func (b *Broadcaster) Signals() <-chan struct{} {
	return b.notify
}

// Metrics counts observations by joined label values.
type Metrics struct {
	mu       sync.Mutex
	applies  map[string]int
	drops    map[string]int
	retries  map[string]int
	failures map[string]int
}

func NewMetrics() *Metrics {
	return &Metrics{
		applies:  make(map[string]int),
		drops:    make(map[string]int),
		retries:  make(map[string]int),
		failures: make(map[string]int),
	}
}

func (m *Metrics) ObserveApply(table string, operation string, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applies[table+"/"+operation+"/"+outcome]++
}

func (m *Metrics) ObserveDrop(table string, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drops[table+"/"+reason]++
}

func (m *Metrics) ObserveRetry(table string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retries[table]++
}

func (m *Metrics) ObserveSideEffectFailure(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[kind]++
}

func (m *Metrics) Applies(table string, operation string, outcome string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applies[table+"/"+operation+"/"+outcome]
}

func (m *Metrics) Drops(table string, reason string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.drops[table+"/"+reason]
}

func (m *Metrics) Retries(table string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.retries[table]
}

func (m *Metrics) SideEffectFailures(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failures[kind]
}

// Clock returns a fixed instant that moves forward by Step on every call.
type Clock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func NewClock(start time.Time, step time.Duration) *Clock {
	return &Clock{now: start.UTC(), step: step}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now
	c.now = c.now.Add(c.step)
	return now
}

// SequenceIDs yields job-1, job-2, ...
type SequenceIDs struct {
	mu   sync.Mutex
	next int
}

func (g *SequenceIDs) NewID(_ context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return fmt.Sprintf("job-%d", g.next), nil
}

var _ ports.SearchIndex = (*SearchIndex)(nil)
var _ ports.CacheStamp = (*CacheStamp)(nil)
var _ ports.EmailJobPublisher = (*JobSink)(nil)
var _ ports.Broadcaster = (*Broadcaster)(nil)
var _ ports.Metrics = (*Metrics)(nil)
var _ ports.Clock = (*Clock)(nil)
var _ ports.IDGenerator = (*SequenceIDs)(nil)
