package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"RecoBoard/internal/domain/models"
)

var kst = time.FixedZone("KST", 9*60*60)

// monday is 2024-05-06 in KST at the given hour.
func monday(hour int) time.Time {
	return time.Date(2024, time.May, 6, hour, 0, 0, 0, kst)
}

func sampleFeed() []models.RawRecord {
	return []models.RawRecord{
		{InstrumentID: "005930", DisplayName: "Samsung", Status: "ACTIVE", AnchorDate: "2024-05-06"},
		{InstrumentID: "000660", Status: "WEAK_WARNING", AnchorDate: "2024-05-02"},
		{InstrumentID: "035420", Status: "ACTIVE", AnchorDate: "2024-04-29"},
		{InstrumentID: "051910", Status: "BROKEN", AnchorDate: "2024-04-01", StatusChangedAt: "2024-05-06", ArchiveReason: "STOP_LOSS"},
		{InstrumentID: "068270", Status: "ARCHIVED", AnchorDate: "2024-03-01", ArchiveReason: "TARGET_HIT"},
	}
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

type fakeSource struct {
	mu      sync.Mutex
	records []models.RawRecord
	err     error
	calls   int
}

func (s *fakeSource) Fetch(context.Context) ([]models.RawRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.records, nil
}

func (s *fakeSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type fakeMetrics struct {
	mu        sync.Mutex
	snapshots map[string]int
	anomalies map[string]int
	banners   map[string]int
	errors    map[string]int
	sections  [3]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{
		snapshots: map[string]int{},
		anomalies: map[string]int{},
		banners:   map[string]int{},
		errors:    map[string]int{},
	}
}

func (m *fakeMetrics) RecordSnapshot(source string, _ int) {
	m.mu.Lock()
	m.snapshots[source]++
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordAnomaly(kind string) {
	m.mu.Lock()
	m.anomalies[kind]++
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordBanner(state string) {
	m.mu.Lock()
	m.banners[state]++
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordSections(active, needsAttention, archived int) {
	m.mu.Lock()
	m.sections = [3]int{active, needsAttention, archived}
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordError(kind string) {
	m.mu.Lock()
	m.errors[kind]++
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordLatency(string, float64) {}

func (m *fakeMetrics) errorCount(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[kind]
}

type published struct {
	msgType string
	payload interface{}
}

type fakeQueue struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (q *fakeQueue) PublishMessage(_ context.Context, msgType string, payload interface{}) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.msgs = append(q.msgs, published{msgType: msgType, payload: payload})
	return nil
}

func (q *fakeQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.msgs)
}

type fakeEvents struct {
	mu     sync.Mutex
	events []models.BannerChangedEvent
}

func (e *fakeEvents) PublishBannerChanged(_ context.Context, ev *models.BannerChangedEvent) error {
	e.mu.Lock()
	e.events = append(e.events, *ev)
	e.mu.Unlock()
	return nil
}

func (e *fakeEvents) Close() error { return nil }

func (e *fakeEvents) All() []models.BannerChangedEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]models.BannerChangedEvent(nil), e.events...)
}

type fakeBroadcaster struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (b *fakeBroadcaster) Broadcast(payload []byte) {
	b.mu.Lock()
	b.payloads = append(b.payloads, payload)
	b.mu.Unlock()
}

func (b *fakeBroadcaster) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.payloads)
}

type fakeRefresher struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (r *fakeRefresher) Refresh(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return r.err
}

func (r *fakeRefresher) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type fakeAuditStore struct {
	presentations []models.PresentationAudit
	anomalies     []models.AnomalyDigest
	err           error
}

func (s *fakeAuditStore) Init(context.Context) error { return nil }

func (s *fakeAuditStore) InsertPresentation(_ context.Context, a *models.PresentationAudit) error {
	if s.err != nil {
		return s.err
	}
	s.presentations = append(s.presentations, *a)
	return nil
}

func (s *fakeAuditStore) InsertAnomalies(_ context.Context, entries []models.AnomalyDigest) error {
	if s.err != nil {
		return s.err
	}
	s.anomalies = append(s.anomalies, entries...)
	return nil
}

func (s *fakeAuditStore) Health(context.Context) error { return nil }
func (s *fakeAuditStore) Close() error                 { return nil }

var errBoom = errors.New("boom")
