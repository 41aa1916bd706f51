package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"RecoBoard/internal/domain/models"
	domrepo "RecoBoard/internal/domain/repository"
	domsvc "RecoBoard/internal/domain/service"
	svccache "RecoBoard/internal/service/cache"
	"RecoBoard/internal/services/presentation"
	pkgcache "RecoBoard/pkg/cache"
	"RecoBoard/pkg/logger"
)

// Queue message types handled by the audit jobs.
const (
	JobPresentationAudit = "presentation.audit"
	JobAnomalyDigest     = "anomaly.digest"
)

// Broadcaster pushes a rendered payload to live subscribers.
type Broadcaster interface {
	Broadcast(payload []byte)
}

// Locker is the subset of the cache used to dedupe banner events across replicas.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// Presenter turns the latest feed snapshot into the presentation payload.
type Presenter struct {
	engine    *presentation.Engine
	snapshots domrepo.SnapshotStore
	source    domrepo.FeedSource
	windows   domsvc.WindowResolver
	clock     domsvc.Clock
	metrics   domrepo.Metrics
	log       *logger.Logger

	displayCap  int
	payloads    svccache.BytesCache
	payloadTTL  time.Duration
	jobs        domrepo.JobQueue
	events      domrepo.EventPublisher
	locker      Locker
	broadcaster Broadcaster
	newID       func() string

	mu         sync.Mutex
	lastKey    string
	lastBanner map[string]models.BannerState // by trading date
}

// PresenterOption configures optional collaborators.
type PresenterOption func(*Presenter)

func WithFeedSource(src domrepo.FeedSource) PresenterOption {
	return func(p *Presenter) { p.source = src }
}

func WithPayloadCache(c svccache.BytesCache, ttl time.Duration) PresenterOption {
	return func(p *Presenter) {
		p.payloads = c
		p.payloadTTL = ttl
	}
}

func WithJobQueue(q domrepo.JobQueue) PresenterOption {
	return func(p *Presenter) { p.jobs = q }
}

func WithEventPublisher(ev domrepo.EventPublisher, lock Locker) PresenterOption {
	return func(p *Presenter) {
		p.events = ev
		p.locker = lock
	}
}

func WithBroadcaster(b Broadcaster) PresenterOption {
	return func(p *Presenter) { p.broadcaster = b }
}

func WithClock(c domsvc.Clock) PresenterOption {
	return func(p *Presenter) {
		if c != nil {
			p.clock = c
		}
	}
}

func WithDisplayCap(n int) PresenterOption {
	return func(p *Presenter) {
		if n >= 0 {
			p.displayCap = n
		}
	}
}

func NewPresenter(
	engine *presentation.Engine,
	snapshots domrepo.SnapshotStore,
	windows domsvc.WindowResolver,
	metrics domrepo.Metrics,
	log *logger.Logger,
	opts ...PresenterOption,
) *Presenter {
	if log == nil {
		log = logger.Nop()
	}
	p := &Presenter{
		engine:     engine,
		snapshots:  snapshots,
		windows:    windows,
		clock:      domsvc.SystemClock{},
		metrics:    metrics,
		log:        log.With("presenter"),
		displayCap: 20,
		newID:      func() string { return uuid.NewString() },
		lastBanner: make(map[string]models.BannerState),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// DisplayCap is the cap applied when a request does not name one.
func (p *Presenter) DisplayCap() int { return p.displayCap }

// Now reads the presenter clock.
func (p *Presenter) Now() time.Time { return p.clock.Now() }

// Present renders the payload for now. A negative cap selects the default
// cap; expand lifts the cap entirely.
func (p *Presenter) Present(ctx context.Context, now time.Time, displayCap int, expand bool) (*models.Presentation, error) {
	out, _, err := p.present(ctx, now, displayCap, expand)
	return out, err
}

// Refresh renders the default payload and, when it differs from the last
// refresh, pushes it to subscribers and announces banner transitions.
func (p *Presenter) Refresh(ctx context.Context) (*models.Presentation, error) {
	out, body, err := p.present(ctx, p.clock.Now(), p.displayCap, false)
	if err != nil {
		return nil, err
	}

	key := out.SnapshotID + "|" + out.TradingDate + "|" + string(out.Window)
	p.mu.Lock()
	changed := key != p.lastKey
	p.lastKey = key
	prev, seen := p.lastBanner[out.TradingDate]
	bannerChanged := !seen || prev != out.Banner
	if bannerChanged {
		// only the current trading date matters
		p.lastBanner = map[string]models.BannerState{out.TradingDate: out.Banner}
	}
	p.mu.Unlock()

	if changed && p.broadcaster != nil {
		p.broadcaster.Broadcast(body)
	}
	if bannerChanged {
		p.publishBannerChanged(ctx, out, prev)
	}
	return out, nil
}

func (p *Presenter) present(ctx context.Context, now time.Time, displayCap int, expand bool) (*models.Presentation, []byte, error) {
	start := time.Now()
	defer func() { p.metrics.RecordLatency("present_seconds", time.Since(start).Seconds()) }()

	snap, err := p.snapshot(ctx)
	if err != nil {
		return nil, nil, err
	}

	if displayCap < 0 {
		displayCap = p.displayCap
	}
	capKey := strconv.Itoa(displayCap)
	if expand {
		displayCap = math.MaxInt32
		capKey = "all"
	}

	window := p.windows.Resolve(now)
	tradingDate := p.engine.Calendar().DateKey(now)
	cacheKey := pkgcache.Key("presentation", snap.ID, tradingDate, window, capKey)

	if out, body, ok := p.cached(ctx, cacheKey); ok {
		return out, body, nil
	}

	res, err := p.engine.Render(snap.Records, now, window, displayCap)
	if err != nil {
		var ce *presentation.ContractError
		if errors.As(err, &ce) {
			for _, a := range ce.Anomalies {
				p.metrics.RecordAnomaly(a.Kind)
			}
		}
		p.metrics.RecordError("contract_violation")
		return nil, nil, fmt.Errorf("render snapshot %s: %w", snap.ID, err)
	}
	for _, a := range res.Anomalies {
		p.metrics.RecordAnomaly(a.Kind)
	}

	out := &models.Presentation{
		SnapshotID:  snap.ID,
		AsOf:        now,
		TradingDate: tradingDate,
		Window:      window,
		Banner:      res.Banner,
		Sections:    res.Sections,
		Digest:      res.Digest,
		Cards:       res.Cards,
		Anomalies:   len(res.Anomalies),
	}
	body, err := json.Marshal(out)
	if err != nil {
		return nil, nil, fmt.Errorf("encode presentation: %w", err)
	}

	p.metrics.RecordBanner(string(res.Banner))
	p.metrics.RecordSections(res.Sections.ActiveTotal, len(res.Sections.NeedsAttention), res.Sections.ArchivedCount)

	if p.payloads != nil {
		if err := p.payloads.SetBytes(ctx, cacheKey, body, p.payloadTTL); err != nil {
			p.log.Warn("payload cache set failed", logger.String("key", cacheKey), logger.Error(err))
		}
	}
	p.enqueueAudit(ctx, out)
	return out, body, nil
}

// snapshot returns the held snapshot, pulling from the feed source once if
// nothing has been received yet.
func (p *Presenter) snapshot(ctx context.Context) (*models.Snapshot, error) {
	snap, err := p.snapshots.Latest(ctx)
	if err == nil {
		return snap, nil
	}
	if !errors.Is(err, domrepo.ErrNoSnapshot) || p.source == nil {
		return nil, err
	}
	raw, ferr := p.source.Fetch(ctx)
	if ferr != nil {
		p.metrics.RecordError("feed_fetch")
		return nil, fmt.Errorf("initial feed fetch: %w", ferr)
	}
	snap, _, err = p.snapshots.Replace(ctx, raw, "http")
	if err != nil {
		return nil, err
	}
	p.metrics.RecordSnapshot(snap.Source, len(snap.Records))
	return snap, nil
}

func (p *Presenter) cached(ctx context.Context, key string) (*models.Presentation, []byte, bool) {
	if p.payloads == nil {
		return nil, nil, false
	}
	body, ok, err := p.payloads.GetBytes(ctx, key)
	if err != nil {
		p.log.Warn("payload cache get failed", logger.String("key", key), logger.Error(err))
		return nil, nil, false
	}
	if !ok {
		return nil, nil, false
	}
	var out models.Presentation
	if err := json.Unmarshal(body, &out); err != nil {
		p.log.Warn("payload cache entry unreadable", logger.String("key", key), logger.Error(err))
		return nil, nil, false
	}
	return &out, body, true
}

func (p *Presenter) enqueueAudit(ctx context.Context, out *models.Presentation) {
	if p.jobs == nil {
		return
	}
	audit := &models.PresentationAudit{
		ID:             p.newID(),
		SnapshotID:     out.SnapshotID,
		TradingDate:    out.TradingDate,
		Window:         string(out.Window),
		Banner:         string(out.Banner),
		ActiveTotal:    out.Sections.ActiveTotal,
		NeedsAttention: len(out.Sections.NeedsAttention),
		ArchivedCount:  out.Sections.ArchivedCount,
		NewToday:       len(out.Digest.NewToday),
		ChangedToday:   len(out.Digest.ChangedToday),
		Anomalies:      out.Anomalies,
		CreatedAt:      out.AsOf.UTC(),
	}
	if err := p.jobs.PublishMessage(ctx, JobPresentationAudit, audit); err != nil {
		p.metrics.RecordError("audit_enqueue")
		p.log.Warn("audit enqueue failed", logger.String("snapshot", out.SnapshotID), logger.Error(err))
	}
}

func (p *Presenter) publishBannerChanged(ctx context.Context, out *models.Presentation, prev models.BannerState) {
	if p.events == nil {
		return
	}
	if p.locker != nil {
		lockKey := pkgcache.Key("event:banner", out.TradingDate, out.Window, out.Banner)
		ok, err := p.locker.TryLock(ctx, lockKey, 24*time.Hour)
		if err != nil {
			p.log.Warn("banner event lock failed", logger.Error(err))
		}
		if err == nil && !ok {
			return
		}
	}
	ev := &models.BannerChangedEvent{
		SnapshotID:  out.SnapshotID,
		TradingDate: out.TradingDate,
		Previous:    string(prev),
		Current:     string(out.Banner),
		NewToday:    presentation.InstrumentIDs(out.Digest.NewToday),
		At:          out.AsOf,
	}
	if err := p.events.PublishBannerChanged(ctx, ev); err != nil {
		p.metrics.RecordError("event_publish")
		p.log.Error("publish banner change failed", logger.String("banner", ev.Current), logger.Error(err))
		return
	}
	p.log.Info("banner changed",
		logger.String("trading_date", ev.TradingDate),
		logger.String("previous", ev.Previous),
		logger.String("current", ev.Current),
	)
}
