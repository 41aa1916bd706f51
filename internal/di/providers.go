package di

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	domrepo "RecoBoard/internal/domain/repository"
	"RecoBoard/internal/handler/api"
	"RecoBoard/internal/handler/ws"
	internalrepo "RecoBoard/internal/repository"
	svccache "RecoBoard/internal/service/cache"
	"RecoBoard/internal/service/feed"
	"RecoBoard/internal/service/ratelimit"
	"RecoBoard/internal/services/presentation"
	"RecoBoard/internal/services/window"
	"RecoBoard/internal/usecase"
	pkgcache "RecoBoard/pkg/cache"
	pkgch "RecoBoard/pkg/clickhouse"
	"RecoBoard/pkg/config"
	xhttp "RecoBoard/pkg/http"
	pkgkafka "RecoBoard/pkg/kafka"
	"RecoBoard/pkg/logger"
	"RecoBoard/pkg/metrics"
	"RecoBoard/pkg/queue"
	"RecoBoard/pkg/server"
)

// ProvideLogger creates the root logger from the log section.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder on the default registry.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New(nil)
}

// ProvideEngine builds the presentation engine in the configured zone.
func ProvideEngine(cfg *config.Config, log *logger.Logger) (*presentation.Engine, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return presentation.NewEngine(
		presentation.WithLocation(loc),
		presentation.WithStrictContract(cfg.StrictContract()),
		presentation.WithLogger(log.With("presentation")),
	), nil
}

// ProvideWindowResolver builds the cutoff/holiday window resolver.
func ProvideWindowResolver(cfg *config.Config) (*window.Resolver, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	cutoff, err := config.ParseCutoff(cfg.Engine.Cutoff)
	if err != nil {
		return nil, err
	}
	holidays, err := cfg.HolidayDates()
	if err != nil {
		return nil, err
	}
	return window.NewResolver(loc, cutoff, window.WithHolidays(holidays)), nil
}

// ProvideRedis connects to Redis. Returns nil when redis is disabled.
func ProvideRedis(cfg *config.Config) (*pkgcache.RedisCache, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	rc, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisAddr(cfg.Redis.Addr),
		pkgcache.WithRedisAuth(cfg.Redis.Password, cfg.Redis.DB),
		pkgcache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	return rc, nil
}

// ProvideNoticeCache is the layered memory+Redis cache, or memory only
// without Redis.
func ProvideNoticeCache(cfg *config.Config, rc *pkgcache.RedisCache) pkgcache.Service {
	if rc == nil {
		return pkgcache.NewMemoryCache(
			pkgcache.WithMemoryMaxSize(cfg.Cache.MemoryMaxEntries),
			pkgcache.WithMemoryDefaultTTL(cfg.Cache.NoticeTTL),
		)
	}
	return pkgcache.NewLayeredCache(rc,
		pkgcache.WithLayeredMemorySize(cfg.Cache.MemoryMaxEntries),
		pkgcache.WithLayeredMemoryTTL(cfg.Cache.MemoryTTL),
	)
}

// ProvidePayloadCache shares rendered payloads through Redis when available.
func ProvidePayloadCache(cfg *config.Config, rc *pkgcache.RedisCache) svccache.BytesCache {
	if rc == nil {
		return svccache.NewTTLCache(cfg.Cache.PayloadEntries)
	}
	return svccache.NewRedisCacheFromClient(rc.Client(), cfg.Redis.Prefix+":payload:")
}

// ProvideClickHouseClient creates a ClickHouse client. Returns nil when disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideAuditStore creates the audit tables. Returns nil without ClickHouse.
func ProvideAuditStore(ch *pkgch.Client, log *logger.Logger) (*internalrepo.CHAuditStore, error) {
	if ch == nil {
		return nil, nil
	}
	store := internalrepo.NewCHAuditStore(ch, log)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return store, nil
}

// ProvideQueue creates the Redis job queue and registers the audit jobs.
// Returns nil when the queue is disabled or nothing could drain it.
func ProvideQueue(cfg *config.Config, log *logger.Logger, rc *pkgcache.RedisCache, audit *internalrepo.CHAuditStore, m domrepo.Metrics) *queue.RedisQueue {
	if !cfg.Queue.Enabled || rc == nil || audit == nil {
		return nil
	}
	qc := &queue.Config{
		Workers:    cfg.Queue.Workers,
		RetryLimit: cfg.Queue.RetryLimit,
		RetryDelay: cfg.Queue.RetryDelay,
		MaxDelay:   cfg.Queue.MaxDelay,
		JobTimeout: cfg.Queue.JobTimeout,
	}
	q := queue.NewRedisQueue(log, qc, rc.Client(), queue.ModeProducerConsumer, queue.WithKeyPrefix(cfg.Redis.Prefix+":queue"))
	q.RegisterJobs(usecase.NewAuditJobs(audit, m, log).Jobs())
	return q
}

// ProvideKafkaProducer creates a Kafka producer. Returns nil when kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithClientID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideEventPublisher publishes banner transitions to Kafka, or drops them without it.
func ProvideEventPublisher(cfg *config.Config, producer *pkgkafka.Producer) domrepo.EventPublisher {
	if producer == nil {
		return internalrepo.NoopEventPublisher{}
	}
	return internalrepo.NewKafkaEventPublisher(producer, cfg.Kafka.EventsTopic)
}

// ProvideKafkaConsumer creates the snapshot consumer. Returns nil unless the
// feed source is kafka.
func ProvideKafkaConsumer(cfg *config.Config, log *logger.Logger, m domrepo.Metrics) (*pkgkafka.Consumer, error) {
	if cfg.Feed.Source != "kafka" {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerStartOffset(cfg.Kafka.Consumer.StartOffset),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerLogger(log),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.Use(pkgkafka.NewHookChain(
		pkgkafka.LoggingHook{Log: log.With("kafka_hook")},
		pkgkafka.HookFuncs{
			Err: func(_ context.Context, topic string, _ kafka.Message, _ []byte, _ error) {
				m.RecordError("kafka_handle_" + topic)
			},
		},
	))
	return consumer, nil
}

// ProvideFeedClient creates the HTTP feed client. Returns nil when no URL is configured.
func ProvideFeedClient(cfg *config.Config, log *logger.Logger) *feed.Client {
	if cfg.Feed.URL == "" {
		return nil
	}
	return feed.NewClient(feed.Config{
		URL:     cfg.Feed.URL,
		Timeout: cfg.Feed.Timeout,
		Retries: cfg.Feed.Retries,
		Backoff: cfg.Feed.RetryBackoff,
		Breaker: feed.BreakerConfig{
			MaxRequests:      cfg.Feed.Breaker.MaxRequests,
			Interval:         cfg.Feed.Breaker.Interval,
			Timeout:          cfg.Feed.Breaker.Timeout,
			FailureThreshold: cfg.Feed.Breaker.FailureThreshold,
		},
	}, log)
}

func ProvideSnapshotStore() *internalrepo.MemorySnapshotStore {
	return internalrepo.NewMemorySnapshotStore()
}

func ProvideHub(cfg *config.Config, log *logger.Logger) *ws.Hub {
	return ws.NewHub(log, cfg.Server.CORSOrigins...)
}

// ProvidePresenter wires the presenter with whichever collaborators are configured.
func ProvidePresenter(
	cfg *config.Config,
	log *logger.Logger,
	engine *presentation.Engine,
	snapshots *internalrepo.MemorySnapshotStore,
	windows *window.Resolver,
	m domrepo.Metrics,
	payloads svccache.BytesCache,
	notices pkgcache.Service,
	events domrepo.EventPublisher,
	q *queue.RedisQueue,
	fc *feed.Client,
	hub *ws.Hub,
) *usecase.Presenter {
	opts := []usecase.PresenterOption{
		usecase.WithDisplayCap(cfg.Engine.DisplayCap),
		usecase.WithPayloadCache(payloads, cfg.Cache.PayloadTTL),
		usecase.WithEventPublisher(events, notices),
		usecase.WithBroadcaster(hub),
	}
	if fc != nil && cfg.Feed.Source == "http" {
		opts = append(opts, usecase.WithFeedSource(fc))
	}
	if q != nil {
		opts = append(opts, usecase.WithJobQueue(q))
	}
	return usecase.NewPresenter(engine, snapshots, windows, m, log, opts...)
}

// ProvideFeedRefresher polls the HTTP feed. Returns nil unless the feed source is http.
func ProvideFeedRefresher(
	cfg *config.Config,
	log *logger.Logger,
	fc *feed.Client,
	snapshots *internalrepo.MemorySnapshotStore,
	presenter *usecase.Presenter,
	m domrepo.Metrics,
) *usecase.FeedRefresher {
	if cfg.Feed.Source != "http" || fc == nil {
		return nil
	}
	return usecase.NewFeedRefresher(fc, snapshots, usecase.PresenterRefresher(presenter), m, log, cfg.Feed.PollSchedule, cfg.Feed.Timeout*time.Duration(cfg.Feed.Retries+1))
}

// ProvideKafkaFeedHandler handles snapshots on the feed topic.
func ProvideKafkaFeedHandler(
	cfg *config.Config,
	log *logger.Logger,
	snapshots *internalrepo.MemorySnapshotStore,
	presenter *usecase.Presenter,
	m domrepo.Metrics,
) *usecase.KafkaFeedHandler {
	return usecase.NewKafkaFeedHandler(cfg.Kafka.FeedTopic, snapshots, usecase.PresenterRefresher(presenter), m, log)
}

func ProvideNoticeService(cfg *config.Config, notices pkgcache.Service, windows *window.Resolver) *usecase.NoticeService {
	return usecase.NewNoticeService(internalrepo.NewCacheNoticeStore(notices), windows, nil, cfg.Cache.NoticeTTL)
}

// ProvideHealthChecks probes the enabled infrastructure.
func ProvideHealthChecks(rc *pkgcache.RedisCache, audit *internalrepo.CHAuditStore, fc *feed.Client) map[string]api.HealthCheck {
	checks := map[string]api.HealthCheck{}
	if rc != nil {
		checks["redis"] = rc.Ping
	}
	if audit != nil {
		checks["clickhouse"] = audit.Health
	}
	if fc != nil {
		checks["feed"] = func(context.Context) error {
			if st := fc.State(); st == "open" {
				return fmt.Errorf("circuit %s", st)
			}
			return nil
		}
	}
	return checks
}

// ProvideHTTPServer registers every route on the echo server.
func ProvideHTTPServer(
	cfg *config.Config,
	log *logger.Logger,
	presenter *usecase.Presenter,
	notices *usecase.NoticeService,
	hub *ws.Hub,
	checks map[string]api.HealthCheck,
) *xhttp.Server {
	handlers := xhttp.Handlers{
		api.NewHealthHandler(checks),
		api.NewPresentationHandler(log, presenter),
		api.NewNoticeHandler(log, notices, ratelimit.New(), api.RateLimit{
			Burst:     cfg.Server.RateLimit.Capacity,
			PerSecond: cfg.Server.RateLimit.RefillPerSec,
		}),
		hub,
	}
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer(handlers,
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(len(cfg.Server.CORSOrigins) > 0, cfg.Server.CORSOrigins...),
		xhttp.WithMetricsPath(metricsPath),
		xhttp.WithSlowThreshold(cfg.Server.SlowThreshold),
		xhttp.WithLogger(log),
	)
}

// ProvideApp assembles the application and attaches the log collector to the queue.
func ProvideApp(
	cfg *config.Config,
	log *logger.Logger,
	httpServer *xhttp.Server,
	hub *ws.Hub,
	refresher *usecase.FeedRefresher,
	consumer *pkgkafka.Consumer,
	feedHandler *usecase.KafkaFeedHandler,
	q *queue.RedisQueue,
	producer *pkgkafka.Producer,
	notices pkgcache.Service,
	ch *pkgch.Client,
	rc *pkgcache.RedisCache,
) *server.App {
	opts := []server.Option{server.WithHub(hub)}
	if refresher != nil {
		opts = append(opts, server.WithFeedRefresher(refresher))
	}
	if consumer != nil {
		opts = append(opts, server.WithKafkaConsumer(consumer, feedHandler))
	}
	if q != nil {
		opts = append(opts, server.WithQueue(q))
		if cfg.Collector.Enabled {
			log.AddCollector(&logger.CollectionConfig{
				TimeInterval:   cfg.Collector.Interval,
				CountThreshold: cfg.Collector.Threshold,
				Topic:          cfg.Collector.Topic,
				Publisher:      q,
				IgnoreFields:   []string{"index", "value", "latency_ms", "bytes", "remote", "uri", "offset"},
			})
			// flush before the queue's Redis client goes away
			opts = append(opts, server.WithCloser("log collector", func() error {
				log.RemoveCollector()
				return nil
			}))
		}
	}
	if producer != nil {
		opts = append(opts, server.WithCloser("kafka producer", producer.Close))
	}
	opts = append(opts, server.WithCloser("notice cache", notices.Close))
	if ch != nil {
		opts = append(opts, server.WithCloser("clickhouse", ch.Close))
	}
	if rc != nil {
		opts = append(opts, server.WithCloser("redis", rc.Close))
	}
	return server.New(cfg, log, httpServer, opts...)
}
