package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"RecoBoard/internal/handler/ws"
	"RecoBoard/internal/usecase"
	"RecoBoard/pkg/config"
	xhttp "RecoBoard/pkg/http"
	pkgkafka "RecoBoard/pkg/kafka"
	applogger "RecoBoard/pkg/logger"
	"RecoBoard/pkg/queue"
)

type closer struct {
	name string
	fn   func() error
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	httpServer *xhttp.Server

	refresher   *usecase.FeedRefresher
	consumer    *pkgkafka.Consumer
	feedHandler pkgkafka.MessageHandler
	queue       *queue.RedisQueue
	hub         *ws.Hub
	closers     []closer
}

// Option attaches an optional component to the App.
type Option func(*App)

func WithFeedRefresher(r *usecase.FeedRefresher) Option {
	return func(a *App) { a.refresher = r }
}

func WithKafkaConsumer(c *pkgkafka.Consumer, h pkgkafka.MessageHandler) Option {
	return func(a *App) {
		a.consumer = c
		a.feedHandler = h
	}
}

func WithQueue(q *queue.RedisQueue) Option {
	return func(a *App) { a.queue = q }
}

func WithHub(h *ws.Hub) Option {
	return func(a *App) { a.hub = h }
}

// WithCloser registers a resource released on shutdown, in registration order.
func WithCloser(name string, fn func() error) Option {
	return func(a *App) {
		if fn != nil {
			a.closers = append(a.closers, closer{name: name, fn: fn})
		}
	}
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, log *applogger.Logger, httpServer *xhttp.Server, opts ...Option) *App {
	if log == nil {
		log = applogger.Nop()
	}
	a := &App{cfg: cfg, log: log.With("app"), httpServer: httpServer}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run starts the application and blocks until SIGINT or SIGTERM.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts every component and blocks until ctx is done.
func (a *App) RunContext(ctx context.Context) error {
	if err := a.start(ctx); err != nil {
		a.log.Error("startup failed", applogger.Error(err))
		_ = a.shutdown()
		return err
	}
	<-ctx.Done()
	a.log.Info("shutdown signal received")
	return a.shutdown()
}

func (a *App) start(ctx context.Context) error {
	if a.queue != nil {
		if err := a.queue.Start(); err != nil {
			return fmt.Errorf("queue: %w", err)
		}
	}

	if a.consumer != nil && a.feedHandler != nil {
		a.consumer.RegisterHandler(a.feedHandler)
		if err := a.consumer.Start(); err != nil {
			return fmt.Errorf("kafka consumer: %w", err)
		}
		a.log.Info("kafka consumer started", applogger.String("topic", a.feedHandler.Topic()))
	}

	if a.refresher != nil {
		if err := a.refresher.Start(ctx); err != nil {
			return fmt.Errorf("feed refresher: %w", err)
		}
	}

	if a.httpServer != nil {
		if err := a.httpServer.Start(); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	a.log.Info("recoboard started",
		applogger.String("environment", a.cfg.Environment),
		applogger.String("feed_source", a.cfg.Feed.Source),
		applogger.Int("port", a.cfg.Server.Port),
	)
	return nil
}

// shutdown stops intake first, then background work, then infrastructure.
func (a *App) shutdown() error {
	timeout := a.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	if a.httpServer != nil {
		if err := a.httpServer.Stop(ctx); err != nil {
			a.log.Error("http shutdown error", applogger.Error(err))
			errs = append(errs, err)
		}
	}
	if a.hub != nil {
		a.hub.Close()
	}
	if a.refresher != nil {
		if err := a.refresher.Stop(ctx); err != nil {
			a.log.Warn("feed refresher stop error", applogger.Error(err))
			errs = append(errs, err)
		}
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
			errs = append(errs, err)
		}
	}
	if a.queue != nil {
		if err := a.queue.Stop(ctx); err != nil {
			a.log.Warn("queue stop error", applogger.Error(err))
			errs = append(errs, err)
		}
	}
	for _, c := range a.closers {
		if err := c.fn(); err != nil {
			a.log.Warn("close error", applogger.String("resource", c.name), applogger.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
		}
	}

	a.log.Info("shutdown complete")
	return errors.Join(errs...)
}
