package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"RecoBoard/pkg/http/middleware"
	"RecoBoard/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var corsMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}

var corsHeaders = []string{
	echo.HeaderOrigin,
	echo.HeaderContentType,
	echo.HeaderAccept,
	echo.HeaderAuthorization,
}

// Server is the Echo instance behind the presentation API.
type Server struct {
	echo *echo.Echo
	cfg  ServerConfig
	log  *logger.Logger
	ln   net.Listener
}

// NewServer wires middleware in the order recover, logging, metrics, CORS,
// then registers handler routes and the scrape endpoint.
func NewServer(handler Handler, opts ...ServerOption) *Server {
	cfg := defaultServerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	l := cfg.Logger.With("http")

	e := echo.New()
	e.HideBanner, e.HidePort = true, true
	e.Server.ReadTimeout = cfg.ReadTimeout
	e.Server.WriteTimeout = cfg.WriteTimeout
	e.HTTPErrorHandler = ErrorHandler(l)

	e.Use(
		middleware.Recover(l),
		middleware.RequestLogging(l, cfg.SlowThreshold),
		middleware.Metrics(),
	)
	if cfg.CORS {
		e.Use(middleware.CORS(middleware.CORSConfig{
			AllowOrigins: cfg.CORSOrigins,
			AllowMethods: corsMethods,
			AllowHeaders: corsHeaders,
			MaxAge:       10 * time.Minute,
		}))
	}

	if handler != nil {
		handler.RegisterRoutes(e)
	}
	if cfg.MetricsPath != "" {
		e.GET(cfg.MetricsPath, echo.WrapHandler(promhttp.Handler()))
	}
	return &Server{echo: e, cfg: cfg, log: l}
}

// Start binds the listener before returning, so a busy port fails here
// rather than in the serving goroutine.
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	s.ln = ln
	s.echo.Listener = ln

	go func() {
		s.log.Info("http server listening", logger.String("addr", ln.Addr().String()))
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http server stopped unexpectedly", logger.Error(err))
		}
	}()
	return nil
}

// Addr is the bound address once Start has returned, "" before.
func (s *Server) Addr() string {
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Stop drains in-flight requests. A ctx without deadline gets the
// configured shutdown timeout.
func (s *Server) Stop(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok && s.cfg.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
		defer cancel()
	}
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	s.log.Info("http server stopped")
	return nil
}

func (s *Server) Echo() *echo.Echo { return s.echo }
