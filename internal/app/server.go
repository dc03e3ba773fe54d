package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/msomdec/persist/internal/config"
	"github.com/msomdec/persist/internal/handler"
	"github.com/msomdec/persist/internal/metrics"
	"github.com/msomdec/persist/internal/persist"
	"github.com/msomdec/persist/internal/service"
)

// Server is the cache HTTP service assembled from configuration.
type Server struct {
	*App

	Store  *persist.Store
	Tokens *service.TokenService

	httpServer *http.Server
	mu         sync.Mutex
	addr       net.Addr
}

// NewServer opens and migrates the database and wires the cache, its reaper,
// rate limiting, metrics and the HTTP server into one App.
func NewServer(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Server, error) {
	if log == nil {
		log = slog.Default()
	}

	db, err := OpenAndMigrate(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	var (
		collector    *metrics.Collector
		cacheMetrics *metrics.CacheMetrics
		metricsHTTP  http.Handler
	)
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector()
		cacheMetrics = metrics.NewCacheMetrics(collector)
		metricsHTTP = collector.Handler()
		collector.RegisterDB(db.SqlDB, "persist")
	}

	store, err := NewStore(db, cfg, log, cacheMetrics)
	if err != nil {
		db.Close()
		return nil, err
	}

	var tokens *service.TokenService
	if cfg.Auth.JWTSecret != "" {
		tokens = service.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	}
	var guard *service.TokenService
	if cfg.Auth.Required {
		if tokens == nil {
			db.Close()
			return nil, errors.New("authentication is required but JWT_SECRET is not set")
		}
		guard = tokens
	} else {
		log.Warn("cache API authentication is disabled")
	}

	cache := service.NewCacheService(store, cfg.Persist.MaxKeyLength, cfg.Persist.MaxValueBytes)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, handler.Routes{
		Cache:       handler.NewCacheHandler(cache, cfg.Persist.MaxValueBytes),
		Tokens:      guard,
		DB:          db.SqlDB,
		Metrics:     metricsHTTP,
		MetricsPath: cfg.Metrics.Path,
	})

	var root http.Handler = mux
	var limiter *service.TokenBucket
	if cfg.Auth.RateLimitRPS > 0 {
		limiter = service.NewTokenBucket(cfg.Auth.RateLimitRPS, cfg.Auth.RateLimitBurst)
		root = handler.RateLimit(limiter, root)
	}
	root = handler.SecurityHeaders(handler.RequestID(handler.Instrument(cacheMetrics, root)))

	s := &Server{
		App:    New(log),
		Store:  store,
		Tokens: tokens,
		httpServer: &http.Server{
			Addr:              cfg.Server.Addr(),
			Handler:           root,
			ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
			IdleTimeout:       cfg.Server.IdleTimeout,
			MaxHeaderBytes:    1 << 20, // 1MB
			ErrorLog:          slog.NewLogLogger(log.Handler(), slog.LevelWarn),
		},
	}

	s.Add(Hook{
		Name:   "database",
		OnStop: func(context.Context) error { return db.Close() },
	})
	s.Add(Hook{
		Name:    "reaper",
		OnStart: store.Start,
		OnStop:  store.Shutdown,
	})
	if limiter != nil {
		s.Add(Hook{
			Name:    "ratelimit",
			OnStart: limiter.Start,
			OnStop:  limiter.Shutdown,
		})
	}
	s.Add(Hook{
		Name:    "http",
		OnStart: s.listen,
		OnStop:  s.httpServer.Shutdown,
	})

	return s, nil
}

// Addr returns the address the HTTP server is listening on, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

func (s *Server) listen(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.httpServer.Addr, err)
	}

	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()

	go func() {
		s.log.Info("server starting", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.Fail(fmt.Errorf("http server: %w", err))
		}
	}()
	return nil
}
