// Command tableservice serves the remote tables used by the field apps,
// together with table exports, health and metrics endpoints.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"mobiletables/internal/adapters/exports"
	"mobiletables/internal/adapters/tables"
	"mobiletables/internal/blob"
	"mobiletables/internal/core"
	"mobiletables/pkg/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type config struct {
	Addr            string        `env:"MOBILETABLES_ADDR" envDefault:":8080"`
	LogLevel        string        `env:"MOBILETABLES_LOG_LEVEL" envDefault:"info"`
	TraceFile       string        `env:"MOBILETABLES_TRACE_FILE"`
	ExpvarName      string        `env:"MOBILETABLES_EXPVAR_NAME"`
	ShutdownTimeout time.Duration `env:"MOBILETABLES_SHUTDOWN_TIMEOUT" envDefault:"10s"`

	Storage core.StorageConfig
	Blob    blob.Config
	Auth    tables.AuthConfig
}

var exitFunc = os.Exit

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "tableservice: %v\n", err)
		exitFunc(1)
	}
}

func run(ctx context.Context, logOut io.Writer) error {
	var cfg config
	if err := core.ParseEnv(&cfg); err != nil {
		return err
	}
	logger := newLogger(logOut, cfg.LogLevel)

	srv, err := newServer(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer srv.close()

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errs := make(chan error, 1)
	go func() {
		logger.Info("table service listening", "addr", cfg.Addr, "storage", string(cfg.Storage.Driver), "auth", cfg.Auth.Enabled())
		errs <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func newLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
}

type server struct {
	handler http.Handler
	service *core.Service
	worker  *exports.Worker
	closers []func() error
	logger  *slog.Logger
}

// newServer wires storage, blob, export worker, metrics and routes from cfg.
func newServer(ctx context.Context, cfg config, logger *slog.Logger) (*server, error) {
	srv := &server{logger: logger}
	ok := false
	defer func() {
		if !ok {
			srv.close()
		}
	}()

	store, err := core.OpenTableStore(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open table store: %w", err)
	}
	srv.closers = append(srv.closers, store.Close)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom, err := core.NewPrometheusMetricsRecorder(reg)
	if err != nil {
		return nil, err
	}
	metrics := core.MetricsRecorder(prom)
	if cfg.ExpvarName != "" {
		stats, err := core.NewTableStatsRecorder(cfg.ExpvarName)
		if err != nil {
			return nil, err
		}
		metrics = core.MultiMetricsRecorder(prom, stats)
	}

	coreLogger := core.NewSlogLogger(logger)
	opts := []core.ServiceOption{
		core.WithLogger(coreLogger),
		core.WithMetricsRecorder(metrics),
		core.WithAuditRecorder(core.NewLogAuditRecorder(coreLogger)),
	}
	if cfg.TraceFile != "" {
		f, err := os.OpenFile(cfg.TraceFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, fmt.Errorf("open trace file: %w", err)
		}
		srv.closers = append(srv.closers, f.Close)
		opts = append(opts, core.WithTracer(core.NewJSONTracer(f)))
	}
	srv.service = core.NewService(store, opts...)
	if _, err := core.RegisterTable[domain.Note](srv.service, string(domain.EntityNote)); err != nil {
		return nil, err
	}

	blobStore, err := blob.Open(ctx, cfg.Blob)
	if err != nil {
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	srv.worker = exports.NewWorker(srv.service, blobStore, exports.WithLogger(coreLogger))
	srv.worker.Start()

	routerOpts := tables.RouterOptions{
		Gatherer:  reg,
		DebugVars: cfg.ExpvarName != "",
		Extra:     []tables.Router{exports.NewHandler(srv.worker)},
	}
	if cfg.Auth.Enabled() {
		auth, err := tables.NewAuthenticator(cfg.Auth, coreLogger)
		if err != nil {
			return nil, err
		}
		routerOpts.Auth = auth
	}
	srv.handler = tables.NewRouter(srv.service, routerOpts)
	ok = true
	return srv, nil
}

func (s *server) close() {
	if s.worker != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.worker.Stop(ctx); err != nil {
			s.logger.Warn("export worker stop", "error", err)
		}
		cancel()
		s.worker = nil
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			s.logger.Warn("close", "error", err)
		}
	}
	s.closers = nil
}
