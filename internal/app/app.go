package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vovakirdan/wirechat-tcp/internal/banlog"
	"github.com/vovakirdan/wirechat-tcp/internal/config"
	"github.com/vovakirdan/wirechat-tcp/internal/console"
	"github.com/vovakirdan/wirechat-tcp/internal/core"
	"github.com/vovakirdan/wirechat-tcp/internal/metrics"
	"github.com/vovakirdan/wirechat-tcp/internal/store"
	"github.com/vovakirdan/wirechat-tcp/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/wirechat-tcp/internal/transport/http"
	"github.com/vovakirdan/wirechat-tcp/internal/transport/tcp"
)

// App wires together core and transport layers.
type App struct {
	hub             *core.Hub
	tcp             *tcp.Server
	listener        net.Listener
	monitor         *stdhttp.Server
	monitorListener net.Listener
	console         *console.Console
	banWriter       *banlog.Writer
	audit           store.AuditStore
	metrics         *metrics.Metrics
	shutdownTimeout time.Duration
	log             *zerolog.Logger
}

// New constructs the application and binds its listeners. Console input is
// read from in and replies go to out; a nil in disables the console.
func New(cfg *config.Config, logger *zerolog.Logger, in io.Reader, out io.Writer) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &App{
		shutdownTimeout: cfg.ShutdownTimeout,
		metrics:         metrics.New(),
		log:             logger,
	}

	events, err := banlog.Load(cfg.BanLogPath, logger)
	if err != nil {
		logger.Warn().Err(err).Str("path", cfg.BanLogPath).Msg("failed to read ban log, starting with no bans")
		events = nil
	}

	var recorders core.MultiRecorder
	if w, err := banlog.OpenWriter(cfg.BanLogPath); err != nil {
		logger.Warn().Err(err).Str("path", cfg.BanLogPath).Msg("ban log is not writable, bans will not persist")
	} else {
		a.banWriter = w
		recorders = append(recorders, w)
	}

	if cfg.AuditDBPath != "" {
		st, err := sqlite.New(cfg.AuditDBPath)
		if err != nil {
			a.cleanup()
			return nil, fmt.Errorf("init audit store: %w", err)
		}
		a.audit = st
		recorders = append(recorders, st)
		logger.Info().Str("db_path", cfg.AuditDBPath).Msg("audit store initialized")
	}

	bans := core.NewBanStore(recorders, logger)
	bans.Load(events)
	logger.Info().Int("bans", bans.Len()).Str("path", cfg.BanLogPath).Msg("ban list loaded")

	a.hub = core.NewHub(
		core.NewRegistry(cfg.MaxClients),
		bans,
		logger,
		core.WithMetrics(a.metrics),
		core.WithNameLimit(cfg.MaxNameLength),
	)

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		a.cleanup()
		return nil, fmt.Errorf("listen %s: %w", cfg.Addr, err)
	}
	a.listener = ln
	a.tcp = tcp.NewServer(a.hub, *cfg, logger)

	if cfg.MonitorAddr != "" {
		mln, err := net.Listen("tcp", cfg.MonitorAddr)
		if err != nil {
			_ = ln.Close()
			a.cleanup()
			return nil, fmt.Errorf("listen monitor %s: %w", cfg.MonitorAddr, err)
		}
		a.monitorListener = mln
		a.monitor = transporthttp.NewServer(a.hub, a.audit, a.metrics, *cfg, logger)
	}

	if cfg.Console && in != nil {
		a.console = console.New(a.hub, in, out, logger)
	}

	return a, nil
}

// Addr returns the chat listener address.
func (a *App) Addr() string {
	return a.listener.Addr().String()
}

// MonitorAddr returns the monitor listener address, or "" when disabled.
func (a *App) MonitorAddr() string {
	if a.monitorListener == nil {
		return ""
	}
	return a.monitorListener.Addr().String()
}

// Hub exposes the running hub.
func (a *App) Hub() *core.Hub {
	return a.hub
}

// Run serves until ctx is cancelled or the operator quits, then releases
// every resource.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// quit from the console stops the hub; take the rest down with it
		defer cancel()
		return a.hub.Run(gctx)
	})

	g.Go(func() error {
		return a.tcp.Serve(gctx, a.listener)
	})

	if a.console != nil {
		g.Go(func() error {
			return a.console.Run(gctx)
		})
	}

	if a.monitor != nil {
		g.Go(func() error {
			a.log.Info().Str("addr", a.monitorListener.Addr().String()).Msg("monitor listening")
			if err := a.monitor.Serve(a.monitorListener); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
				return fmt.Errorf("monitor: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
			defer cancel()

			a.log.Info().Msg("shutting down monitor")
			return a.monitor.Shutdown(shutdownCtx)
		})
	}

	err := g.Wait()
	a.cleanup()
	a.log.Info().Msg("server stopped")
	return err
}

// cleanup closes the ban log and the audit store.
func (a *App) cleanup() {
	if a.banWriter != nil {
		if err := a.banWriter.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close ban log")
		}
	}
	if a.audit != nil {
		if err := a.audit.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close audit store")
		} else {
			a.log.Info().Msg("audit store closed")
		}
	}
}
