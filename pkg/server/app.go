package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"CryptoAssist/internal/usecase"
	"CryptoAssist/pkg/cache"
	"CryptoAssist/pkg/config"
	xhttp "CryptoAssist/pkg/http"
	pkgkafka "CryptoAssist/pkg/kafka"
	applogger "CryptoAssist/pkg/logger"

	"github.com/robfig/cron/v3"
)

const (
	ModeFull  = "full"
	ModeAgent = "agent"
	ModeAPI   = "api"
)

// Session is the part of the orchestrator the app drives.
type Session interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context)
	Running() bool
}

// Feed is a live push channel served over HTTP (the websocket hub).
type Feed interface {
	xhttp.Handler
	Close()
}

// Components are the wired parts of the application. Optional ones may be nil.
type Components struct {
	Logger         *applogger.Logger
	Session        Session
	Handler        xhttp.Handler
	Hub            Feed
	Consumer       *pkgkafka.Consumer
	AnalyzeHandler pkgkafka.MessageHandler
	Digest         *usecase.DigestJob
	Producer       *pkgkafka.Producer
	Cache          cache.Service
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	c          Components
	l          *applogger.Logger
	httpServer *xhttp.Server
	cron       *cron.Cron
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, c Components) *App {
	l := c.Logger
	if l == nil {
		l = applogger.Nop()
	}
	return &App{cfg: cfg, c: c, l: l}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts the components of the configured mode and blocks until
// ctx is done, then shuts everything down.
func (a *App) RunContext(ctx context.Context) error {
	mode := a.cfg.Mode
	if mode == "" {
		mode = ModeFull
	}
	a.l.Info("starting cryptoassist",
		applogger.String("mode", mode),
		applogger.String("env", a.cfg.Environment),
		applogger.Bool("auto_trading", a.cfg.Trading.AutoTrading),
	)

	if err := a.start(ctx, mode); err != nil {
		a.shutdown()
		return err
	}

	<-ctx.Done()
	a.l.Info("shutdown signal received")
	a.shutdown()
	return nil
}

func (a *App) start(ctx context.Context, mode string) error {
	loop := mode == ModeFull || mode == ModeAgent
	serve := mode == ModeFull || mode == ModeAPI

	if loop && a.c.Session != nil {
		if err := a.c.Session.Start(ctx); err != nil {
			return fmt.Errorf("start session: %w", err)
		}
	}

	if serve {
		var handlers []xhttp.Handler
		if a.c.Handler != nil {
			handlers = append(handlers, a.c.Handler)
		}
		if a.c.Hub != nil {
			handlers = append(handlers, a.c.Hub)
		}
		a.httpServer = xhttp.NewServer(handlers,
			xhttp.WithHost(a.cfg.Server.Host),
			xhttp.WithPort(a.cfg.Server.Port),
			xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
			xhttp.WithCORS(a.cfg.Server.CORS),
			xhttp.WithLogger(a.l),
		)
		if err := a.httpServer.Start(); err != nil {
			return fmt.Errorf("http server: %w", err)
		}

		if a.c.Consumer != nil && a.c.AnalyzeHandler != nil {
			a.c.Consumer.RegisterHandler(a.c.AnalyzeHandler)
			if err := a.c.Consumer.Start(); err != nil {
				return fmt.Errorf("kafka consumer: %w", err)
			}
			a.l.Info("kafka consumer started", applogger.String("topic", a.c.AnalyzeHandler.Topic()))
		}
	}

	if mode == ModeFull && a.cfg.Digest.Enabled && a.c.Digest != nil {
		a.cron = cron.New(cron.WithSeconds())
		if _, err := a.c.Digest.Schedule(a.cron, a.cfg.Digest.Cron); err != nil {
			return err
		}
		a.cron.Start()
		a.l.Info("digest scheduled", applogger.String("cron", a.cfg.Digest.Cron))
	}
	return nil
}

// shutdown stops components in reverse dependency order. Every step runs
// even if an earlier one fails.
func (a *App) shutdown() {
	timeout := a.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	a.l.Info("shutting down...")

	if a.cron != nil {
		select {
		case <-a.cron.Stop().Done():
		case <-ctx.Done():
			a.l.Warn("digest job still running at shutdown")
		}
	}

	if a.c.Session != nil && a.c.Session.Running() {
		a.c.Session.Stop(ctx)
	}

	if a.httpServer != nil {
		if err := a.httpServer.Stop(ctx); err != nil {
			a.l.Error("http shutdown error", applogger.Error(err))
		}
	}

	if a.c.Consumer != nil {
		if err := a.c.Consumer.Stop(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if a.c.Hub != nil {
		a.c.Hub.Close()
	}

	// flush aggregated logs before the producer they are shipped through goes away
	a.l.RemoveCollector()

	if a.c.Producer != nil {
		if err := a.c.Producer.Close(); err != nil {
			a.l.Warn("kafka producer close error", applogger.Error(err))
		}
	}

	if a.c.Cache != nil {
		if err := a.c.Cache.Close(); err != nil {
			a.l.Warn("cache close error", applogger.Error(err))
		}
	}

	a.l.Info("shutdown complete")
}
