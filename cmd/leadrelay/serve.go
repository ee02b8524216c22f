package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/leadrelay/leadrelay/internal/bots"
	"github.com/leadrelay/leadrelay/internal/config"
	"github.com/leadrelay/leadrelay/internal/db"
	"github.com/leadrelay/leadrelay/internal/extract"
	"github.com/leadrelay/leadrelay/internal/handlers"
	"github.com/leadrelay/leadrelay/internal/leads"
	"github.com/leadrelay/leadrelay/internal/llm"
	"github.com/leadrelay/leadrelay/internal/logger"
	"github.com/leadrelay/leadrelay/internal/pipeline"
	"github.com/leadrelay/leadrelay/internal/server"
	"github.com/leadrelay/leadrelay/internal/sheets"
	"github.com/leadrelay/leadrelay/internal/wa"
)

func runServe() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideDBConn,
			provideDBInterface,
			provideLLMClient,
			provideWAClient,
			provideSheetsClient,
			provideLeadStore,
			provideLeadMonitor,
			provideBotService,
			provideExtractor,
			providePipeline,
			provideWebhookHandler,
			provideAdminHandler,
			provideLoginHandler,
			providePingHandler,
			provideServer,
		),
		fx.Invoke(
			runMigrations,
			startLeadMonitor,
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideConfig() (config.Config, error) {
	cfgPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideDBConn(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	pool, err := db.Open(context.Background(), cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { pool.Close(); return nil }})
	return pool, nil
}

func provideDBInterface(pool *pgxpool.Pool) db.Conn { return pool }

func provideLLMClient(log *slog.Logger, cfg config.Config) *llm.Client {
	return llm.NewClient(log, cfg.LLM)
}

func provideWAClient(log *slog.Logger, cfg config.Config) *wa.Client {
	return wa.NewClient(log, cfg.WhatsApp)
}

func provideSheetsClient(log *slog.Logger, cfg config.Config) pipeline.SheetAppender {
	client := sheets.NewClient(log, cfg.Sheets)
	if client == nil {
		// Leave the interface nil so the pipeline records the sink as
		// unconfigured instead of calling a nil client.
		return nil
	}
	return client
}

func provideLeadStore(log *slog.Logger, conn db.Conn) *leads.Store {
	return leads.NewStore(log, conn)
}

func provideLeadMonitor(log *slog.Logger, store *leads.Store, cfg config.Config) *leads.Monitor {
	interval, err := time.ParseDuration(cfg.Monitor.Interval)
	if err != nil {
		interval = 0
	}
	return leads.NewMonitor(log, store, interval)
}

func provideBotService(log *slog.Logger, conn db.Conn, cfg config.Config) *bots.Service {
	return bots.NewService(log, conn, cfg.LLM.DefaultModel)
}

func provideExtractor(log *slog.Logger, gateway *llm.Client) *extract.Extractor {
	return extract.NewExtractor(log, gateway)
}

func providePipeline(log *slog.Logger, botService *bots.Service, gateway *llm.Client, extractor *extract.Extractor, store *leads.Store, sheet pipeline.SheetAppender, sender *wa.Client, cfg config.Config) *pipeline.Pipeline {
	return pipeline.New(log, botService, gateway, extractor, store, sheet, sender, pipeline.NotifyConfig{
		SalesInstance: cfg.WhatsApp.SalesInstance,
		SalesNumber:   cfg.WhatsApp.SalesNumber,
	})
}

func provideWebhookHandler(log *slog.Logger, p *pipeline.Pipeline) *handlers.WebhookHandler {
	return handlers.NewWebhookHandler(log, p)
}

func provideAdminHandler(log *slog.Logger, store *leads.Store, p *pipeline.Pipeline, botService *bots.Service) *handlers.AdminHandler {
	return handlers.NewAdminHandler(log, store, p, botService)
}

func provideLoginHandler(log *slog.Logger, cfg config.Config) *handlers.LoginHandler {
	expiresIn, err := time.ParseDuration(cfg.Auth.JWTExpiresIn)
	if err != nil || expiresIn <= 0 {
		expiresIn = 24 * time.Hour
	}
	return handlers.NewLoginHandler(log, cfg.Admin, cfg.Auth.JWTSecret, expiresIn)
}

func providePingHandler(log *slog.Logger) *handlers.PingHandler {
	return handlers.NewPingHandler(log)
}

func provideServer(log *slog.Logger, cfg config.Config, ping *handlers.PingHandler, webhook *handlers.WebhookHandler, admin *handlers.AdminHandler, login *handlers.LoginHandler) *server.Server {
	return server.NewServer(log, cfg.Server.Addr, cfg.Auth.JWTSecret, ping, webhook, admin, login)
}

func runMigrations(cfg config.Config, log *slog.Logger) error {
	if err := db.Migrate(cfg.Postgres); err != nil {
		return err
	}
	log.Info("schema migrations applied")
	return nil
}

func startLeadMonitor(lc fx.Lifecycle, monitor *leads.Monitor) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error { monitor.Start(); return nil },
		OnStop:  func(ctx context.Context) error { monitor.Stop(); return nil },
	})
}

func startServer(lc fx.Lifecycle, log *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
