package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"github.com/AnthonyGillesRudolfo/Terminal-Reader-Demo/internal/activity"
	"github.com/AnthonyGillesRudolfo/Terminal-Reader-Demo/internal/api"
	"github.com/AnthonyGillesRudolfo/Terminal-Reader-Demo/internal/authz"
	"github.com/AnthonyGillesRudolfo/Terminal-Reader-Demo/internal/backend"
	appconfig "github.com/AnthonyGillesRudolfo/Terminal-Reader-Demo/internal/config"
	"github.com/AnthonyGillesRudolfo/Terminal-Reader-Demo/internal/controller"
	"github.com/AnthonyGillesRudolfo/Terminal-Reader-Demo/internal/events"
	xlog "github.com/AnthonyGillesRudolfo/Terminal-Reader-Demo/internal/log"
	"github.com/AnthonyGillesRudolfo/Terminal-Reader-Demo/internal/secrets"
	postgres "github.com/AnthonyGillesRudolfo/Terminal-Reader-Demo/internal/storage/postgres"
	"github.com/AnthonyGillesRudolfo/Terminal-Reader-Demo/internal/telemetry"
	"github.com/AnthonyGillesRudolfo/Terminal-Reader-Demo/internal/terminal"
)

func newLogger(cfg appconfig.Config) zerolog.Logger {
	return xlog.Configure(xlog.Config{Level: cfg.LogLevel, Service: cfg.ServiceName})
}

func setupTelemetry(lc fx.Lifecycle, cfg appconfig.Config, logger zerolog.Logger) {
	var shutdown func(context.Context) error
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			var err error
			shutdown, err = telemetry.InitTracer(ctx, cfg.ServiceName)
			if err != nil {
				// tracing is optional; keep serving without it
				logger.Warn().Err(err).Msg("tracing disabled")
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if shutdown != nil {
				return shutdown(ctx)
			}
			return nil
		},
	})
}

// newSQLDB returns nil when the database is unreachable so the terminal keeps
// working with only the in-memory activity log.
func newSQLDB(lc fx.Lifecycle, cfg appconfig.Config, logger zerolog.Logger) *sql.DB {
	log := xlog.Component(logger, "db")
	log.Info().Str("database", cfg.Database.Database).Str("host", cfg.Database.Host).Int("port", cfg.Database.Port).Msg("connecting to PostgreSQL")
	db, err := postgres.OpenDatabase(context.Background(), cfg.Database)
	if err != nil {
		log.Warn().Err(err).Msg("activity history disabled")
		return nil
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error { return db.Close() },
	})
	return db
}

func newRepository(db *sql.DB) *postgres.Repository {
	if db == nil {
		return nil
	}
	return postgres.NewRepository(db)
}

// newKafkaProducer returns nil when no brokers are configured.
func newKafkaProducer(lc fx.Lifecycle, cfg appconfig.Config) *events.Producer {
	if !cfg.Kafka.Enabled() {
		return nil
	}
	prod := events.NewProducer(cfg.Kafka.Brokers)
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error { return prod.Close() },
	})
	return prod
}

func newRecorder(cfg appconfig.Config, prod *events.Producer, logger zerolog.Logger) *activity.Recorder {
	var sinks []activity.Sink
	if prod != nil {
		sinks = append(sinks, events.NewActivityPublisher(prod, cfg.Kafka.ActivityTopic))
		logger.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.ActivityTopic).Msg("publishing activity to Kafka")
	}
	return activity.NewRecorder(cfg.Activity.BufferSize, sinks...)
}

func newAlertQueue() *controller.AlertQueue {
	return controller.NewAlertQueue(0)
}

func newController(cfg appconfig.Config, rec *activity.Recorder, alerts *controller.AlertQueue, logger zerolog.Logger) (*controller.Controller, error) {
	newBackend := func(baseURL string) (backend.API, error) {
		opts := []backend.Option{backend.WithTimeout(cfg.Backend.Timeout)}
		if cfg.Backend.APIKey != "" {
			opts = append(opts, backend.WithAPIKey(cfg.Backend.APIKey))
		}
		c, err := backend.New(baseURL, opts...)
		if err != nil {
			return nil, err
		}
		return activity.WatchBackend(c, rec), nil
	}
	simulator := terminal.SimulatorFactory(
		terminal.WithPresentDelay(cfg.Terminal.PresentDelay),
		terminal.WithTestCard(cfg.Terminal.TestCard),
		terminal.WithRegisteredReaders(cfg.Terminal.RegisteredReaders...),
		terminal.WithLogger(xlog.Component(logger, "terminal")),
	)
	newTerminal := func(l terminal.Listener) (terminal.Terminal, error) {
		t, err := simulator(l)
		if err != nil {
			return nil, err
		}
		return activity.WatchTerminal(t, rec), nil
	}
	return controller.New(controller.Options{
		NewBackend:     newBackend,
		NewTerminal:    newTerminal,
		Alerter:        alerts,
		Logger:         &logger,
		CallTimeout:    cfg.Terminal.CallTimeout,
		CollectTimeout: cfg.Terminal.CollectTimeout,
		Charge: controller.Charge{
			Amount:      cfg.Charge.Amount,
			Currency:    cfg.Charge.Currency,
			Description: cfg.Charge.Description,
		},
		Cart: controller.CartItem{
			Description: cfg.Cart.ItemDescription,
			Tax:         cfg.Cart.Tax,
		},
	})
}

// startSession starts the controller and applies BACKEND_URL when configured,
// skipping the operator's backend form.
func startSession(lc fx.Lifecycle, cfg appconfig.Config, ctrl *controller.Controller, logger zerolog.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ctrl.Start()
			if cfg.Backend.URL == "" {
				return nil
			}
			if err := ctrl.SetBackendURL(ctx, cfg.Backend.URL); err != nil {
				return err
			}
			logger.Info().Str(xlog.FieldBackendURL, cfg.Backend.URL).Msg("backend configured from environment")
			return nil
		},
	})
}

func newHandler(cfg appconfig.Config, ctrl *controller.Controller, alerts *controller.AlertQueue, rec *activity.Recorder, repo *postgres.Repository, az authz.Client) http.Handler {
	deps := api.Deps{
		Controller:  ctrl,
		Alerts:      alerts,
		Recorder:    rec,
		Authz:       az,
		ServiceName: cfg.ServiceName,
	}
	if repo != nil {
		deps.History = repo
	}
	return api.NewHandler(deps)
}

func registerWebServer(lc fx.Lifecycle, cfg appconfig.Config, logger zerolog.Logger, shutdowner fx.Shutdowner, handler http.Handler) {
	httpServer := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				logger.Info().Str("addr", cfg.HTTP.Addr).Msg("operator API listening")
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error().Err(err).Msg("operator API server error")
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	})
}

func logSettingSources(logger zerolog.Logger, res secrets.Result) {
	if !res.Loaded() {
		return
	}
	logger.Info().Str("path", res.Path).Strs("keys", res.Exported).Int("ignored", res.Ignored).Msg("settings loaded from OpenBao")
}

func main() {
	_ = godotenv.Load()
	fromBao, err := secrets.Bootstrap(context.Background())
	if err != nil {
		logger := xlog.Base()
		logger.Fatal().Err(err).Msg("load settings from OpenBao")
	}

	app := fx.New(
		fx.Supply(fromBao),
		fx.Provide(
			appconfig.Load,
			newLogger,
			newSQLDB,
			newRepository,
			newKafkaProducer,
			newRecorder,
			newAlertQueue,
			newController,
			authz.NewFromEnv,
			newHandler,
		),
		fx.Invoke(
			func(logger zerolog.Logger, cfg appconfig.Config) {
				logger.Info().Msgf("Starting %s...", cfg.ServiceName)
			},
			logSettingSources,
			setupTelemetry,
			startSession,
			registerWebServer,
		),
	)

	app.Run()
}
