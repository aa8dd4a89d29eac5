// Command activityworker persists the terminal's activity journal. It consumes
// ActivityRecorded events from Kafka and writes them to Postgres.
package main

import (
	"context"
	"database/sql"
	"errors"
	"io"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"go.uber.org/fx"
	"golang.org/x/sync/errgroup"

	"github.com/AnthonyGillesRudolfo/Terminal-Reader-Demo/internal/activity"
	appconfig "github.com/AnthonyGillesRudolfo/Terminal-Reader-Demo/internal/config"
	"github.com/AnthonyGillesRudolfo/Terminal-Reader-Demo/internal/events"
	xlog "github.com/AnthonyGillesRudolfo/Terminal-Reader-Demo/internal/log"
	"github.com/AnthonyGillesRudolfo/Terminal-Reader-Demo/internal/secrets"
	postgres "github.com/AnthonyGillesRudolfo/Terminal-Reader-Demo/internal/storage/postgres"
)

var errReaderClosed = errors.New("activity reader closed")

// messageReader is the part of *kafka.Reader the consumer uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// activityStore is satisfied by *postgres.Repository.
type activityStore interface {
	InsertActivity(ctx context.Context, e activity.Entry) error
}

func newLogger(cfg appconfig.Config) zerolog.Logger {
	return xlog.Configure(xlog.Config{Level: cfg.LogLevel, Service: cfg.ServiceName + "-activityworker"})
}

func newSQLDB(lc fx.Lifecycle, cfg appconfig.Config) (*sql.DB, error) {
	db, err := postgres.OpenDatabase(context.Background(), cfg.Database)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error { return db.Close() },
	})
	return db, nil
}

func newReader(cfg appconfig.Config) (*kafka.Reader, error) {
	if !cfg.Kafka.Enabled() {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Kafka.Brokers,
		Topic:    cfg.Kafka.ActivityTopic,
		GroupID:  cfg.Kafka.ActivityGroup,
		MinBytes: 1e3,
		MaxBytes: 10e6,
	}), nil
}

func registerConsumer(lc fx.Lifecycle, cfg appconfig.Config, logger zerolog.Logger, shutdowner fx.Shutdowner, reader *kafka.Reader, repo *postgres.Repository) {
	ctx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)
	log := logger.With().Str("topic", cfg.Kafka.ActivityTopic).Str("group", cfg.Kafka.ActivityGroup).Logger()

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			g.Go(func() error {
				log.Info().Msg("consuming activity")
				err := consume(gctx, reader, repo, log)
				if errors.Is(err, context.Canceled) {
					return nil
				}
				if err != nil {
					log.Error().Err(err).Msg("activity consumer stopped")
					_ = shutdowner.Shutdown()
				}
				return err
			})
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			err := g.Wait()
			_ = reader.Close()
			return err
		},
	})
}

// consume stores each activity event and commits its offset. Malformed
// messages are committed and skipped; store failures stop the consumer so the
// message is redelivered.
func consume(ctx context.Context, r messageReader, store activityStore, log zerolog.Logger) error {
	for {
		msg, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return errReaderClosed
			}
			return err
		}

		entry, err := events.DecodeActivity(msg.Value)
		if err != nil {
			log.Warn().Err(err).Int64("offset", msg.Offset).Msg("skipping message")
		} else {
			if err := store.InsertActivity(ctx, entry); err != nil {
				return err
			}
			log.Debug().Str("activity_id", entry.ID).Str(xlog.FieldMethod, entry.Method).Msg("stored activity")
		}

		if err := r.CommitMessages(ctx, msg); err != nil {
			return err
		}
	}
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
			postgres.NewRepository,
			newReader,
		),
		fx.Invoke(
			func(logger zerolog.Logger, res secrets.Result) {
				if res.Loaded() {
					logger.Info().Str("path", res.Path).Strs("keys", res.Exported).Msg("settings loaded from OpenBao")
				}
			},
			registerConsumer,
		),
	)
	app.Run()
}
