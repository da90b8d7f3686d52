package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"

	"github.com/ANIKETSHETTY47/smart-meter-usage-service/internal/cloud"
	"github.com/ANIKETSHETTY47/smart-meter-usage-service/internal/collector"
	"github.com/ANIKETSHETTY47/smart-meter-usage-service/internal/config"
	"github.com/ANIKETSHETTY47/smart-meter-usage-service/internal/database"
	httpHandlers "github.com/ANIKETSHETTY47/smart-meter-usage-service/internal/http"
	"github.com/ANIKETSHETTY47/smart-meter-usage-service/internal/logging"
	"github.com/ANIKETSHETTY47/smart-meter-usage-service/internal/repository"
	"github.com/ANIKETSHETTY47/smart-meter-usage-service/internal/service"
	"github.com/ANIKETSHETTY47/smart-meter-usage-service/internal/sink"
	"github.com/ANIKETSHETTY47/smart-meter-usage-service/internal/store"
	"github.com/ANIKETSHETTY47/smart-meter-usage-service/internal/upstream"
	"github.com/ANIKETSHETTY47/smart-meter-usage-service/internal/usage"
)

func main() {
	if err := config.Load(); err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	logger := logging.Setup(config.LogLevel(), config.LogFormat())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, closeRepo := openRepository(ctx)
	defer closeRepo()

	st := store.New(repo, logger)
	if err := st.Restore(ctx); err != nil {
		log.Fatal().Err(err).Msg("restore failed")
	}
	calc := usage.NewCalculator(st, config.UsagePrecision())

	var registry upstream.Registry = upstream.StaticRegistry(config.MeterIDs())
	if u := config.RegistryURL(); u != "" {
		registry = upstream.NewRegistry(u, config.UpstreamTimeout())
	}
	coll := collector.New(registry, upstream.New(config.MeterSourceURL(), config.UpstreamTimeout()), st, config.CollectConcurrency(), logger)

	if broker := config.MQTTBroker(); broker != "" {
		client, err := sink.Connect(broker, "meter-usage-api")
		if err != nil {
			log.Fatal().Err(err).Msg("mqtt connect")
		}
		defer client.Disconnect(250)
		coll.AddSink(sink.NewMQTT(client, config.MQTTTopic(), config.UpstreamTimeout()))
	}

	opts := service.Options{Hold: config.PauseHold()}
	if config.UseCloudServices() {
		mirror, err := cloud.NewS3Mirror(ctx, config.AWSRegion(), config.S3Bucket())
		if err != nil {
			log.Fatal().Err(err).Msg("s3 init failed")
		}
		opts.Mirror = mirror
		if arn := config.SNSTopicArn(); arn != "" {
			alerter, err := cloud.NewSNSAlerter(ctx, config.AWSRegion(), arn)
			if err != nil {
				log.Fatal().Err(err).Msg("sns init failed")
			}
			opts.Alerter = alerter
		}
	}

	var svcs *service.Services
	sched := collector.NewScheduler(config.PollInterval(),
		func(ctx context.Context, at time.Time) error {
			_, err := coll.Sweep(ctx, at)
			return err
		},
		func(ctx context.Context, at time.Time) error { return svcs.CatchUp(ctx, at) },
		logger)
	svcs = service.New(st, calc, sched, opts, logger)

	// A working set restored from an earlier day is archived before serving;
	// if that fails the hourly archive job retries it.
	if err := svcs.CatchUp(ctx, time.Now()); err != nil {
		log.Error().Err(err).Msg("startup archive failed")
	}

	go func() {
		if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("scheduler stopped")
		}
	}()

	app := fiber.New()
	app.Get("/health", func(c *fiber.Ctx) error { return c.SendString("ok") })
	httpHandlers.Register(app, svcs)

	go func() {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		if err := app.Shutdown(); err != nil {
			log.Error().Err(err).Msg("shutdown")
		}
	}()

	addr := config.APIAddr()
	log.Info().Str("addr", addr).Msg("api listening")
	if err := app.Listen(addr); err != nil {
		log.Fatal().Err(err).Msg("server exit")
	}
	if err := st.Checkpoint(context.Background()); err != nil {
		log.Error().Err(err).Msg("final checkpoint failed")
	}
}

func openRepository(ctx context.Context) (repository.Repository, func()) {
	switch config.StorageBackend() {
	case "sql":
		db, err := database.Connect(ctx, config.DBDriver(), config.DBDSN())
		if err != nil {
			log.Fatal().Err(err).Msg("db connect failed")
		}
		return repository.NewSQL(db), func() { db.Close() }
	case "csv", "":
		return repository.NewCSV(afero.NewOsFs(), config.DataDir()), func() {}
	default:
		log.Fatal().Str("backend", config.StorageBackend()).Msg("unknown STORAGE_BACKEND")
		return nil, nil
	}
}
