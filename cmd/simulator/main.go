package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/ANIKETSHETTY47/smart-meter-usage-service/internal/config"
	"github.com/ANIKETSHETTY47/smart-meter-usage-service/internal/domain"
	"github.com/ANIKETSHETTY47/smart-meter-usage-service/internal/logging"
	"github.com/ANIKETSHETTY47/smart-meter-usage-service/internal/simulator"
	"github.com/ANIKETSHETTY47/smart-meter-usage-service/internal/sink"
)

func main() {
	if err := config.Load(); err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	logging.Setup(config.LogLevel(), config.LogFormat())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bank := simulator.NewBank(config.SimulatorMeters(), nil)
	go bank.Run(ctx, config.SimulatorStep())

	if broker := config.MQTTBroker(); broker != "" {
		client, err := sink.Connect(broker, "meter-simulator")
		if err != nil {
			log.Fatal().Err(err).Msg("mqtt connect")
		}
		defer client.Disconnect(250)
		go publish(ctx, bank, sink.NewMQTT(client, config.MQTTTopic(), config.UpstreamTimeout()), config.PollInterval())
	}

	app := fiber.New()
	app.Get("/health", func(c *fiber.Ctx) error { return c.SendString("ok") })
	simulator.Register(app, bank)

	go func() {
		<-ctx.Done()
		app.Shutdown()
	}()

	addr := config.SimulatorAddr()
	log.Info().Str("addr", addr).Int("meters", len(bank.Meters())).Msg("mock meter listening")
	if err := app.Listen(addr); err != nil {
		log.Fatal().Err(err).Msg("server exit")
	}
}

// publish pushes every meter's counter to the broker on each tick.
func publish(ctx context.Context, bank *simulator.Bank, pub *sink.MQTT, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			for _, id := range bank.Meters() {
				r := domain.Reading{MeterID: id, Timestamp: now, Value: bank.Reading(id)}
				if err := pub.Publish(ctx, r); err != nil {
					log.Warn().Err(err).Str("meter_id", id).Msg("publish failed")
				}
			}
		}
	}
}
