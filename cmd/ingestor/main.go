package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/ANIKETSHETTY47/smart-meter-usage-service/internal/config"
	"github.com/ANIKETSHETTY47/smart-meter-usage-service/internal/domain"
	"github.com/ANIKETSHETTY47/smart-meter-usage-service/internal/logging"
	"github.com/ANIKETSHETTY47/smart-meter-usage-service/internal/sink"
)

// The ingestor copies readings published on MQTT into InfluxDB.
func main() {
	if err := config.Load(); err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	logging.Setup(config.LogLevel(), config.LogFormat())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if config.MQTTBroker() == "" || config.InfluxURL() == "" {
		log.Fatal().Msg("MQTT_BROKER and INFLUX_URL are required")
	}

	influx := sink.NewInflux(config.InfluxURL(), config.InfluxToken(), config.InfluxOrg(), config.InfluxBucket())
	defer influx.Close()
	if err := influx.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("influx ping")
	}

	client, err := sink.Connect(config.MQTTBroker(), "meter-ingestor")
	if err != nil {
		log.Fatal().Err(err).Msg("mqtt connect")
	}
	defer client.Disconnect(250)

	onReading := func(r domain.Reading) {
		if err := influx.Publish(ctx, r); err != nil {
			log.Error().Err(err).Msg("ingest failed")
		}
	}
	onErr := func(err error) { log.Warn().Err(err).Msg("payload dropped") }
	if err := sink.Subscribe(client, config.MQTTTopic(), onReading, onErr); err != nil {
		log.Fatal().Err(err).Msg("subscribe failed")
	}

	log.Info().Str("topic", config.MQTTTopic()).Msg("ingestor running; Ctrl+C to stop")
	<-ctx.Done()
}
