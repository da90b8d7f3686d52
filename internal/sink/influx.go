package sink

import (
	"context"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/ANIKETSHETTY47/smart-meter-usage-service/internal/domain"
)

const measurement = "meter_reading"

// Influx writes readings as points of the meter_reading measurement.
type Influx struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
}

func NewInflux(url, token, org, bucket string) *Influx {
	client := influxdb2.NewClient(url, token)
	return &Influx{client: client, writeAPI: client.WriteAPIBlocking(org, bucket)}
}

// Ping checks that the server is reachable and healthy.
func (i *Influx) Ping(ctx context.Context) error {
	ok, err := i.client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to InfluxDB: %w", err)
	}
	if !ok {
		return fmt.Errorf("influxdb is not ready")
	}
	return nil
}

func (i *Influx) Publish(ctx context.Context, r domain.Reading) error {
	point := write.NewPoint(
		measurement,
		map[string]string{"meter_id": r.MeterID},
		map[string]interface{}{"reading": r.Value},
		r.Timestamp,
	)
	if err := i.writeAPI.WritePoint(ctx, point); err != nil {
		return fmt.Errorf("influx write %s: %w", r.MeterID, err)
	}
	return nil
}

func (i *Influx) Close() { i.client.Close() }
