package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads an optional .env file and the process environment.
func Load(envFiles ...string) error {
	// a missing .env is fine, the environment may be set directly
	_ = godotenv.Load(envFiles...)

	// API Configuration
	viper.SetDefault("API_ADDR", ":8080")

	// Collection
	viper.SetDefault("METER_SOURCE_URL", "http://localhost:8081")
	viper.SetDefault("REGISTRY_URL", "")
	viper.SetDefault("METER_IDS", "100000001,100000002,100000003")
	viper.SetDefault("POLL_INTERVAL", "30m")
	viper.SetDefault("UPSTREAM_TIMEOUT", "5s")
	viper.SetDefault("COLLECT_CONCURRENCY", 8)
	viper.SetDefault("PAUSE_HOLD", "0s")
	viper.SetDefault("USAGE_PRECISION", 8)

	// Storage
	viper.SetDefault("STORAGE_BACKEND", "csv")
	viper.SetDefault("DATA_DIR", "./data")
	viper.SetDefault("DB_DRIVER", "sqlite")
	viper.SetDefault("DB_DSN", "file:meters.db?_pragma=busy_timeout(5000)")

	// Reading sinks
	viper.SetDefault("MQTT_BROKER", "")
	viper.SetDefault("MQTT_TOPIC", "meters/readings")
	viper.SetDefault("INFLUX_URL", "")
	viper.SetDefault("INFLUX_TOKEN", "")
	viper.SetDefault("INFLUX_ORG", "smart-meter")
	viper.SetDefault("INFLUX_BUCKET", "readings")

	// AWS Configuration
	viper.SetDefault("AWS_REGION", "us-east-1")
	viper.SetDefault("AWS_S3_BUCKET", "meter-usage-archives")
	viper.SetDefault("AWS_SNS_TOPIC_ARN", "")
	viper.SetDefault("USE_CLOUD_SERVICES", "false") // Toggle for local vs cloud

	// Logging
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "console")

	// Mock meter
	viper.SetDefault("SIMULATOR_ADDR", ":8081")
	viper.SetDefault("SIMULATOR_METERS", "100000001,100000002,100000003")
	viper.SetDefault("SIMULATOR_STEP", "1s")

	viper.AutomaticEnv()
	return nil
}

func APIAddr() string                { return viper.GetString("API_ADDR") }
func MeterSourceURL() string         { return viper.GetString("METER_SOURCE_URL") }
func RegistryURL() string            { return viper.GetString("REGISTRY_URL") }
func MeterIDs() []string             { return splitList(viper.GetString("METER_IDS")) }
func PollInterval() time.Duration    { return viper.GetDuration("POLL_INTERVAL") }
func UpstreamTimeout() time.Duration { return viper.GetDuration("UPSTREAM_TIMEOUT") }
func CollectConcurrency() int        { return viper.GetInt("COLLECT_CONCURRENCY") }
func PauseHold() time.Duration       { return viper.GetDuration("PAUSE_HOLD") }
func UsagePrecision() int            { return viper.GetInt("USAGE_PRECISION") }
func StorageBackend() string         { return strings.ToLower(viper.GetString("STORAGE_BACKEND")) }
func DataDir() string                { return viper.GetString("DATA_DIR") }
func DBDriver() string               { return viper.GetString("DB_DRIVER") }
func DBDSN() string                  { return viper.GetString("DB_DSN") }
func MQTTBroker() string             { return viper.GetString("MQTT_BROKER") }
func MQTTTopic() string              { return viper.GetString("MQTT_TOPIC") }
func InfluxURL() string              { return viper.GetString("INFLUX_URL") }
func InfluxToken() string            { return viper.GetString("INFLUX_TOKEN") }
func InfluxOrg() string              { return viper.GetString("INFLUX_ORG") }
func InfluxBucket() string           { return viper.GetString("INFLUX_BUCKET") }
func AWSRegion() string              { return viper.GetString("AWS_REGION") }
func S3Bucket() string               { return viper.GetString("AWS_S3_BUCKET") }
func SNSTopicArn() string            { return viper.GetString("AWS_SNS_TOPIC_ARN") }
func UseCloudServices() bool         { return viper.GetBool("USE_CLOUD_SERVICES") }
func LogLevel() string               { return viper.GetString("LOG_LEVEL") }
func LogFormat() string              { return viper.GetString("LOG_FORMAT") }
func SimulatorAddr() string          { return viper.GetString("SIMULATOR_ADDR") }
func SimulatorMeters() []string      { return splitList(viper.GetString("SIMULATOR_METERS")) }
func SimulatorStep() time.Duration   { return viper.GetDuration("SIMULATOR_STEP") }

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
