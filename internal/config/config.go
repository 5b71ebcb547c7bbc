package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. NOC_STREAM_URL.
const EnvPrefix = "NOC"

type Config struct {
	Stream     StreamConfig     `mapstructure:"stream"`
	API        APIConfig        `mapstructure:"api"`
	Simulation SimulationConfig `mapstructure:"simulation"`
	Export     ExportConfig     `mapstructure:"export"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Broker     BrokerConfig     `mapstructure:"broker"`
}

type StreamConfig struct {
	URL              string        `mapstructure:"url"`
	ReconnectBase    time.Duration `mapstructure:"reconnect_base"`
	ReconnectMax     time.Duration `mapstructure:"reconnect_max"`
	PingInterval     time.Duration `mapstructure:"ping_interval"`
	PongTimeout      time.Duration `mapstructure:"pong_timeout"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
}

type APIConfig struct {
	BrokerURL    string        `mapstructure:"broker_url"`
	SimulatorURL string        `mapstructure:"simulator_url"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// SimulationConfig holds the scenario used when no incident is selected and
// the initial lever positions.
type SimulationConfig struct {
	EventID           string  `mapstructure:"event_id"`
	Region            string  `mapstructure:"region"`
	SiteID            string  `mapstructure:"site_id"`
	TrafficMultiplier float64 `mapstructure:"traffic_multiplier"`
	CapacityDelta     int     `mapstructure:"capacity_delta"`
}

type ExportConfig struct {
	Dir string `mapstructure:"dir"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
	File   string `mapstructure:"file"`   // empty means stderr
}

type BrokerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	PushInterval time.Duration `mapstructure:"push_interval"`
	SeedFile     string        `mapstructure:"seed_file"`
	Mock         bool          `mapstructure:"mock"`
	EMAAlpha     float64       `mapstructure:"ema_alpha"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("stream.url", "ws://localhost:7003/ws/ui")
	v.SetDefault("stream.reconnect_base", time.Second)
	v.SetDefault("stream.reconnect_max", 5*time.Second)
	v.SetDefault("stream.ping_interval", 30*time.Second)
	v.SetDefault("stream.pong_timeout", 60*time.Second)
	v.SetDefault("stream.handshake_timeout", 10*time.Second)

	v.SetDefault("api.broker_url", "http://localhost:7003")
	v.SetDefault("api.simulator_url", "http://localhost:7002")
	v.SetDefault("api.timeout", 10*time.Second)

	v.SetDefault("simulation.event_id", "sim_test")
	v.SetDefault("simulation.region", "NorthEast")
	v.SetDefault("simulation.site_id", "NE_SITE_003")
	v.SetDefault("simulation.traffic_multiplier", 1.0)
	v.SetDefault("simulation.capacity_delta", 0)

	v.SetDefault("export.dir", ".")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file", "")

	v.SetDefault("broker.host", "0.0.0.0")
	v.SetDefault("broker.port", 7003)
	v.SetDefault("broker.push_interval", 500*time.Millisecond)
	v.SetDefault("broker.seed_file", "")
	v.SetDefault("broker.mock", false)
	v.SetDefault("broker.ema_alpha", 0.3)
}

// Default returns the configuration with no file and no environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return &cfg
}

// Load reads the YAML file at path, if any, over the defaults and applies
// NOC_ environment overrides. An empty path or a missing file is not an
// error.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.sanitize()
	return &cfg, nil
}

// sanitize replaces values that would break the session or the broker.
func (c *Config) sanitize() {
	if c.Stream.ReconnectBase <= 0 {
		c.Stream.ReconnectBase = time.Second
	}
	if c.Stream.ReconnectMax < c.Stream.ReconnectBase {
		c.Stream.ReconnectMax = c.Stream.ReconnectBase
	}
	if c.API.Timeout <= 0 {
		c.API.Timeout = 10 * time.Second
	}
	if c.Simulation.TrafficMultiplier <= 0 {
		c.Simulation.TrafficMultiplier = 1.0
	}
	if c.Broker.PushInterval <= 0 {
		c.Broker.PushInterval = 500 * time.Millisecond
	}
	if c.Broker.EMAAlpha <= 0 || c.Broker.EMAAlpha > 1 {
		c.Broker.EMAAlpha = 0.3
	}
	if c.Export.Dir == "" {
		c.Export.Dir = "."
	}
}

// ListenAddr is the broker's host:port.
func (b BrokerConfig) ListenAddr() string {
	return fmt.Sprintf("%s:%d", b.Host, b.Port)
}
