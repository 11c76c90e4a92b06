package main

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "DICEROLLER"

const (
	defaultHost           = "0.0.0.0"
	defaultPort           = 5000
	defaultEndpoint       = "localhost:4317"
	defaultProtocol       = protocolGRPC
	defaultServiceName    = "diceroller"
	defaultServiceVersion = "0.1.0"
	defaultBatchTimeout   = 5 * time.Second
	defaultMetricInterval = time.Minute
)

// Config is the process configuration. Values come from, in order of
// precedence: command line flags, DICEROLLER_* environment variables,
// an optional config file and the defaults above.
type Config struct {
	Host  string     `mapstructure:"host"`
	Port  int        `mapstructure:"port"`
	Debug bool       `mapstructure:"debug"`
	OTel  OTelConfig `mapstructure:"otel"`
}

// OTelConfig configures where and how telemetry is exported.
type OTelConfig struct {
	// Endpoint is the collector address, host:port.
	Endpoint string `mapstructure:"endpoint"`

	// Insecure disables transport encryption towards the collector.
	Insecure bool `mapstructure:"insecure"`

	Protocol Protocol `mapstructure:"protocol"`

	ServiceName    string        `mapstructure:"service_name"`
	ServiceVersion string        `mapstructure:"service_version"`
	BatchTimeout   time.Duration `mapstructure:"batch_timeout"`
	MetricInterval time.Duration `mapstructure:"metric_interval"`
}

// Addr returns the address the HTTP server listens on.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Validate reports the first invalid option.
func (c Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be between 1 and 65535", c.Port)
	}
	return c.OTel.Validate()
}

// Validate reports the first invalid telemetry option.
func (c OTelConfig) Validate() error {
	switch c.Protocol {
	case protocolGRPC, protocolHTTP:
		if c.Endpoint == "" {
			return errors.New("otel endpoint must not be empty")
		}
	case protocolStdout:
	default:
		return UnknownProtocolError{Protocol: c.Protocol}
	}
	if c.ServiceName == "" {
		return errors.New("otel service name must not be empty")
	}
	if c.BatchTimeout <= 0 {
		return fmt.Errorf("invalid otel batch timeout %s: must be positive", c.BatchTimeout)
	}
	if c.MetricInterval <= 0 {
		return fmt.Errorf("invalid otel metric interval %s: must be positive", c.MetricInterval)
	}
	return nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("host", defaultHost)
	v.SetDefault("port", defaultPort)
	v.SetDefault("debug", false)
	v.SetDefault("otel.endpoint", defaultEndpoint)
	v.SetDefault("otel.insecure", true)
	v.SetDefault("otel.protocol", string(defaultProtocol))
	v.SetDefault("otel.service_name", defaultServiceName)
	v.SetDefault("otel.service_version", defaultServiceVersion)
	v.SetDefault("otel.batch_timeout", defaultBatchTimeout)
	v.SetDefault("otel.metric_interval", defaultMetricInterval)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// flagKeys maps command line flags onto config keys.
var flagKeys = map[string]string{
	"host":          "host",
	"port":          "port",
	"debug":         "debug",
	"otel-endpoint": "otel.endpoint",
	"otel-insecure": "otel.insecure",
	"otel-protocol": "otel.protocol",
	"service-name":  "otel.service_name",
}

func registerFlags(fs *pflag.FlagSet) {
	fs.String("host", defaultHost, "host the HTTP server listens on")
	fs.Int("port", defaultPort, "port the HTTP server listens on")
	fs.Bool("debug", false, "enable development logging")
	fs.String("otel-endpoint", defaultEndpoint, "collector address (host:port)")
	fs.Bool("otel-insecure", true, "disable transport encryption towards the collector")
	fs.String("otel-protocol", string(defaultProtocol), "export protocol: grpc, http or stdout")
	fs.String("service-name", defaultServiceName, "value of the service.name resource attribute")
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			return fmt.Errorf("flag --%s is not registered", name)
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag --%s: %w", name, err)
		}
	}
	return nil
}

// loadConfig reads the optional config file and decodes every source
// known to v into a validated Config.
func loadConfig(v *viper.Viper, file string) (Config, error) {
	var cfg Config
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("read config file %s: %w", file, err)
		}
	}

	err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.TextUnmarshallerHookFunc(),
	)))
	if err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
