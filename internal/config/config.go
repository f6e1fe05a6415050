package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ConnectorParams is the static per-connector configuration.
type ConnectorParams struct {
	BaseURL string `mapstructure:"base_url"`
}

// Connectors is built once at startup and passed by value into every
// connector call. It is never mutated afterwards.
type Connectors map[string]ConnectorParams

// Get returns the parameters of the named connector.
func (c Connectors) Get(name string) (ConnectorParams, bool) {
	p, ok := c[name]
	return p, ok
}

type Config struct {
	DatabaseURL    string        `mapstructure:"database_url"`
	RedisURL       string        `mapstructure:"redis_url"`
	KafkaBrokers   string        `mapstructure:"kafka_brokers"`
	NATSURL        string        `mapstructure:"nats_url"`
	JaegerEndpoint string        `mapstructure:"jaeger_endpoint"`
	Port           string        `mapstructure:"port"`
	ServiceName    string        `mapstructure:"service_name"`
	StateTopic     string        `mapstructure:"state_topic"`
	CallTimeout    time.Duration `mapstructure:"connector_call_timeout"`
	VaultTTL       time.Duration `mapstructure:"payment_method_ttl"`
	Connectors     Connectors    `mapstructure:"connectors"`
}

var envKeys = []string{
	"database_url",
	"redis_url",
	"kafka_brokers",
	"nats_url",
	"jaeger_endpoint",
	"port",
	"service_name",
	"state_topic",
	"connector_call_timeout",
	"payment_method_ttl",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("service_name", "payment-switch")
	v.SetDefault("state_topic", "payment.state.changed")
	v.SetDefault("connector_call_timeout", 30*time.Second)
	v.SetDefault("payment_method_ttl", 15*time.Minute)
	v.SetDefault("connectors.sagepay.base_url", "https://pi-test.sagepay.com/api/")
	v.SetDefault("connectors.trustpay.base_url", "https://test-tpgw.trustpay.eu/")
}

// Load reads configuration from the environment and, when path is not
// empty, from a yaml file. Environment variables win over the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	for name, params := range cfg.Connectors {
		if params.BaseURL == "" {
			return nil, fmt.Errorf("connector %s: base_url is required", name)
		}
		if !strings.HasSuffix(params.BaseURL, "/") {
			params.BaseURL += "/"
			cfg.Connectors[name] = params
		}
	}

	return cfg, nil
}
