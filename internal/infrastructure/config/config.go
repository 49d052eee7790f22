package config

import (
	"errors"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	App struct {
		QuoteAsset string   `toml:"quote_asset"` // instrument universe filter, e.g. "USDT"
		Symbols    []string `toml:"symbols"`     // optional override; empty = full universe
	} `toml:"app"`

	Policy struct {
		Threshold float64 `toml:"threshold"` // relative close change, 0.001 = 0.1%
	} `toml:"policy"`

	Exchange struct {
		Binance struct {
			WsURL        string `toml:"ws_url"`
			RestURL      string `toml:"rest_url"`
			APIKeyEnv    string `toml:"api_key_env"`
			APISecretEnv string `toml:"api_secret_env"`
		} `toml:"binance"`
	} `toml:"exchange"`

	Stream struct {
		MaxRetries   int `toml:"max_retries"`
		InitialDelay int `toml:"initial_delay_ms"`
		MaxDelay     int `toml:"max_delay_ms"`
		Workers      int `toml:"workers"`
		QueueSize    int `toml:"queue_size"`
		GraceTimeout int `toml:"grace_timeout_ms"`
	} `toml:"stream"`

	Storage struct {
		Driver      string `toml:"driver"` // "sqlite" or "postgres"
		SQLitePath  string `toml:"sqlite_path"`
		PostgresDSN string `toml:"postgres_dsn"`
	} `toml:"storage"`

	Redis struct {
		Enabled bool   `toml:"enabled"`
		Addr    string `toml:"addr"`
		Prefix  string `toml:"prefix"`
		TTLSec  int    `toml:"ttl_sec"`
	} `toml:"redis"`

	Alert struct {
		SlackWebhookURL string `toml:"slack_webhook_url"`
		SlackChannel    string `toml:"slack_channel"`
		MinLevel        string `toml:"min_level"` // slack filter, default INFO
		QueueSize       int    `toml:"queue_size"`
	} `toml:"alert"`
}

func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.App.QuoteAsset == "" {
		cfg.App.QuoteAsset = "USDT"
	}
	if cfg.Policy.Threshold <= 0 {
		cfg.Policy.Threshold = 0.001
	}
	if cfg.Stream.MaxRetries <= 0 {
		cfg.Stream.MaxRetries = 5
	}
	if cfg.Stream.InitialDelay <= 0 {
		cfg.Stream.InitialDelay = 500
	}
	if cfg.Stream.MaxDelay <= 0 {
		cfg.Stream.MaxDelay = 10_000
	}
	if cfg.Stream.Workers <= 0 {
		cfg.Stream.Workers = 4
	}
	if cfg.Stream.QueueSize <= 0 {
		cfg.Stream.QueueSize = 1024
	}
	if cfg.Stream.GraceTimeout <= 0 {
		cfg.Stream.GraceTimeout = 5_000
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "sqlite"
	}
	if cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = "data/tickd.sqlite"
	}
	if cfg.Redis.Prefix == "" {
		cfg.Redis.Prefix = "tickd"
	}
	if cfg.Alert.MinLevel == "" {
		cfg.Alert.MinLevel = "INFO"
	}
	if cfg.Alert.QueueSize <= 0 {
		cfg.Alert.QueueSize = 256
	}
}

func validate(cfg *Config) error {
	cfg.App.Symbols = normalizeSymbols(cfg.App.Symbols)
	cfg.App.QuoteAsset = strings.ToUpper(strings.TrimSpace(cfg.App.QuoteAsset))

	if strings.TrimSpace(cfg.Exchange.Binance.WsURL) == "" {
		return errors.New("exchange.binance.ws_url is empty")
	}
	if strings.TrimSpace(cfg.Exchange.Binance.RestURL) == "" {
		return errors.New("exchange.binance.rest_url is empty")
	}

	switch cfg.Storage.Driver {
	case "sqlite":
	case "postgres":
		if strings.TrimSpace(cfg.Storage.PostgresDSN) == "" {
			return errors.New("storage.postgres_dsn empty but driver is postgres")
		}
	default:
		return errors.New("storage.driver must be sqlite or postgres")
	}

	if cfg.Redis.Enabled && strings.TrimSpace(cfg.Redis.Addr) == "" {
		return errors.New("redis.addr empty but redis enabled")
	}
	return nil
}

func (c *Config) InitialDelay() time.Duration {
	return time.Duration(c.Stream.InitialDelay) * time.Millisecond
}

func (c *Config) MaxDelay() time.Duration {
	return time.Duration(c.Stream.MaxDelay) * time.Millisecond
}

func (c *Config) GraceTimeout() time.Duration {
	return time.Duration(c.Stream.GraceTimeout) * time.Millisecond
}

func (c *Config) RedisTTL() time.Duration {
	return time.Duration(c.Redis.TTLSec) * time.Second
}

func normalizeSymbols(in []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]struct{}{}
	for _, s := range in {
		u := strings.ToUpper(strings.TrimSpace(s))
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
