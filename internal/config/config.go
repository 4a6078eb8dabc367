package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Env string `yaml:"env"`

	MySQL struct {
		DSN          string        `yaml:"dsn"`
		MaxOpenConns int           `yaml:"max_open_conns"`
		MaxIdleConns int           `yaml:"max_idle_conns"`
		ConnMaxLife  time.Duration `yaml:"conn_max_life"`
		ConnMaxIdle  time.Duration `yaml:"conn_max_idle"`
	} `yaml:"mysql"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		Database int    `yaml:"database"`
	} `yaml:"redis"`

	RocketMQ struct {
		NameServer    string `yaml:"name_server"`
		Topic         string `yaml:"topic"`
		Tag           string `yaml:"tag,omitempty"`
		ProducerGroup string `yaml:"producer_group"`
		ConsumerGroup string `yaml:"consumer_group"`
	} `yaml:"rocketmq"`

	Telegram struct {
		BotToken    string `yaml:"bot_token"`
		APIEndpoint string `yaml:"api_endpoint"` // override for tests/proxies
	} `yaml:"telegram"`

	Polling struct {
		Enabled        bool          `yaml:"enabled"`
		Interval       time.Duration `yaml:"interval"`
		Tick           time.Duration `yaml:"tick"`
		FetchLimit     int           `yaml:"fetch_limit"`
		TimeoutSeconds int           `yaml:"timeout_seconds"` // long-poll hint passed to Telegram
	} `yaml:"polling"`

	Consumer struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"consumer"`

	Dedupe struct {
		TTL time.Duration `yaml:"ttl"`
	} `yaml:"dedupe"`

	Reply struct {
		AIEnabled bool   `yaml:"ai_enabled"`
		APIKey    string `yaml:"api_key"`
		APIBase   string `yaml:"api_base"`
		Model     string `yaml:"model"`
	} `yaml:"reply"`

	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`

	Timeout time.Duration `yaml:"timeout"` // default per-operation timeout (db/mq)
}

// Load supports comma-separated config files: "-c common.yml,relay.yml".
// Later files override earlier ones (successive unmarshal into the same struct).
func Load(pathList string) (*Config, error) {
	if strings.TrimSpace(pathList) == "" {
		return nil, errors.New("config path required (e.g. -c ./config.yml or -c common.yml,relay.yml)")
	}

	var c Config
	for _, p := range strings.Split(pathList, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, err
		}
	}

	c.applyDefaults()
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 3 * time.Second
	}
	if c.MySQL.MaxOpenConns <= 0 {
		c.MySQL.MaxOpenConns = 50
	}
	if c.MySQL.MaxIdleConns <= 0 {
		c.MySQL.MaxIdleConns = 25
	}
	if c.MySQL.ConnMaxLife == 0 {
		c.MySQL.ConnMaxLife = 30 * time.Minute
	}
	if c.MySQL.ConnMaxIdle == 0 {
		c.MySQL.ConnMaxIdle = 5 * time.Minute
	}
	if c.RocketMQ.Topic == "" {
		c.RocketMQ.Topic = "telegram.updates"
	}
	if c.RocketMQ.ProducerGroup == "" {
		c.RocketMQ.ProducerGroup = "telegram-relay-producer"
	}
	if c.RocketMQ.ConsumerGroup == "" {
		c.RocketMQ.ConsumerGroup = "telegram-relay"
	}
	if c.Polling.Interval == 0 {
		c.Polling.Interval = 2 * time.Second
	}
	if c.Polling.Interval < 250*time.Millisecond {
		c.Polling.Interval = 250 * time.Millisecond
	}
	if c.Polling.Tick == 0 {
		c.Polling.Tick = 500 * time.Millisecond
	}
	if c.Polling.FetchLimit <= 0 {
		c.Polling.FetchLimit = 50
	}
	if c.Dedupe.TTL == 0 {
		c.Dedupe.TTL = 24 * time.Hour
	}
	if c.Reply.APIBase == "" {
		c.Reply.APIBase = "https://api.openai.com/v1"
	}
	if c.Reply.Model == "" {
		c.Reply.Model = "gpt-4o-mini"
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9100"
	}
}
