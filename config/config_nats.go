package config

import (
	"fmt"
	"time"

	"github.com/pixil98/go-errors"
	"github.com/sirupsen/logrus"

	"github.com/wricardo/gomoku-relay/transport/messaging"
)

// NatsConfig controls publication of room events.
// With an empty URL an embedded server listens on Host:Port.
type NatsConfig struct {
	Enabled      bool          `yaml:"enabled"`
	URL          string        `yaml:"url"`
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	Prefix       string        `yaml:"prefix"`
	StartTimeout time.Duration `yaml:"start_timeout"`
}

func defaultNatsConfig() NatsConfig {
	return NatsConfig{
		Host:         "127.0.0.1",
		Port:         4222,
		Prefix:       "gomoku",
		StartTimeout: 10 * time.Second,
	}
}

func (n *NatsConfig) validate() error {
	if !n.Enabled {
		return nil
	}
	el := errors.NewErrorList()

	if n.URL == "" && (n.Port < -1 || n.Port > 65535) {
		el.Add(fmt.Errorf("nats.port must be between -1 and 65535, got %d", n.Port))
	}
	if n.Prefix == "" {
		el.Add(fmt.Errorf("nats.prefix is required"))
	}
	if n.StartTimeout < 0 {
		el.Add(fmt.Errorf("nats.start_timeout must not be negative"))
	}

	return el.Err()
}

// BuildBus creates the event bus; the caller starts and closes it
func (n *NatsConfig) BuildBus(log logrus.FieldLogger) *messaging.Bus {
	opts := []messaging.Option{
		messaging.WithLogger(log),
		messaging.WithPrefix(n.Prefix),
	}
	if n.URL != "" {
		opts = append(opts, messaging.WithURL(n.URL))
	}
	if n.Host != "" {
		opts = append(opts, messaging.WithHost(n.Host))
	}
	if n.Port != 0 {
		opts = append(opts, messaging.WithPort(n.Port))
	}
	if n.StartTimeout > 0 {
		opts = append(opts, messaging.WithStartTimeout(n.StartTimeout))
	}

	return messaging.New(opts...)
}

// NgrokConfig exposes the server through an ngrok tunnel
type NgrokConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Authtoken string `yaml:"authtoken"`
	Domain    string `yaml:"domain"`
}

func (n *NgrokConfig) validate() error {
	if n.Enabled && n.Authtoken == "" {
		return fmt.Errorf("ngrok.authtoken is required when ngrok is enabled")
	}
	return nil
}
