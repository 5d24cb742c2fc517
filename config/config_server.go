package config

import (
	"fmt"
	"time"

	"github.com/pixil98/go-errors"
	"github.com/sirupsen/logrus"

	"github.com/wricardo/gomoku-relay/transport/websocket"
)

// ServerConfig is the HTTP listener
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:            "0.0.0.0",
		Port:            12345,
		ShutdownTimeout: 10 * time.Second,
	}
}

func (s *ServerConfig) validate() error {
	el := errors.NewErrorList()

	if s.Port < 1 || s.Port > 65535 {
		el.Add(fmt.Errorf("server.port must be between 1 and 65535, got %d", s.Port))
	}
	if s.ShutdownTimeout <= 0 {
		el.Add(fmt.Errorf("server.shutdown_timeout must be positive"))
	}

	return el.Err()
}

// WebSocketConfig holds the per-connection limits
type WebSocketConfig struct {
	WriteWait      time.Duration `yaml:"write_wait"`
	PongWait       time.Duration `yaml:"pong_wait"`
	PingPeriod     time.Duration `yaml:"ping_period"`
	MaxMessageSize int64         `yaml:"max_message_size"`
	SendBuffer     int           `yaml:"send_buffer"`
	OverflowPolicy string        `yaml:"overflow_policy"`
	RateLimit      float64       `yaml:"rate_limit"`
	RateBurst      int           `yaml:"rate_burst"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

func defaultWebSocketConfig() WebSocketConfig {
	d := websocket.DefaultConfig()
	return WebSocketConfig{
		WriteWait:      d.WriteWait,
		PongWait:       d.PongWait,
		PingPeriod:     d.PingPeriod,
		MaxMessageSize: d.MaxMessageSize,
		SendBuffer:     d.SendBuffer,
		OverflowPolicy: websocket.OverflowDisconnect.String(),
		RateLimit:      d.RateLimit,
		RateBurst:      d.RateBurst,
	}
}

func (w *WebSocketConfig) validate() error {
	el := errors.NewErrorList()

	if w.WriteWait <= 0 {
		el.Add(fmt.Errorf("websocket.write_wait must be positive"))
	}
	if w.PongWait <= 0 {
		el.Add(fmt.Errorf("websocket.pong_wait must be positive"))
	}
	if w.PingPeriod <= 0 || w.PingPeriod >= w.PongWait {
		el.Add(fmt.Errorf("websocket.ping_period must be positive and less than pong_wait"))
	}
	if w.MaxMessageSize <= 0 {
		el.Add(fmt.Errorf("websocket.max_message_size must be positive"))
	}
	if w.SendBuffer < 1 {
		el.Add(fmt.Errorf("websocket.send_buffer must be at least 1"))
	}
	if _, err := websocket.ParseOverflowPolicy(w.OverflowPolicy); err != nil {
		el.Add(fmt.Errorf("websocket.overflow_policy: %w", err))
	}
	if w.RateLimit < 0 {
		el.Add(fmt.Errorf("websocket.rate_limit must not be negative"))
	}
	if w.RateLimit > 0 && w.RateBurst < 1 {
		el.Add(fmt.Errorf("websocket.rate_burst must be at least 1 when rate_limit is set"))
	}

	return el.Err()
}

// Policy returns the parsed overflow policy
func (w *WebSocketConfig) Policy() websocket.OverflowPolicy {
	p, _ := websocket.ParseOverflowPolicy(w.OverflowPolicy)
	return p
}

// Transport converts the section into the supervisor configuration
func (w *WebSocketConfig) Transport() websocket.Config {
	return websocket.Config{
		WriteWait:      w.WriteWait,
		PongWait:       w.PongWait,
		PingPeriod:     w.PingPeriod,
		MaxMessageSize: w.MaxMessageSize,
		SendBuffer:     w.SendBuffer,
		RateLimit:      w.RateLimit,
		RateBurst:      w.RateBurst,
		AllowedOrigins: w.AllowedOrigins,
	}
}

// LogConfig selects the logrus level and formatter
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func (l *LogConfig) validate() error {
	el := errors.NewErrorList()

	if _, err := logrus.ParseLevel(l.Level); err != nil {
		el.Add(fmt.Errorf("log.level: %w", err))
	}
	switch l.Format {
	case "", "text", "json":
	default:
		el.Add(fmt.Errorf("log.format must be text or json, got %q", l.Format))
	}

	return el.Err()
}

// BuildLogger creates the root logger
func (l *LogConfig) BuildLogger() (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(l.Level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level: %w", err)
	}

	logger := logrus.New()
	logger.SetLevel(level)
	if l.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger, nil
}
