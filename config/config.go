package config

import (
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"

	"github.com/pixil98/go-errors"
	"gopkg.in/yaml.v3"
)

var (
	ErrConfigNotFound = stderrors.New("configuration not found")
	ErrInvalidConfig  = stderrors.New("invalid configuration")
)

// Config is the complete relay server configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Protocol  ProtocolConfig  `yaml:"protocol"`
	Log       LogConfig       `yaml:"log"`
	NATS      NatsConfig      `yaml:"nats"`
	Ngrok     NgrokConfig     `yaml:"ngrok"`
	MCP       MCPConfig       `yaml:"mcp"`
}

// ProtocolConfig controls frame decoding
type ProtocolConfig struct {
	// LegacyDecoding enables the tolerant fallback scan and substring
	// ping/close detection.
	LegacyDecoding bool `yaml:"legacy_decoding"`
}

// MCPConfig controls the /mcp endpoint
type MCPConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Server:    defaultServerConfig(),
		WebSocket: defaultWebSocketConfig(),
		Protocol:  ProtocolConfig{LegacyDecoding: true},
		Log:       LogConfig{Level: "info", Format: "text"},
		NATS:      defaultNatsConfig(),
		MCP:       MCPConfig{Enabled: true},
	}
}

// Load reads a YAML file over the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("opening config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}

	return cfg, nil
}

// Validate checks every section and reports all problems at once
func (c *Config) Validate() error {
	el := errors.NewErrorList()
	el.Add(c.Server.validate())
	el.Add(c.WebSocket.validate())
	el.Add(c.Log.validate())
	el.Add(c.NATS.validate())
	el.Add(c.Ngrok.validate())

	if err := el.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Addr returns the listen address of the HTTP server
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}
