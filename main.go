// Command gomoku-relay starts the two-player gomoku relay server.
//
// It supports two modes:
//  1. serve (default) - runs the HTTP server exposing the WebSocket relay at
//     /ws, the REST API and an /mcp HTTP endpoint
//  2. mcp - runs an MCP stdio server against an existing relay, or spins up
//     an internal one if none is reachable
//
// check-config validates the merged settings and prints them without
// starting anything.
//
// Settings come from built-in defaults, an optional YAML file (--config),
// then environment variables and flags. A .env file in the working
// directory is loaded first when present.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"
	"gopkg.in/yaml.v3"

	"github.com/wricardo/gomoku-relay/config"
	"github.com/wricardo/gomoku-relay/transport/mcp"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "gomoku-relay"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
	}

	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", AppName, err)
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:    AppName,
		Usage:   "two-player gomoku WebSocket relay",
		Version: Version,
		Flags:   relayFlags(),
		Action:  runServer,
		Commands: []*cli.Command{
			{
				Name:    "mcp",
				Aliases: []string{"stdio-mcp", "mcp-stdio"},
				Usage:   "run an MCP stdio server backed by the relay REST API",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "api-url",
						Usage:   "relay REST API to proxy; an internal relay is started when unreachable",
						Value:   "http://localhost:12345",
						Sources: cli.EnvVars("RELAY_API_URL"),
					},
				},
				Action: runStdioMCP,
			},
			{
				Name:   "check-config",
				Usage:  "validate the configuration and print the effective settings as YAML",
				Action: runCheckConfig,
			},
		},
	}
}

// relayFlags are shared by every mode. Values only override the loaded
// configuration when set on the command line or in the environment.
func relayFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "path to a YAML configuration file",
			Sources: cli.EnvVars("RELAY_CONFIG"),
		},
		&cli.StringFlag{
			Name:    "host",
			Usage:   "HTTP server host",
			Sources: cli.EnvVars("HOST"),
		},
		&cli.IntFlag{
			Name:    "port",
			Aliases: []string{"p"},
			Usage:   "HTTP server port",
			Sources: cli.EnvVars("PORT"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "panic, fatal, error, warn, info, debug or trace",
			Sources: cli.EnvVars("LOG_LEVEL"),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Usage:   "text or json",
			Sources: cli.EnvVars("LOG_FORMAT"),
		},
		&cli.BoolFlag{
			Name:  "debug",
			Usage: "shorthand for --log-level debug",
		},
		&cli.BoolFlag{
			Name:    "legacy-decoding",
			Usage:   "accept legacy frame shapes and substring ping/close detection",
			Sources: cli.EnvVars("LEGACY_DECODING"),
		},
		&cli.StringFlag{
			Name:    "overflow-policy",
			Usage:   "what to do when a player's send queue is full: disconnect or drop",
			Sources: cli.EnvVars("OVERFLOW_POLICY"),
		},
		&cli.IntFlag{
			Name:    "send-buffer",
			Usage:   "outbound frames queued per player",
			Sources: cli.EnvVars("SEND_BUFFER"),
		},
		&cli.StringSliceFlag{
			Name:    "allowed-origin",
			Usage:   "origin allowed to open a WebSocket; repeat for several, '*' for any",
			Sources: cli.EnvVars("ALLOWED_ORIGINS"),
		},
		&cli.BoolFlag{
			Name:    "nats",
			Usage:   "publish room events to NATS",
			Sources: cli.EnvVars("NATS_ENABLED"),
		},
		&cli.StringFlag{
			Name:    "nats-url",
			Usage:   "external NATS server; empty runs an embedded one",
			Sources: cli.EnvVars("NATS_URL"),
		},
		&cli.BoolFlag{
			Name:    "mcp",
			Usage:   "serve the MCP endpoint at /mcp",
			Sources: cli.EnvVars("MCP_ENABLED"),
		},
		&cli.BoolFlag{
			Name:    "ngrok",
			Usage:   "expose the server through an ngrok tunnel",
			Sources: cli.EnvVars("NGROK_ENABLED"),
		},
		&cli.StringFlag{
			Name:    "ngrok-authtoken",
			Usage:   "ngrok auth token",
			Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN"),
		},
		&cli.StringFlag{
			Name:    "ngrok-domain",
			Usage:   "custom ngrok domain",
			Sources: cli.EnvVars("NGROK_DOMAIN"),
		},
	}
}

// loadConfig reads the configuration file, applies flags and validates the result
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, err
	}

	applyFlags(cmd, cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyFlags(cmd *cli.Command, cfg *config.Config) {
	if cmd.IsSet("host") {
		cfg.Server.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		cfg.Server.Port = cmd.Int("port")
	}
	if cmd.IsSet("log-level") {
		cfg.Log.Level = cmd.String("log-level")
	}
	if cmd.Bool("debug") {
		cfg.Log.Level = "debug"
	}
	if cmd.IsSet("log-format") {
		cfg.Log.Format = cmd.String("log-format")
	}
	if cmd.IsSet("legacy-decoding") {
		cfg.Protocol.LegacyDecoding = cmd.Bool("legacy-decoding")
	}
	if cmd.IsSet("overflow-policy") {
		cfg.WebSocket.OverflowPolicy = cmd.String("overflow-policy")
	}
	if cmd.IsSet("send-buffer") {
		cfg.WebSocket.SendBuffer = cmd.Int("send-buffer")
	}
	if cmd.IsSet("allowed-origin") {
		cfg.WebSocket.AllowedOrigins = cmd.StringSlice("allowed-origin")
	}
	if cmd.IsSet("nats") {
		cfg.NATS.Enabled = cmd.Bool("nats")
	}
	if cmd.IsSet("nats-url") {
		cfg.NATS.URL = cmd.String("nats-url")
	}
	if cmd.IsSet("mcp") {
		cfg.MCP.Enabled = cmd.Bool("mcp")
	}
	if cmd.IsSet("ngrok") {
		cfg.Ngrok.Enabled = cmd.Bool("ngrok")
	}
	if cmd.IsSet("ngrok-authtoken") {
		cfg.Ngrok.Authtoken = cmd.String("ngrok-authtoken")
	}
	if cmd.IsSet("ngrok-domain") {
		cfg.Ngrok.Domain = cmd.String("ngrok-domain")
	}
}

// runServer starts the HTTP server with the WebSocket relay, REST API and an
// /mcp proxy endpoint, then blocks until SIGINT or SIGTERM.
func runServer(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log, err := cfg.Log.BuildLogger()
	if err != nil {
		return err
	}

	addr := cfg.Addr()
	a, err := newApp(cfg, log, "http://"+loopbackAddr(cfg.Server.Host, cfg.Server.Port))
	if err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"version":         Version,
		"legacy_decoding": cfg.Protocol.LegacyDecoding,
		"overflow_policy": cfg.WebSocket.OverflowPolicy,
		"nats":            cfg.NATS.Enabled,
	}).Infof("Starting %s", AppName)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      a.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	serveErr := make(chan error, 1)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()

		log.Infof("HTTP server listening on %s", addr)
		log.Infof("WebSocket: ws://%s/ws", addr)
		log.Infof("REST API: http://%s/api", addr)
		if cfg.MCP.Enabled {
			log.Infof("MCP endpoint: http://%s/mcp", addr)
		}

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()

	if cfg.Ngrok.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrok(ctx, cfg.Ngrok, a.Handler(), log)
		}()
	}

	var runErr error
	select {
	case sig := <-stop:
		log.Infof("Received signal: %v. Shutting down...", sig)
	case runErr = <-serveErr:
		log.WithError(runErr).Error("Shutting down")
	case <-ctx.Done():
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("HTTP server shutdown error")
	}
	if err := a.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("Relay shutdown error")
	}

	wg.Wait()
	log.Info("Server stopped")
	return runErr
}

// runNgrok serves handler through an ngrok tunnel until ctx is cancelled
func runNgrok(ctx context.Context, cfg config.NgrokConfig, handler http.Handler, log logrus.FieldLogger) {
	log.Info("Starting ngrok tunnel...")

	var tunnel ngrokConfig.Tunnel
	if cfg.Domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(cfg.Domain))
		log.Infof("Using custom ngrok domain: %s", cfg.Domain)
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(cfg.Authtoken))
	if err != nil {
		log.WithError(err).Error("Failed to start ngrok tunnel")
		return
	}

	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			log.WithError(err).Warn("Failed to close ngrok tunnel")
		}
	}()

	ngrokURL := tun.URL()
	log.Infof("Ngrok tunnel established: %s", ngrokURL)
	log.Infof("  WebSocket (ngrok): %s/ws", ngrokURL)
	log.Infof("  REST API (ngrok): %s/api", ngrokURL)

	if err := http.Serve(tun, handler); err != nil && !errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil {
		log.WithError(err).Warn("Ngrok server error")
	}
	log.Info("Ngrok tunnel closed")
}

// runStdioMCP runs the MCP server over stdio. It reuses the relay at
// --api-url when it answers; otherwise it starts an internal relay bound to
// a random loopback port and targets that.
func runStdioMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log, err := cfg.Log.BuildLogger()
	if err != nil {
		return err
	}
	// stdout carries the MCP stream
	log.SetOutput(os.Stderr)

	baseURL := cmd.String("api-url")
	log.Infof("Checking for external relay at %s...", baseURL)

	if relayReachable(baseURL) {
		log.Infof("External relay found at %s, using it for MCP", baseURL)
	} else {
		log.Info("No external relay found, starting internal HTTP server")

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to get available port: %w", err)
		}
		baseURL = "http://" + listener.Addr().String()

		// the internal relay only answers the proxy
		cfg.MCP.Enabled = false
		cfg.NATS.Enabled = false

		a, err := newApp(cfg, log, baseURL)
		if err != nil {
			listener.Close()
			return err
		}

		httpServer := &http.Server{Handler: a.Handler()}
		go func() {
			if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Error("Internal HTTP server error")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			httpServer.Shutdown(shutdownCtx)
			a.Shutdown(shutdownCtx)
		}()

		log.Infof("Internal relay listening on %s", listener.Addr())
	}

	mcpClient := mcp.NewClient(baseURL)
	log.Info("MCP stdio server ready")

	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}

// runCheckConfig prints the configuration the server would run with. The
// ngrok token is masked.
func runCheckConfig(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	effective := *cfg
	if effective.Ngrok.Authtoken != "" {
		effective.Ngrok.Authtoken = "********"
	}

	out, err := yaml.Marshal(&effective)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	_, err = cmd.Root().Writer.Write(out)
	return err
}

// relayReachable reports whether a relay REST API answers at baseURL
func relayReachable(baseURL string) bool {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < 500
}

// loopbackAddr is the address the in-process MCP proxy dials. Wildcard hosts
// are not dialable, so they map to loopback.
func loopbackAddr(host string, port int) string {
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, fmt.Sprint(port))
}
