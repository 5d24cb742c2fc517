package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/wricardo/gomoku-relay/api"
	"github.com/wricardo/gomoku-relay/config"
	"github.com/wricardo/gomoku-relay/game/protocol"
	"github.com/wricardo/gomoku-relay/game/relay"
	"github.com/wricardo/gomoku-relay/game/room"
	"github.com/wricardo/gomoku-relay/transport/mcp"
	"github.com/wricardo/gomoku-relay/transport/messaging"
	"github.com/wricardo/gomoku-relay/transport/websocket"
)

// app holds every long-lived component of a running relay
type app struct {
	cfg      *config.Config
	log      *logrus.Logger
	rooms    *room.Manager
	registry *websocket.Registry
	router   *relay.Router
	ws       *websocket.Server
	bus      *messaging.Bus
	handler  http.Handler

	unsubscribe func()
}

// newApp wires the relay. baseURL is where the MCP proxy reaches the REST
// API; it is ignored when MCP is disabled.
func newApp(cfg *config.Config, log *logrus.Logger, baseURL string) (*app, error) {
	a := &app{
		cfg:   cfg,
		log:   log,
		rooms: room.NewManager(),
	}

	a.registry = websocket.NewRegistry(cfg.WebSocket.Policy(), log.WithField("component", "registry"))

	routerOpts := []relay.Option{
		relay.WithLogger(log.WithField("component", "relay")),
		relay.WithDecoder(protocol.NewDecoder(protocol.WithLegacy(cfg.Protocol.LegacyDecoding))),
	}

	if cfg.NATS.Enabled {
		a.bus = cfg.NATS.BuildBus(log.WithField("component", "nats"))
		if err := a.bus.Start(); err != nil {
			return nil, fmt.Errorf("starting event bus: %w", err)
		}

		unsubscribe, err := a.bus.SubscribeRoomEvents(func(ev room.Event) {
			log.WithFields(logrus.Fields{
				"event":  ev.Kind,
				"room":   ev.RoomID,
				"player": ev.Player,
			}).Debug("room event")
		})
		if err != nil {
			a.bus.Close()
			return nil, fmt.Errorf("subscribing to room events: %w", err)
		}
		a.unsubscribe = unsubscribe

		routerOpts = append(routerOpts, relay.WithPublisher(a.bus))
	}

	a.router = relay.NewRouter(a.rooms, a.registry, routerOpts...)
	a.ws = websocket.NewServer(a.registry, a.router,
		websocket.WithConfig(cfg.WebSocket.Transport()),
		websocket.WithLogger(log.WithField("component", "websocket")),
	)

	apiOpts := []api.Option{api.WithVersion(Version)}
	if cfg.MCP.Enabled {
		apiOpts = append(apiOpts, api.WithMCP(mcp.NewClient(baseURL)))
	}
	a.handler = api.NewServer(a.rooms, a.registry, http.HandlerFunc(a.ws.ServeWS), apiOpts...)

	return a, nil
}

// Handler returns the root HTTP handler
func (a *app) Handler() http.Handler {
	return a.handler
}

// Shutdown closes player connections, then the event bus
func (a *app) Shutdown(ctx context.Context) error {
	err := a.ws.Shutdown(ctx)
	if err != nil {
		a.log.WithError(err).Warn("websocket shutdown incomplete")
	}

	if a.unsubscribe != nil {
		a.unsubscribe()
	}
	if a.bus != nil {
		if cerr := a.bus.Close(); cerr != nil {
			a.log.WithError(cerr).Warn("event bus close failed")
			if err == nil {
				err = cerr
			}
		}
	}
	return err
}
