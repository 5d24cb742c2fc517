package messaging

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/wricardo/gomoku-relay/game/room"
)

var ErrNotStarted = errors.New("event bus not started")

// Bus publishes room lifecycle events over NATS. It either connects to an
// external server or runs an embedded one.
type Bus struct {
	ns   *server.Server
	conn *nats.Conn

	url            string
	host           string
	port           int
	prefix         string
	startupTimeout time.Duration
	log            logrus.FieldLogger
}

// Option configures a Bus
type Option func(*Bus)

// WithURL connects to an existing NATS server instead of embedding one
func WithURL(url string) Option {
	return func(b *Bus) {
		b.url = url
	}
}

// WithHost sets the listen host of the embedded server
func WithHost(host string) Option {
	return func(b *Bus) {
		b.host = host
	}
}

// WithPort sets the listen port of the embedded server. -1 picks a random port.
func WithPort(port int) Option {
	return func(b *Bus) {
		b.port = port
	}
}

func WithStartTimeout(d time.Duration) Option {
	return func(b *Bus) {
		b.startupTimeout = d
	}
}

// WithPrefix sets the subject prefix, "gomoku" by default
func WithPrefix(prefix string) Option {
	return func(b *Bus) {
		b.prefix = strings.Trim(prefix, ".")
	}
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(b *Bus) {
		b.log = l
	}
}

// New creates a bus; call Start before publishing
func New(opts ...Option) *Bus {
	b := &Bus{
		host:           "127.0.0.1",
		port:           server.DEFAULT_PORT,
		prefix:         "gomoku",
		startupTimeout: 10 * time.Second,
		log:            logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Start launches the embedded server when no URL is configured and opens the
// client connection.
func (b *Bus) Start() error {
	url := b.url
	if url == "" {
		ns, err := server.NewServer(&server.Options{
			Host:   b.host,
			Port:   b.port,
			NoSigs: true, // Let the application handle signals
			NoLog:  true,
		})
		if err != nil {
			return fmt.Errorf("creating nats server: %w", err)
		}
		ns.Start()
		if !ns.ReadyForConnections(b.startupTimeout) {
			ns.Shutdown()
			return fmt.Errorf("nats server not ready for connections")
		}
		b.ns = ns
		url = ns.ClientURL()
		b.log.WithField("addr", ns.Addr()).Info("Embedded NATS server listening")
	}

	conn, err := nats.Connect(url, nats.Name("gomoku-relay"))
	if err != nil {
		b.shutdownServer()
		return fmt.Errorf("connecting to nats at %s: %w", url, err)
	}
	b.conn = conn
	b.log.WithField("url", conn.ConnectedUrl()).Info("Connected to NATS")
	return nil
}

// Close drains the connection and stops the embedded server
func (b *Bus) Close() error {
	var err error
	if b.conn != nil {
		err = b.conn.Drain()
		b.conn = nil
	}
	b.shutdownServer()
	return err
}

func (b *Bus) shutdownServer() {
	if b.ns == nil {
		return
	}
	b.ns.Shutdown()
	b.ns.WaitForShutdown()
	b.ns = nil
}

// ClientURL returns the URL clients can use to reach the bus
func (b *Bus) ClientURL() string {
	if b.ns != nil {
		return b.ns.ClientURL()
	}
	return b.url
}

// Publish sends data on subject
func (b *Bus) Publish(subject string, data []byte) error {
	if b.conn == nil {
		return ErrNotStarted
	}
	return b.conn.Publish(subject, data)
}

// Subscribe calls handler for each message on subject, which may contain
// wildcards. The returned function removes the subscription.
func (b *Bus) Subscribe(subject string, handler func(subject string, data []byte)) (func(), error) {
	if b.conn == nil {
		return nil, ErrNotStarted
	}
	sub, err := b.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	})
	if err != nil {
		return nil, err
	}
	return func() { sub.Unsubscribe() }, nil
}

// Flush waits until the server has processed everything published so far
func (b *Bus) Flush() error {
	if b.conn == nil {
		return ErrNotStarted
	}
	return b.conn.Flush()
}

// RoomSubject returns the subject room events of kind are published on
func (b *Bus) RoomSubject(kind room.EventKind) string {
	return fmt.Sprintf("%s.room.%s", b.prefix, kind)
}

// PublishRoomEvent publishes ev as JSON on its room subject
func (b *Bus) PublishRoomEvent(ev room.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encoding room event: %w", err)
	}
	return b.Publish(b.RoomSubject(ev.Kind), data)
}

// SubscribeRoomEvents calls handler for every room event. Messages that do
// not decode are logged and skipped.
func (b *Bus) SubscribeRoomEvents(handler func(room.Event)) (func(), error) {
	return b.Subscribe(b.prefix+".room.>", func(subject string, data []byte) {
		var ev room.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			b.log.WithError(err).WithField("subject", subject).Warn("Skipping undecodable room event")
			return
		}
		handler(ev)
	})
}
