package relay

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/wricardo/gomoku-relay/game/protocol"
	"github.com/wricardo/gomoku-relay/game/room"
)

// ErrCloseRequested is returned by HandleMessage when the client asked to
// end the connection.
var ErrCloseRequested = errors.New("close requested by client")

// Rooms is the room state the router reads and mutates
type Rooms interface {
	Create(host string) (room.Room, error)
	Join(player, roomID string) (room.Room, error)
	RoomOf(player string) (room.Room, bool)
	HandleDisconnect(player string) room.Departure
	Finish(player string) (room.Room, error)
	Restart(player string) (room.Room, error)
}

// Peers delivers messages to connected players without blocking on I/O
type Peers interface {
	Send(id string, msg any) bool
	BroadcastExcept(excluded string, msg any) int
}

// Publisher receives room lifecycle events
type Publisher interface {
	PublishRoomEvent(ev room.Event) error
}

// Option configures a Router
type Option func(*Router)

// WithPublisher sets where room lifecycle events are published
func WithPublisher(p Publisher) Option {
	return func(r *Router) {
		r.events = p
	}
}

// WithDecoder replaces the default legacy-enabled decoder
func WithDecoder(d *protocol.Decoder) Option {
	return func(r *Router) {
		r.decoder = d
	}
}

// WithLogger sets the router logger
func WithLogger(l logrus.FieldLogger) Option {
	return func(r *Router) {
		r.log = l
	}
}

// WithClock overrides the time source used for pongs and events
func WithClock(now func() time.Time) Option {
	return func(r *Router) {
		r.now = now
	}
}

// Router turns inbound frames into room operations and outbound messages
type Router struct {
	rooms   Rooms
	peers   Peers
	events  Publisher
	decoder *protocol.Decoder
	log     logrus.FieldLogger
	now     func() time.Time
}

// NewRouter creates a router over the given rooms and peers
func NewRouter(rooms Rooms, peers Peers, opts ...Option) *Router {
	r := &Router{
		rooms:   rooms,
		peers:   peers,
		decoder: protocol.NewDecoder(),
		log:     logrus.StandardLogger(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Greeting is the init frame telling a new player its assigned id
func (r *Router) Greeting(player string) any {
	return protocol.NewInit(player)
}

// HandleMessage processes one inbound frame from player from.
// Undecodable frames are logged and dropped; the only error returned is
// ErrCloseRequested.
func (r *Router) HandleMessage(from string, data []byte) error {
	log := r.log.WithField("player_id", from)

	msg, err := r.decoder.Decode(data)
	if err != nil {
		log.WithError(err).Warn("Discarding frame")
		return nil
	}

	switch msg.Control {
	case protocol.ControlPing:
		r.peers.Send(from, protocol.NewPong(r.now()))
		return nil
	case protocol.ControlClose:
		return ErrCloseRequested
	}

	if msg.Legacy {
		log.WithField("kind", msg.Event.Kind()).Debug("Decoded legacy frame")
	}

	r.dispatch(log, from, msg.Event)
	return nil
}

func (r *Router) dispatch(log logrus.FieldLogger, from string, ev protocol.Event) {
	switch e := ev.(type) {
	case protocol.CreateRoom:
		r.createRoom(log, from)
	case protocol.JoinRoom:
		r.joinRoom(log, from, e.RoomID)
	case protocol.PlaceStone:
		r.placeStone(log, from, e)
	case protocol.GameOver:
		r.relayToOpponent(log, from, e)
		r.transition(log, from, room.EventFinished, r.rooms.Finish)
	case protocol.RestartGame:
		r.relayToOpponent(log, from, e)
		r.transition(log, from, room.EventRestarted, r.rooms.Restart)
	case protocol.UndoRequest, protocol.UndoResponse, protocol.GameUpdate:
		r.relayToOpponent(log, from, e)
	default:
		log.WithField("kind", ev.Kind()).Debug("Ignoring server-side event from client")
	}
}

func (r *Router) createRoom(log logrus.FieldLogger, from string) {
	rm, err := r.rooms.Create(from)
	if err != nil {
		r.sendError(log, from, err)
		return
	}

	log.WithField("room_id", rm.ID).Info("Room created")
	r.peers.Send(from, protocol.NewRoomCreated(rm.ID))
	r.publish(log, room.NewEvent(room.EventCreated, rm, from, r.now()))
}

func (r *Router) joinRoom(log logrus.FieldLogger, from, roomID string) {
	log = log.WithField("room_id", roomID)

	rm, err := r.rooms.Join(from, roomID)
	if err != nil {
		r.sendError(log, from, err)
		return
	}

	log.WithField("host_id", rm.Host).Info("Game started")
	start := protocol.NewGameStart(rm.ID, rm.Host, rm.Guest)
	for _, id := range rm.Occupants() {
		if !r.peers.Send(id, start) {
			log.WithField("recipient", id).Debug("Occupant not connected")
		}
	}
	r.publish(log, room.NewEvent(room.EventJoined, rm, from, r.now()))
}

// placeStone fans the move out to both occupants, the sender included, so
// each client renders moves in the order the server relayed them.
func (r *Router) placeStone(log logrus.FieldLogger, from string, move protocol.PlaceStone) {
	rm, ok := r.rooms.RoomOf(from)
	if !ok {
		log.Debug("Dropping move from player without a room")
		return
	}

	notice := protocol.NewStonePlaced(from, move.Row, move.Col)
	for _, id := range rm.Occupants() {
		r.peers.Send(id, notice)
	}
}

func (r *Router) relayToOpponent(log logrus.FieldLogger, from string, ev protocol.Event) {
	rm, ok := r.rooms.RoomOf(from)
	if !ok {
		log.WithField("kind", ev.Kind()).Debug("Dropping event from player without a room")
		return
	}
	opponent, ok := rm.Opponent(from)
	if !ok {
		log.WithField("kind", ev.Kind()).Debug("Dropping event, no opponent seated")
		return
	}

	r.peers.Send(opponent, protocol.Tagged{Event: protocol.WithSender(ev, from)})
}

func (r *Router) transition(log logrus.FieldLogger, from string, kind room.EventKind, apply func(string) (room.Room, error)) {
	rm, err := apply(from)
	if err != nil {
		if !errors.Is(err, room.ErrNotInRoom) {
			log.WithError(err).Debug("Room transition rejected")
		}
		return
	}
	r.publish(log, room.NewEvent(kind, rm, from, r.now()))
}

// Leave handles the departure of a player whose connection has ended. The
// player must already be unregistered from Peers so the broadcast skips it.
func (r *Router) Leave(player string) {
	log := r.log.WithField("player_id", player)

	d := r.rooms.HandleDisconnect(player)
	if d.RoomID != "" {
		log = log.WithField("room_id", d.RoomID)
		ev := room.Event{
			RoomID: d.RoomID,
			Player: player,
			At:     r.now(),
		}
		if d.WasHost {
			ev.Kind = room.EventClosed
			ev.Host = player
			ev.Guest = d.Opponent
			log.Info("Host left, room closed")
		} else {
			ev.Kind = room.EventVacated
			ev.Host = d.Opponent
			ev.Status = room.Waiting
			log.Info("Guest left, room reopened")
		}
		r.publish(log, ev)
	}

	n := r.peers.BroadcastExcept(player, protocol.Tagged{Event: protocol.PlayerDisconnected{PlayerID: player}})
	log.WithField("notified", n).Debug("Broadcast disconnect")
}

func (r *Router) sendError(log logrus.FieldLogger, to string, err error) {
	code := errorCode(err)
	log.WithError(err).WithField("code", code).Info("Request rejected")
	r.peers.Send(to, protocol.NewErrorMessage(err.Error(), code))
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, room.ErrRoomFull):
		return protocol.CodeRoomFull
	case errors.Is(err, room.ErrRoomNotFound):
		return protocol.CodeRoomNotFound
	case errors.Is(err, room.ErrAlreadyInRoom):
		return protocol.CodeAlreadyInRoom
	default:
		return ""
	}
}

func (r *Router) publish(log logrus.FieldLogger, ev room.Event) {
	if r.events == nil {
		return
	}
	if err := r.events.PublishRoomEvent(ev); err != nil {
		log.WithError(err).WithField("event", ev.Kind).Warn("Failed to publish room event")
	}
}
