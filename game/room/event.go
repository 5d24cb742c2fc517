package room

import "time"

// EventKind names a room lifecycle transition
type EventKind string

const (
	EventCreated   EventKind = "created"
	EventJoined    EventKind = "joined"
	EventFinished  EventKind = "finished"
	EventRestarted EventKind = "restarted"
	EventVacated   EventKind = "vacated" // guest left, room is Waiting again
	EventClosed    EventKind = "closed"  // host left, room is gone
)

// Event describes one lifecycle transition of a room.
// Player is the occupant whose action caused it.
type Event struct {
	Kind   EventKind `json:"kind"`
	RoomID string    `json:"room_id"`
	Player string    `json:"player_id"`
	Host   string    `json:"host_id,omitempty"`
	Guest  string    `json:"guest_id,omitempty"`
	Status Status    `json:"status"`
	At     time.Time `json:"at"`
}

// NewEvent builds an event from a room snapshot
func NewEvent(kind EventKind, r Room, player string, at time.Time) Event {
	return Event{
		Kind:   kind,
		RoomID: r.ID,
		Player: player,
		Host:   r.Host,
		Guest:  r.Guest,
		Status: r.Status,
		At:     at,
	}
}
