package room

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a room
type Status int

const (
	Waiting Status = iota
	Playing
	Finished
)

// String returns the status name
func (s Status) String() string {
	switch s {
	case Waiting:
		return "waiting"
	case Playing:
		return "playing"
	case Finished:
		return "finished"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// MarshalText encodes the status by name
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a status name
func (s *Status) UnmarshalText(text []byte) error {
	switch string(text) {
	case "waiting":
		*s = Waiting
	case "playing":
		*s = Playing
	case "finished":
		*s = Finished
	default:
		return fmt.Errorf("unknown room status %q", text)
	}
	return nil
}

// Room is a two-seat pairing between a host and an optional guest.
// Values returned by the Manager are snapshots; mutating them has no effect.
type Room struct {
	ID        string    `json:"id"`
	Host      string    `json:"host_id"`
	Guest     string    `json:"guest_id,omitempty"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasGuest reports whether the guest seat is taken
func (r Room) HasGuest() bool {
	return r.Guest != ""
}

// Occupants returns the host followed by the guest, if present
func (r Room) Occupants() []string {
	if r.HasGuest() {
		return []string{r.Host, r.Guest}
	}
	return []string{r.Host}
}

// Opponent returns the other occupant of the room for player
func (r Room) Opponent(player string) (string, bool) {
	switch player {
	case r.Host:
		return r.Guest, r.HasGuest()
	case r.Guest:
		return r.Host, true
	default:
		return "", false
	}
}

// Departure describes what HandleDisconnect did
type Departure struct {
	// RoomID is empty when the player was not in a room
	RoomID string
	// WasHost is true when the room was removed
	WasHost bool
	// Opponent is the other occupant at the time of departure, if any
	Opponent string
}

// Stats summarizes the rooms held by a Manager
type Stats struct {
	Total    int            `json:"total_rooms"`
	Players  int            `json:"total_players"`
	ByStatus map[string]int `json:"by_status"`
}
