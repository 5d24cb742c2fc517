package room

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrRoomNotFound  = errors.New("room not found")
	ErrRoomFull      = errors.New("room is full or the game has already started")
	ErrAlreadyInRoom = errors.New("player is already in a room")
	ErrNotInRoom     = errors.New("player is not in a room")
	ErrInvalidState  = errors.New("room is not in a valid state for this action")
)

// Manager owns every room and the player to room index.
// All methods are safe for concurrent use and never block on I/O.
type Manager struct {
	rooms map[string]*Room  // roomID -> room
	index map[string]string // playerID -> roomID
	mu    sync.RWMutex

	newID func() string
	now   func() time.Time
}

// NewManager creates an empty room manager
func NewManager() *Manager {
	return &Manager{
		rooms: make(map[string]*Room),
		index: make(map[string]string),
		newID: uuid.NewString,
		now:   time.Now,
	}
}

// Create opens a Waiting room owned by host
func (m *Manager) Create(host string) (Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.index[host]; ok {
		return Room{}, fmt.Errorf("%w: %s", ErrAlreadyInRoom, existing)
	}

	id := m.newID()
	for _, taken := m.rooms[id]; taken; _, taken = m.rooms[id] {
		id = m.newID()
	}

	now := m.now()
	r := &Room{
		ID:        id,
		Host:      host,
		Status:    Waiting,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.rooms[id] = r
	m.index[host] = id

	return *r, nil
}

// Join seats player as the guest of roomID.
// It fails without mutating state when the room is unknown, not Waiting, or
// already has a guest.
func (m *Manager) Join(player, roomID string) (Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rooms[roomID]
	if !ok {
		return Room{}, ErrRoomNotFound
	}
	if r.Status != Waiting || r.HasGuest() {
		return Room{}, ErrRoomFull
	}
	if existing, ok := m.index[player]; ok {
		return Room{}, fmt.Errorf("%w: %s", ErrAlreadyInRoom, existing)
	}

	r.Guest = player
	r.Status = Playing
	r.UpdatedAt = m.now()
	m.index[player] = roomID

	return *r, nil
}

// RoomOf returns the room player currently occupies
func (m *Manager) RoomOf(player string) (Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.index[player]
	if !ok {
		return Room{}, false
	}
	r, ok := m.rooms[id]
	if !ok {
		return Room{}, false
	}
	return *r, true
}

// Get returns a room by ID
func (m *Manager) Get(roomID string) (Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.rooms[roomID]
	if !ok {
		return Room{}, ErrRoomNotFound
	}
	return *r, nil
}

// HandleDisconnect removes player from its room.
// A departing host closes the room and unindexes the guest; a departing
// guest reopens the room for a new guest.
func (m *Manager) HandleDisconnect(player string) Departure {
	m.mu.Lock()
	defer m.mu.Unlock()

	roomID, ok := m.index[player]
	if !ok {
		return Departure{}
	}
	delete(m.index, player)

	r, ok := m.rooms[roomID]
	if !ok {
		return Departure{}
	}

	d := Departure{RoomID: roomID}
	switch player {
	case r.Host:
		d.WasHost = true
		d.Opponent = r.Guest
		if r.HasGuest() {
			delete(m.index, r.Guest)
		}
		delete(m.rooms, roomID)
	case r.Guest:
		d.Opponent = r.Host
		r.Guest = ""
		r.Status = Waiting
		r.UpdatedAt = m.now()
	}

	return d
}

// Finish marks the room of player as Finished
func (m *Manager) Finish(player string) (Room, error) {
	return m.transition(player, Finished, Playing)
}

// Restart moves the room of player back to Playing
func (m *Manager) Restart(player string) (Room, error) {
	return m.transition(player, Playing, Playing, Finished)
}

func (m *Manager) transition(player string, to Status, from ...Status) (Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.index[player]
	if !ok {
		return Room{}, ErrNotInRoom
	}
	r, ok := m.rooms[id]
	if !ok {
		return Room{}, ErrNotInRoom
	}

	allowed := false
	for _, s := range from {
		if r.Status == s {
			allowed = true
			break
		}
	}
	if !allowed || !r.HasGuest() {
		return *r, fmt.Errorf("%w: %s -> %s", ErrInvalidState, r.Status, to)
	}

	if r.Status != to {
		r.Status = to
		r.UpdatedAt = m.now()
	}
	return *r, nil
}

// List returns every room ordered by creation time
func (m *Manager) List() []Room {
	m.mu.RLock()
	result := make([]Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		result = append(result, *r)
	}
	m.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

// Stats counts rooms by status and seated players
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Stats{
		Total:    len(m.rooms),
		Players:  len(m.index),
		ByStatus: map[string]int{},
	}
	for _, r := range m.rooms {
		s.ByStatus[r.Status.String()]++
	}
	return s
}
