package room

import (
	"errors"
	"fmt"
	"sync"
	"testing"
)

// checkInvariants verifies the guest/status rule and index consistency
func checkInvariants(t *testing.T, m *Manager) {
	t.Helper()
	m.mu.RLock()
	defer m.mu.RUnlock()

	for id, r := range m.rooms {
		hasGuest := r.Guest != ""
		active := r.Status == Playing || r.Status == Finished
		if hasGuest != active {
			t.Errorf("room %s: guest present=%v but status=%s", id, hasGuest, r.Status)
		}
		if m.index[r.Host] != id {
			t.Errorf("room %s: host %s indexed to %q", id, r.Host, m.index[r.Host])
		}
		if hasGuest && m.index[r.Guest] != id {
			t.Errorf("room %s: guest %s indexed to %q", id, r.Guest, m.index[r.Guest])
		}
	}
	for player, id := range m.index {
		r, ok := m.rooms[id]
		if !ok {
			t.Errorf("player %s indexed to missing room %s", player, id)
			continue
		}
		if r.Host != player && r.Guest != player {
			t.Errorf("player %s indexed to room %s but not seated", player, id)
		}
	}
}

func TestManager_Create(t *testing.T) {
	m := NewManager()

	r, err := m.Create("alice")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if r.ID == "" {
		t.Error("Expected non-empty room ID")
	}
	if r.Host != "alice" {
		t.Errorf("Expected host alice, got %s", r.Host)
	}
	if r.Status != Waiting {
		t.Errorf("Expected status waiting, got %s", r.Status)
	}
	if r.HasGuest() {
		t.Error("New room should not have a guest")
	}

	got, ok := m.RoomOf("alice")
	if !ok || got.ID != r.ID {
		t.Errorf("RoomOf(alice) = %v, %v; want room %s", got.ID, ok, r.ID)
	}

	other, err := m.Create("bob")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if other.ID == r.ID {
		t.Error("Expected unique room IDs")
	}

	checkInvariants(t, m)
}

func TestManager_CreateWhileSeated(t *testing.T) {
	m := NewManager()
	first, _ := m.Create("alice")

	_, err := m.Create("alice")
	if !errors.Is(err, ErrAlreadyInRoom) {
		t.Fatalf("Expected ErrAlreadyInRoom, got %v", err)
	}

	got, _ := m.RoomOf("alice")
	if got.ID != first.ID {
		t.Errorf("Index changed: got %s, want %s", got.ID, first.ID)
	}
	if len(m.List()) != 1 {
		t.Errorf("Expected 1 room, got %d", len(m.List()))
	}
}

func TestManager_Join(t *testing.T) {
	t.Run("successful join", func(t *testing.T) {
		m := NewManager()
		r, _ := m.Create("alice")

		joined, err := m.Join("bob", r.ID)
		if err != nil {
			t.Fatalf("Join failed: %v", err)
		}
		if joined.Guest != "bob" || joined.Host != "alice" {
			t.Errorf("Unexpected occupants host=%s guest=%s", joined.Host, joined.Guest)
		}
		if joined.Status != Playing {
			t.Errorf("Expected playing, got %s", joined.Status)
		}

		got, ok := m.RoomOf("bob")
		if !ok || got.ID != r.ID {
			t.Error("Guest should be indexed to the room")
		}
		checkInvariants(t, m)
	})

	t.Run("unknown room", func(t *testing.T) {
		m := NewManager()
		m.Create("alice")

		_, err := m.Join("bob", "no-such-room")
		if !errors.Is(err, ErrRoomNotFound) {
			t.Errorf("Expected ErrRoomNotFound, got %v", err)
		}
		if _, ok := m.RoomOf("bob"); ok {
			t.Error("Failed join must not index the player")
		}
	})

	t.Run("room already playing", func(t *testing.T) {
		m := NewManager()
		r, _ := m.Create("alice")
		m.Join("bob", r.ID)
		before, _ := m.Get(r.ID)

		_, err := m.Join("carol", r.ID)
		if !errors.Is(err, ErrRoomFull) {
			t.Fatalf("Expected ErrRoomFull, got %v", err)
		}

		after, _ := m.Get(r.ID)
		if before != after {
			t.Errorf("Room mutated by failed join: %+v -> %+v", before, after)
		}
		if _, ok := m.RoomOf("carol"); ok {
			t.Error("Failed join must not index the player")
		}
		checkInvariants(t, m)
	})

	t.Run("room finished", func(t *testing.T) {
		m := NewManager()
		r, _ := m.Create("alice")
		m.Join("bob", r.ID)
		if _, err := m.Finish("alice"); err != nil {
			t.Fatalf("Finish failed: %v", err)
		}

		_, err := m.Join("carol", r.ID)
		if !errors.Is(err, ErrRoomFull) {
			t.Errorf("Expected ErrRoomFull, got %v", err)
		}
	})

	t.Run("player already seated elsewhere", func(t *testing.T) {
		m := NewManager()
		r1, _ := m.Create("alice")
		r2, _ := m.Create("bob")

		_, err := m.Join("bob", r1.ID)
		if !errors.Is(err, ErrAlreadyInRoom) {
			t.Fatalf("Expected ErrAlreadyInRoom, got %v", err)
		}

		got, _ := m.RoomOf("bob")
		if got.ID != r2.ID {
			t.Error("Index should still point at bob's own room")
		}
		room1, _ := m.Get(r1.ID)
		if room1.HasGuest() || room1.Status != Waiting {
			t.Error("Rejected join must not seat the player")
		}
		checkInvariants(t, m)
	})

	t.Run("host joining own room", func(t *testing.T) {
		m := NewManager()
		r, _ := m.Create("alice")

		_, err := m.Join("alice", r.ID)
		if !errors.Is(err, ErrAlreadyInRoom) {
			t.Errorf("Expected ErrAlreadyInRoom, got %v", err)
		}
	})
}

func TestManager_HandleDisconnect(t *testing.T) {
	t.Run("unindexed player is a no-op", func(t *testing.T) {
		m := NewManager()
		m.Create("alice")

		d := m.HandleDisconnect("nobody")
		if d.RoomID != "" {
			t.Errorf("Expected empty departure, got %+v", d)
		}
		if len(m.List()) != 1 {
			t.Error("Rooms should be untouched")
		}
	})

	t.Run("host leaves waiting room", func(t *testing.T) {
		m := NewManager()
		r, _ := m.Create("alice")

		d := m.HandleDisconnect("alice")
		if !d.WasHost || d.RoomID != r.ID || d.Opponent != "" {
			t.Errorf("Unexpected departure %+v", d)
		}
		if _, err := m.Get(r.ID); !errors.Is(err, ErrRoomNotFound) {
			t.Error("Room should be removed")
		}
		checkInvariants(t, m)
	})

	t.Run("host leaves mid-game", func(t *testing.T) {
		m := NewManager()
		r, _ := m.Create("alice")
		m.Join("bob", r.ID)

		d := m.HandleDisconnect("alice")
		if !d.WasHost || d.Opponent != "bob" {
			t.Errorf("Unexpected departure %+v", d)
		}
		if _, err := m.Get(r.ID); !errors.Is(err, ErrRoomNotFound) {
			t.Error("Room should no longer exist")
		}
		if _, ok := m.RoomOf("bob"); ok {
			t.Error("Former guest should be unindexed")
		}
		if _, err := m.Join("carol", r.ID); !errors.Is(err, ErrRoomNotFound) {
			t.Errorf("Joining a closed room should yield ErrRoomNotFound, got %v", err)
		}
		checkInvariants(t, m)
	})

	t.Run("guest leaves mid-game", func(t *testing.T) {
		m := NewManager()
		r, _ := m.Create("alice")
		m.Join("bob", r.ID)

		d := m.HandleDisconnect("bob")
		if d.WasHost || d.Opponent != "alice" || d.RoomID != r.ID {
			t.Errorf("Unexpected departure %+v", d)
		}

		got, err := m.Get(r.ID)
		if err != nil {
			t.Fatalf("Room should still exist: %v", err)
		}
		if got.Status != Waiting || got.HasGuest() {
			t.Errorf("Expected waiting room without guest, got %+v", got)
		}
		host, ok := m.RoomOf("alice")
		if !ok || host.ID != r.ID {
			t.Error("Host should remain indexed")
		}
		if _, ok := m.RoomOf("bob"); ok {
			t.Error("Guest should be unindexed")
		}

		if _, err := m.Join("carol", r.ID); err != nil {
			t.Errorf("A new guest should be able to join: %v", err)
		}
		checkInvariants(t, m)
	})

	t.Run("guest leaves finished game", func(t *testing.T) {
		m := NewManager()
		r, _ := m.Create("alice")
		m.Join("bob", r.ID)
		m.Finish("bob")

		m.HandleDisconnect("bob")
		got, _ := m.Get(r.ID)
		if got.Status != Waiting {
			t.Errorf("Expected waiting, got %s", got.Status)
		}
		checkInvariants(t, m)
	})
}

func TestManager_FinishRestart(t *testing.T) {
	m := NewManager()
	r, _ := m.Create("alice")

	if _, err := m.Finish("alice"); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Finishing a waiting room should fail, got %v", err)
	}
	if _, err := m.Finish("nobody"); !errors.Is(err, ErrNotInRoom) {
		t.Errorf("Expected ErrNotInRoom, got %v", err)
	}

	m.Join("bob", r.ID)
	finished, err := m.Finish("bob")
	if err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	if finished.Status != Finished {
		t.Errorf("Expected finished, got %s", finished.Status)
	}
	checkInvariants(t, m)

	restarted, err := m.Restart("alice")
	if err != nil {
		t.Fatalf("Restart failed: %v", err)
	}
	if restarted.Status != Playing {
		t.Errorf("Expected playing, got %s", restarted.Status)
	}

	if _, err := m.Restart("alice"); err != nil {
		t.Errorf("Restart while playing should be allowed: %v", err)
	}
	checkInvariants(t, m)
}

func TestManager_ListAndStats(t *testing.T) {
	m := NewManager()
	r1, _ := m.Create("alice")
	m.Create("bob")
	m.Join("carol", r1.ID)

	rooms := m.List()
	if len(rooms) != 2 {
		t.Fatalf("Expected 2 rooms, got %d", len(rooms))
	}

	stats := m.Stats()
	if stats.Total != 2 {
		t.Errorf("Expected 2 rooms, got %d", stats.Total)
	}
	if stats.Players != 3 {
		t.Errorf("Expected 3 players, got %d", stats.Players)
	}
	if stats.ByStatus["waiting"] != 1 || stats.ByStatus["playing"] != 1 {
		t.Errorf("Unexpected status counts %v", stats.ByStatus)
	}
}

func TestManager_ConcurrentAccess(t *testing.T) {
	m := NewManager()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			host := fmt.Sprintf("host-%d", i)
			guest := fmt.Sprintf("guest-%d", i)
			r, err := m.Create(host)
			if err != nil {
				t.Errorf("Create failed: %v", err)
				return
			}
			m.Join(guest, r.ID)
			m.RoomOf(guest)
			if i%2 == 0 {
				m.HandleDisconnect(guest)
			} else {
				m.HandleDisconnect(host)
			}
		}(i)
	}
	wg.Wait()

	checkInvariants(t, m)
	if got := len(m.List()); got != 25 {
		t.Errorf("Expected 25 rooms left, got %d", got)
	}
}

func TestStatus_Text(t *testing.T) {
	for _, s := range []Status{Waiting, Playing, Finished} {
		text, _ := s.MarshalText()
		var parsed Status
		if err := parsed.UnmarshalText(text); err != nil {
			t.Fatalf("UnmarshalText(%s) failed: %v", text, err)
		}
		if parsed != s {
			t.Errorf("Round trip %s -> %s", s, parsed)
		}
	}

	var s Status
	if err := s.UnmarshalText([]byte("paused")); err == nil {
		t.Error("Expected error for unknown status")
	}
}
