package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/wricardo/gomoku-relay/game/rules"
)

// Kind names an event variant. It is the single key of the tagged wire form,
// e.g. {"PlaceStone":{"player_id":"…","row":7,"col":7}}.
type Kind string

const (
	KindCreateRoom         Kind = "CreateRoom"
	KindJoinRoom           Kind = "JoinRoom"
	KindPlaceStone         Kind = "PlaceStone"
	KindGameUpdate         Kind = "GameUpdate"
	KindGameOver           Kind = "GameOver"
	KindRestartGame        Kind = "RestartGame"
	KindUndoRequest        Kind = "UndoRequest"
	KindUndoResponse       Kind = "UndoResponse"
	KindPlayerDisconnected Kind = "PlayerDisconnected"
	KindError              Kind = "Error"
)

// Event is one variant of the tagged gameplay schema
type Event interface {
	Kind() Kind
}

// CreateRoom asks the server to open a room hosted by the sender
type CreateRoom struct {
	PlayerID string `json:"player_id"`
}

// JoinRoom asks to take the guest seat of RoomID
type JoinRoom struct {
	PlayerID string `json:"player_id"`
	RoomID   string `json:"room_id"`
}

// PlaceStone is a move at (Row, Col)
type PlaceStone struct {
	PlayerID string `json:"player_id"`
	Row      int    `json:"row"`
	Col      int    `json:"col"`
}

// GameUpdate carries a full board snapshot
type GameUpdate struct {
	Board         rules.Board `json:"board"`
	CurrentPlayer rules.Stone `json:"current_player"`
}

// GameOver reports the outcome decided by the clients
type GameOver struct {
	Winner rules.Stone `json:"winner"`
	IsDraw bool        `json:"is_draw"`
}

// RestartGame asks to start a new game in the same room
type RestartGame struct {
	PlayerID string `json:"player_id"`
}

// UndoRequest asks the opponent to take back the last move
type UndoRequest struct {
	PlayerID string `json:"player_id"`
}

// UndoResponse answers an UndoRequest
type UndoResponse struct {
	PlayerID string `json:"player_id"`
	Accepted bool   `json:"accepted"`
}

// PlayerDisconnected tells the remaining peers that a connection ended
type PlayerDisconnected struct {
	PlayerID string `json:"player_id"`
}

// Error is a free-form error in the tagged schema
type Error struct {
	Message string `json:"message"`
}

func (CreateRoom) Kind() Kind         { return KindCreateRoom }
func (JoinRoom) Kind() Kind           { return KindJoinRoom }
func (PlaceStone) Kind() Kind         { return KindPlaceStone }
func (GameUpdate) Kind() Kind         { return KindGameUpdate }
func (GameOver) Kind() Kind           { return KindGameOver }
func (RestartGame) Kind() Kind        { return KindRestartGame }
func (UndoRequest) Kind() Kind        { return KindUndoRequest }
func (UndoResponse) Kind() Kind       { return KindUndoResponse }
func (PlayerDisconnected) Kind() Kind { return KindPlayerDisconnected }
func (Error) Kind() Kind              { return KindError }

// Tagged wraps an event so it marshals in the tagged wire form
type Tagged struct {
	Event Event
}

// MarshalJSON implements json.Marshaler
func (t Tagged) MarshalJSON() ([]byte, error) {
	if t.Event == nil {
		return nil, fmt.Errorf("tagged event is nil")
	}
	return json.Marshal(map[Kind]Event{t.Event.Kind(): t.Event})
}

// WithSender returns a copy of ev attributed to player. Events that carry no
// player field are returned unchanged.
func WithSender(ev Event, player string) Event {
	switch e := ev.(type) {
	case CreateRoom:
		e.PlayerID = player
		return e
	case JoinRoom:
		e.PlayerID = player
		return e
	case PlaceStone:
		e.PlayerID = player
		return e
	case RestartGame:
		e.PlayerID = player
		return e
	case UndoRequest:
		e.PlayerID = player
		return e
	case UndoResponse:
		e.PlayerID = player
		return e
	case PlayerDisconnected:
		e.PlayerID = player
		return e
	default:
		return ev
	}
}
