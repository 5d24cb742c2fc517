package protocol

import "time"

// Outbound message types use the flat {"type": …} form clients switch on.
const (
	TypeInit        = "init"
	TypePong        = "pong"
	TypeRoomCreated = "roomCreated"
	TypeGameStart   = "gameStart"
	TypeError       = "error"
	TypePlaceStone  = "placeStone"
)

// Error codes sent with TypeError
const (
	CodeRoomFull      = "RoomFull"
	CodeRoomNotFound  = "RoomNotFound"
	CodeAlreadyInRoom = "AlreadyInRoom"
)

// Init is the first frame on every connection
type Init struct {
	Type     string `json:"type"`
	PlayerID string `json:"playerId"`
}

// Pong answers a heartbeat with the server time in unix seconds
type Pong struct {
	Type string `json:"type"`
	Time int64  `json:"time"`
}

// RoomCreated confirms CreateRoom to its sender
type RoomCreated struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
}

// GameStart is sent to both occupants once the guest seat is taken
type GameStart struct {
	Type    string `json:"type"`
	RoomID  string `json:"roomId"`
	HostID  string `json:"hostId"`
	GuestID string `json:"guestId"`
}

// ErrorMessage reports a failed request to its sender only
type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// StonePlaced relays a move to both occupants
type StonePlaced struct {
	Type     string `json:"type"`
	PlayerID string `json:"playerId"`
	Row      int    `json:"row"`
	Col      int    `json:"col"`
}

// NewInit builds the init frame for playerID
func NewInit(playerID string) Init {
	return Init{Type: TypeInit, PlayerID: playerID}
}

// NewPong answers a ping at now
func NewPong(now time.Time) Pong {
	return Pong{Type: TypePong, Time: now.Unix()}
}

// NewRoomCreated confirms a new room to its host
func NewRoomCreated(roomID string) RoomCreated {
	return RoomCreated{Type: TypeRoomCreated, RoomID: roomID}
}

// NewGameStart announces a full room to both occupants
func NewGameStart(roomID, hostID, guestID string) GameStart {
	return GameStart{Type: TypeGameStart, RoomID: roomID, HostID: hostID, GuestID: guestID}
}

// NewErrorMessage reports a failed request with an optional code
func NewErrorMessage(message, code string) ErrorMessage {
	return ErrorMessage{Type: TypeError, Message: message, Code: code}
}

// NewStonePlaced relays a move made by playerID
func NewStonePlaced(playerID string, row, col int) StonePlaced {
	return StonePlaced{Type: TypePlaceStone, PlayerID: playerID, Row: row, Col: col}
}
