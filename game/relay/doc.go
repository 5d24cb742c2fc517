// Package relay routes decoded client frames between the two occupants of a
// room.
//
// Router sits between the transport and the room state. For every inbound
// frame it:
//   - answers heartbeats with a pong addressed only to the sender
//   - reports close requests to the caller as ErrCloseRequested
//   - applies CreateRoom and JoinRoom to the room manager and tells the
//     occupants about the outcome
//   - relays moves to both occupants and the other gameplay events
//     (GameUpdate, GameOver, RestartGame, UndoRequest, UndoResponse) to the
//     opponent only
//
// Router never performs network I/O itself. Messages are handed to Peers,
// which only enqueues them, so a slow socket cannot stall routing.
//
// Identity:
//
// The player a frame is attributed to is always the connection's own id.
// player_id fields inside frames are ignored on input and rewritten to the
// sender when an event is relayed.
//
// Departures:
//
// The transport calls Leave once a connection has ended. Leave updates the
// room manager and broadcasts PlayerDisconnected to every remaining peer.
package relay
