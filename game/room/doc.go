// Package room provides the two-player room state machine of the relay server.
//
// The room package implements:
//   - Room creation with server-generated UUID identifiers
//   - Guest seating with RoomFull / RoomNotFound outcomes
//   - Disconnect handling for hosts and guests
//   - Finished/Playing transitions reported by the clients
//
// State Machine:
//
//	Waiting --Join--> Playing --Finish--> Finished
//	   ^                 |  ^                |
//	   +--guest leaves---+  +----Restart-----+
//
// A host leaving removes the room in any state; the former guest is left
// without a room and is told about it by the router, not by this package.
//
// Index:
//
// Manager keeps a player to room index next to the room table. Every host and
// guest has exactly one index entry pointing at its room, and a player that
// already has an entry can neither create nor join another room.
//
// Concurrency:
//
// A single RWMutex guards both maps. Every method is a short critical section
// and returns a copy of the room, so callers never share mutable state.
package room
