// Package messaging publishes room lifecycle events over NATS.
//
// Every transition the relay makes to a room is published as JSON on
// <prefix>.room.<kind>, where kind is one of created, joined, finished,
// restarted, vacated or closed. Other services can follow the rooms of a
// relay by subscribing to <prefix>.room.> without touching its sockets.
//
// Bus runs an embedded NATS server by default. WithURL points it at an
// existing deployment instead.
package messaging
