// Package websocket provides the WebSocket transport of the gomoku relay.
//
// The websocket package implements:
//   - Connection supervision with server-assigned player ids
//   - A peer registry of bounded outbound queues
//   - Keepalive pings, read deadlines and read limits
//   - Per-connection inbound rate limiting
//   - Origin checking and graceful shutdown
//
// Architecture:
//
// Server upgrades each request, registers a Peer in the Registry and then
// supervises two duties for it in an errgroup:
//
//	readPump:  socket -> Handler.HandleMessage
//	writePump: Peer.Outbound() -> socket, plus pings every PingPeriod
//
// Whichever duty ends first cancels the other. The socket is closed to
// unblock the reader, the peer is unregistered and Handler.Leave runs, in
// that order.
//
// Registry:
//
// Registry is the only way to reach a connection. Send and BroadcastExcept
// encode the message once, outside the lock, and only enqueue it. A full
// queue triggers the OverflowPolicy: OverflowDisconnect evicts the peer,
// OverflowDrop discards the frame. Frames for a peer are written in the order
// they were queued, one WebSocket message each.
//
// Usage:
//
//	registry := websocket.NewRegistry(websocket.OverflowDisconnect, logger)
//	router := relay.NewRouter(rooms, registry)
//	server := websocket.NewServer(registry, router)
//	http.HandleFunc("/ws", server.ServeWS)
//
// The handler's Greeting frame is queued before the peer is registered, so
// it is always the first frame a client reads.
//
// Concurrency:
//
// ServeWS blocks for the lifetime of its connection. Shutdown refuses new
// connections, cancels all running ones and waits for them to finish.
package websocket
