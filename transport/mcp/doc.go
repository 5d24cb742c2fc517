// Package mcp provides a Model Context Protocol interface to the gomoku relay.
//
// The Client is a thin proxy: every tool calls the relay's REST API over HTTP
// and formats the response as text for an AI agent. It holds no state of
// its own, so one Client works against a local or remote relay.
//
// MCP Tools:
//   - list_rooms: List rooms, optionally filtered by status
//   - get_room: Get a single room
//   - server_stats: Room counts and connected players
//   - check_win: Evaluate five in a row on a supplied board
//   - check_draw: Evaluate a full board
//   - protocol_guide: Describe the WebSocket wire format
//
// Transport Modes:
//   - Stdio: server.ServeStdio(client.GetMCPServer())
//   - HTTP: mount the Client itself, it answers POST requests carrying one
//     JSON-RPC message
//
// Usage:
//
//	client := mcp.NewClient("http://127.0.0.1:12345")
//	router.Handle("/mcp", client)
package mcp
