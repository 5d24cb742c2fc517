// Package api provides the HTTP REST API for the gomoku relay.
//
// The relay itself only speaks WebSocket. The REST API exposes read-only
// views of the room manager and stateless rule evaluation, and hosts the
// WebSocket upgrade and MCP endpoints on the same router.
//
// Endpoints:
//
// Health:
//   - GET /health - Liveness, version, uptime and open connections
//
// Rooms:
//   - GET /api/rooms - List rooms, optional ?status=waiting|playing|finished
//   - GET /api/rooms/{id} - Get a single room
//   - GET /api/stats - Room counts by status and connected players
//
// Rules:
//   - POST /api/rules/win - Does the stone at (row, col) complete five in a row
//   - POST /api/rules/draw - Is the board full
//
// Boards are sent as rows of text, '.' for empty, 'B' and 'W' for stones:
//
//	{
//	  "board": ["BBBBB", ".....", "....."],
//	  "row": 0,
//	  "col": 2,
//	  "stone": "Black"
//	}
//
// Transport:
//   - GET /ws - WebSocket upgrade for players
//   - POST /mcp - MCP JSON-RPC, when enabled
//
// Error Handling:
//
// Errors are returned as JSON with an appropriate HTTP status code:
//
//	{
//	  "error": "error message"
//	}
package api
