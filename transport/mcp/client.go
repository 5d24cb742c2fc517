package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wricardo/gomoku-relay/api"
	"github.com/wricardo/gomoku-relay/game/room"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Gomoku Relay",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(`Gomoku Relay - MCP Interface

This is a thin client that proxies all requests to the relay's REST API.
The relay pairs two players per room and forwards their moves over WebSocket;
it does not play or referee games itself.

AVAILABLE TOOLS:
- list_rooms: List rooms, optionally filtered by status
- get_room: Get a single room by id
- server_stats: Room counts and connected players
- check_win: Does a stone complete five in a row on a given board
- check_draw: Is a board completely filled
- protocol_guide: The WebSocket message formats clients use`),
	)

	c.registerTools()
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	// Room inspection
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_rooms",
		Description: "List relay rooms ordered by creation time",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"status": map[string]interface{}{
					"type":        "string",
					"description": "Only rooms in this state (optional)",
					"enum":        []string{"waiting", "playing", "finished"},
				},
			},
		},
	}, c.handleListRooms)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_room",
		Description: "Get the host, guest and status of a room",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"room_id": map[string]interface{}{
					"type":        "string",
					"description": "Room ID to retrieve",
				},
			},
			Required: []string{"room_id"},
		},
	}, c.handleGetRoom)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "server_stats",
		Description: "Room counts by status, seated players and open connections",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleServerStats)

	// Rule evaluation
	boardSchema := map[string]interface{}{
		"type":        "array",
		"items":       map[string]interface{}{"type": "string"},
		"description": "Board rows top to bottom, '.' empty, 'B' black, 'W' white",
	}

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "check_win",
		Description: "Check whether the stone at (row, col) completes five or more in a row",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"board": boardSchema,
				"row": map[string]interface{}{
					"type":        "integer",
					"description": "Zero-based row of the placed stone",
				},
				"col": map[string]interface{}{
					"type":        "integer",
					"description": "Zero-based column of the placed stone",
				},
				"stone": map[string]interface{}{
					"type":        "string",
					"description": "Stone to test; defaults to the stone on the board at (row, col)",
					"enum":        []string{"Black", "White"},
				},
			},
			Required: []string{"board", "row", "col"},
		},
	}, c.handleCheckWin)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "check_draw",
		Description: "Check whether every cell of a board is occupied",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"board": boardSchema,
			},
			Required: []string{"board"},
		},
	}, c.handleCheckDraw)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "protocol_guide",
		Description: "Describe the WebSocket protocol spoken by game clients",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleProtocolGuide)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// ServeHTTP answers a single JSON-RPC message posted to /mcp
func (c *Client) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	response := c.mcpServer.HandleMessage(r.Context(), body)
	if response == nil {
		// notifications have no reply
		w.WriteHeader(http.StatusAccepted)
		return
	}

	responseData, err := json.Marshal(response)
	if err != nil {
		http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(responseData)
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

// Tool handlers

func (c *Client) handleListRooms(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status := request.GetString("status", "")

	path := "/api/rooms"
	if status != "" {
		path += "?status=" + url.QueryEscape(status)
	}

	var response struct {
		Count int         `json:"count"`
		Rooms []room.Room `json:"rooms"`
	}
	if err := c.apiCall(ctx, "GET", path, nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var sb strings.Builder
	if status != "" {
		fmt.Fprintf(&sb, "Rooms (%s): %d\n\n", status, response.Count)
	} else {
		fmt.Fprintf(&sb, "Rooms: %d\n\n", response.Count)
	}
	for _, r := range response.Rooms {
		sb.WriteString("- ")
		sb.WriteString(formatRoomLine(r))
		sb.WriteString("\n")
	}

	return mcp.NewToolResultText(sb.String()), nil
}

func (c *Client) handleGetRoom(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	roomID, err := request.RequireString("room_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var r room.Room
	if err := c.apiCall(ctx, "GET", "/api/rooms/"+url.PathEscape(roomID), nil, &r); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatRoom(r)), nil
}

func (c *Client) handleServerStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var stats api.StatsResponse
	if err := c.apiCall(ctx, "GET", "/api/stats", nil, &stats); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatStats(stats)), nil
}

func (c *Client) handleCheckWin(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	board, err := request.RequireStringSlice("board")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	row, err := request.RequireInt("row")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	col, err := request.RequireInt("col")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	body := api.WinRequest{
		Board: board,
		Row:   row,
		Col:   col,
		Stone: request.GetString("stone", ""),
	}

	var result api.WinResponse
	if err := c.apiCall(ctx, "POST", "/api/rules/win", body, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatWin(row, col, result)), nil
}

func (c *Client) handleCheckDraw(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	board, err := request.RequireStringSlice("board")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var result api.DrawResponse
	if err := c.apiCall(ctx, "POST", "/api/rules/draw", api.DrawRequest{Board: board}, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	verdict := "Not a draw: empty cells remain"
	if result.Draw {
		verdict = "Draw: the board is full"
	}
	text := fmt.Sprintf("%s\nBlack: %d  White: %d  Empty: %d\n", verdict, result.Black, result.White, result.Empty)
	return mcp.NewToolResultText(text), nil
}

func (c *Client) handleProtocolGuide(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(protocolGuide), nil
}

const protocolGuide = `GOMOKU RELAY WEBSOCKET PROTOCOL

Connect to /ws. The server assigns your player id in the first frame:
  {"type":"init","playerId":"<uuid>"}

ROOMS
  Create:  {"CreateRoom":{"player_id":""}}
           -> {"type":"roomCreated","roomId":"<id>"}
  Join:    {"JoinRoom":{"player_id":"","room_id":"<id>"}}
           -> both players receive
              {"type":"gameStart","roomId":"<id>","hostId":"...","guestId":"..."}
  Errors:  {"type":"error","message":"...","code":"RoomFull|RoomNotFound|AlreadyInRoom"}

player_id may be left empty; the server always uses the id of the connection
that sent the frame. Clients agree between themselves who plays which color.

MOVES
  {"PlaceStone":{"player_id":"","row":7,"col":7}}
  -> both players receive {"type":"placeStone","playerId":"...","row":7,"col":7}
  The relay does not validate moves. Clients keep the board and apply the rules.

RELAYED TO YOUR OPPONENT UNCHANGED
  {"GameUpdate":{"board":[[null,"Black",...]],"current_player":"White"}}
  {"GameOver":{"winner":"Black","is_draw":false}}
  {"RestartGame":{"player_id":""}}
  {"UndoRequest":{"player_id":""}}
  {"UndoResponse":{"player_id":"","accepted":true}}

DISCONNECTS
  When a player leaves, remaining players receive
  {"PlayerDisconnected":{"player_id":"..."}}
  A host leaving closes the room. A guest leaving reopens it for a new guest.

HEARTBEAT
  {"type":"ping"}  -> {"type":"pong","time":<unix seconds>}
  {"type":"close"} -> the server closes the connection

RULES
  Five or more stones in a row (horizontal, vertical or diagonal) win.
  A full board with no winner is a draw. Use check_win and check_draw to
  evaluate positions.`

// Formatting helpers

func formatRoomLine(r room.Room) string {
	guest := "(open)"
	if r.HasGuest() {
		guest = r.Guest
	}
	return fmt.Sprintf("%s [%s] host=%s guest=%s created=%s",
		r.ID, r.Status, r.Host, guest, r.CreatedAt.Format("15:04:05"))
}

func formatRoom(r room.Room) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Room: %s\n", r.ID)
	fmt.Fprintf(&sb, "Status: %s\n", r.Status)
	fmt.Fprintf(&sb, "Host: %s\n", r.Host)
	if r.HasGuest() {
		fmt.Fprintf(&sb, "Guest: %s\n", r.Guest)
	} else {
		sb.WriteString("Guest: waiting for a player\n")
	}
	fmt.Fprintf(&sb, "Created: %s\n", r.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(&sb, "Updated: %s\n", r.UpdatedAt.Format(time.RFC3339))
	return sb.String()
}

func formatStats(s api.StatsResponse) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Rooms: %d\n", s.Total)
	for _, status := range []string{"waiting", "playing", "finished"} {
		fmt.Fprintf(&sb, "  %s: %d\n", status, s.ByStatus[status])
	}
	fmt.Fprintf(&sb, "Seated players: %d\n", s.Players)
	fmt.Fprintf(&sb, "Open connections: %d\n", s.Connections)
	if s.Uptime != "" {
		fmt.Fprintf(&sb, "Uptime: %s\n", s.Uptime)
	}
	return sb.String()
}

func formatWin(row, col int, r api.WinResponse) string {
	if !r.Win {
		return fmt.Sprintf("No win: %s at (%d, %d) does not complete five in a row\n", r.Stone, row, col)
	}
	return fmt.Sprintf("WIN: %s at (%d, %d) completes %d in a row from (%d, %d) to (%d, %d)\n",
		r.Stone, row, col, r.Line.Count,
		r.Line.Start.Row, r.Line.Start.Col, r.Line.End.Row, r.Line.End.Col)
}
