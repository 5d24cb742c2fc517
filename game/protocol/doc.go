// Package protocol defines the wire format spoken between gomoku clients and
// the relay server.
//
// Two families of messages share the socket:
//
// Tagged events (client to server, and relayed between occupants):
//
//	{"CreateRoom":{"player_id":"..."}}
//	{"JoinRoom":{"player_id":"...","room_id":"..."}}
//	{"PlaceStone":{"player_id":"...","row":7,"col":7}}
//	{"GameUpdate":{"board":[[null,"Black",...],...],"current_player":"White"}}
//	{"GameOver":{"winner":"Black","is_draw":false}}
//	{"RestartGame":{"player_id":"..."}}
//	{"UndoRequest":{"player_id":"..."}}
//	{"UndoResponse":{"player_id":"...","accepted":true}}
//	{"PlayerDisconnected":{"player_id":"..."}}
//	{"Error":{"message":"..."}}
//
// Flat messages (server to client):
//
//	{"type":"init","playerId":"..."}
//	{"type":"pong","time":1700000000}
//	{"type":"roomCreated","roomId":"..."}
//	{"type":"gameStart","roomId":"...","hostId":"...","guestId":"..."}
//	{"type":"error","message":"...","code":"RoomFull"}
//	{"type":"placeStone","playerId":"...","row":7,"col":7}
//
// Decoding:
//
// Decoder recognizes {"type":"ping"} and {"type":"close"} control frames,
// then decodes the tagged schema strictly: exactly one variant key, every
// field present (GameOver may omit winner), no unknown fields. With legacy decoding enabled (the
// default) it also treats any frame containing "ping" or "close" as the
// matching control frame, and falls back to a tolerant scan for
// {"CreateRoom":{...}}, {"JoinRoom":{"room_id":...}},
// {"PlaceStone":{"row":...,"col":...}} and {"type":"CreateRoom"}.
// Frames matching nothing yield a *DecodeError.
package protocol
