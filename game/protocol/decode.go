package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Control classifies frames that are handled before event dispatch
type Control int

const (
	ControlNone Control = iota
	ControlPing
	ControlClose
)

func (c Control) String() string {
	switch c {
	case ControlPing:
		return "ping"
	case ControlClose:
		return "close"
	default:
		return "none"
	}
}

// Message is one decoded inbound frame. Exactly one of Control and Event is
// meaningful: Event is nil whenever Control is not ControlNone.
type Message struct {
	Control Control
	Event   Event
	// Legacy reports that Event came from the tolerant fallback scan
	Legacy bool
}

// DecodeError is returned for frames that match no known shape
type DecodeError struct {
	Frame  string
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode %q: %s: %v", e.Frame, e.Reason, e.Err)
	}
	return fmt.Sprintf("decode %q: %s", e.Frame, e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Err }

const maxFrameEcho = 128

// DecoderOption configures a Decoder
type DecoderOption func(*Decoder)

// WithLegacy toggles the tolerant fallback and the substring heartbeat and
// close detection older clients rely on.
func WithLegacy(enabled bool) DecoderOption {
	return func(d *Decoder) {
		d.legacy = enabled
	}
}

// Decoder turns raw frames into Messages. It is stateless after construction
// and safe for concurrent use.
type Decoder struct {
	legacy bool
}

// NewDecoder returns a decoder with legacy decoding enabled
func NewDecoder(opts ...DecoderOption) *Decoder {
	d := &Decoder{legacy: true}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Legacy reports whether the tolerant fallback is enabled
func (d *Decoder) Legacy() bool { return d.legacy }

// Decode classifies a frame as a control frame or a typed event.
// Frames matching nothing return a *DecodeError.
func (d *Decoder) Decode(data []byte) (Message, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Message{}, newDecodeError(data, "empty frame", nil)
	}

	if c := controlOf(trimmed); c != ControlNone {
		return Message{Control: c}, nil
	}
	if d.legacy {
		// Checked in this order so a frame mentioning both is a heartbeat.
		if bytes.Contains(trimmed, []byte("ping")) {
			return Message{Control: ControlPing}, nil
		}
		if bytes.Contains(trimmed, []byte("close")) {
			return Message{Control: ControlClose}, nil
		}
	}

	ev, strictErr := decodeStrict(trimmed)
	if strictErr == nil {
		return Message{Event: ev}, nil
	}

	if d.legacy {
		if ev, ok := decodeLegacy(trimmed); ok {
			return Message{Event: ev, Legacy: true}, nil
		}
	}

	return Message{}, newDecodeError(data, "unrecognized frame", strictErr)
}

func newDecodeError(data []byte, reason string, err error) *DecodeError {
	frame := string(data)
	if len(frame) > maxFrameEcho {
		frame = frame[:maxFrameEcho] + "..."
	}
	return &DecodeError{Frame: frame, Reason: reason, Err: err}
}

type typeHeader struct {
	Type string `json:"type"`
}

func controlOf(data []byte) Control {
	var h typeHeader
	if err := json.Unmarshal(data, &h); err != nil {
		return ControlNone
	}
	switch strings.ToLower(h.Type) {
	case "ping":
		return ControlPing
	case "close":
		return ControlClose
	default:
		return ControlNone
	}
}

type variant struct {
	required []string
	decode   func(json.RawMessage) (Event, error)
}

func strictVariant[T Event](required ...string) variant {
	return variant{
		required: required,
		decode: func(raw json.RawMessage) (Event, error) {
			var ev T
			dec := json.NewDecoder(bytes.NewReader(raw))
			dec.DisallowUnknownFields()
			if err := dec.Decode(&ev); err != nil {
				return nil, err
			}
			return ev, nil
		},
	}
}

var variants = map[Kind]variant{
	KindCreateRoom:         strictVariant[CreateRoom]("player_id"),
	KindJoinRoom:           strictVariant[JoinRoom]("player_id", "room_id"),
	KindPlaceStone:         strictVariant[PlaceStone]("player_id", "row", "col"),
	KindGameUpdate:         strictVariant[GameUpdate]("board", "current_player"),
	KindGameOver:           strictVariant[GameOver]("is_draw"),
	KindRestartGame:        strictVariant[RestartGame]("player_id"),
	KindUndoRequest:        strictVariant[UndoRequest]("player_id"),
	KindUndoResponse:       strictVariant[UndoResponse]("player_id", "accepted"),
	KindPlayerDisconnected: strictVariant[PlayerDisconnected]("player_id"),
	KindError:              strictVariant[Error]("message"),
}

var (
	errNotTagged    = errors.New("expected an object with exactly one variant key")
	errUnknownKind  = errors.New("unknown variant")
	errMissingField = errors.New("missing field")
	errNegative     = errors.New("row and col must be non-negative")
)

func decodeStrict(data []byte) (Event, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, err
	}
	if len(envelope) != 1 {
		return nil, errNotTagged
	}

	var (
		key string
		raw json.RawMessage
	)
	for k, v := range envelope {
		key, raw = k, v
	}

	v, ok := variants[Kind(key)]
	if !ok {
		return nil, fmt.Errorf("%w %q", errUnknownKind, key)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	var missing []string
	for _, f := range v.required {
		if _, ok := fields[f]; !ok {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("%s: %w %s", key, errMissingField, strings.Join(missing, ", "))
	}

	ev, err := v.decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	if p, ok := ev.(PlaceStone); ok && (p.Row < 0 || p.Col < 0) {
		return nil, fmt.Errorf("%s: %w", key, errNegative)
	}
	return ev, nil
}

type legacyRoom struct {
	RoomID *string `json:"room_id"`
}

type legacyMove struct {
	Row *uint32 `json:"row"`
	Col *uint32 `json:"col"`
}

// decodeLegacy probes the object for the shapes older clients send. The first
// variant key present decides; a malformed payload under it is not retried as
// another variant.
func decodeLegacy(data []byte) (Event, bool) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, false
	}

	if _, ok := obj[string(KindCreateRoom)]; ok {
		return CreateRoom{}, true
	}
	if raw, ok := obj[string(KindJoinRoom)]; ok {
		var p legacyRoom
		if json.Unmarshal(raw, &p) != nil || p.RoomID == nil {
			return nil, false
		}
		return JoinRoom{RoomID: *p.RoomID}, true
	}
	if raw, ok := obj[string(KindPlaceStone)]; ok {
		var p legacyMove
		if json.Unmarshal(raw, &p) != nil || p.Row == nil || p.Col == nil {
			return nil, false
		}
		return PlaceStone{Row: int(*p.Row), Col: int(*p.Col)}, true
	}

	var h typeHeader
	if raw, ok := obj["type"]; ok && json.Unmarshal(raw, &h.Type) == nil && h.Type == string(KindCreateRoom) {
		return CreateRoom{}, true
	}
	return nil, false
}
