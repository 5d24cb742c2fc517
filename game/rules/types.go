package rules

import (
	"encoding/json"
	"fmt"
	"strings"
)

// WinLength is the number of contiguous stones needed to win.
const WinLength = 5

// Stone is the content of a single board cell
type Stone int

const (
	Empty Stone = iota
	Black
	White
)

// String returns the stone name
func (s Stone) String() string {
	switch s {
	case Black:
		return "Black"
	case White:
		return "White"
	default:
		return "Empty"
	}
}

// Opponent returns the other color. Empty has no opponent.
func (s Stone) Opponent() Stone {
	switch s {
	case Black:
		return White
	case White:
		return Black
	default:
		return Empty
	}
}

// MarshalJSON encodes Empty as null and colors by name
func (s Stone) MarshalJSON() ([]byte, error) {
	if s == Empty {
		return []byte("null"), nil
	}
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts null, "Black" and "White"
func (s *Stone) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = Empty
		return nil
	}

	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return fmt.Errorf("stone must be a string or null: %w", err)
	}

	switch name {
	case "Black":
		*s = Black
	case "White":
		*s = White
	default:
		return fmt.Errorf("unknown stone %q", name)
	}
	return nil
}

// Board is a rectangular grid of stones indexed [row][col]
type Board [][]Stone

// NewBoard creates an empty size x size board
func NewBoard(size int) Board {
	b := make(Board, size)
	for i := range b {
		b[i] = make([]Stone, size)
	}
	return b
}

// Rows returns the number of rows
func (b Board) Rows() int {
	return len(b)
}

// Cols returns the number of columns (0 for an empty board)
func (b Board) Cols() int {
	if len(b) == 0 {
		return 0
	}
	return len(b[0])
}

// InBounds reports whether (row, col) is a valid cell
func (b Board) InBounds(row, col int) bool {
	return row >= 0 && row < b.Rows() && col >= 0 && col < len(b[row])
}

// At returns the stone at (row, col), or Empty when out of bounds
func (b Board) At(row, col int) Stone {
	if !b.InBounds(row, col) {
		return Empty
	}
	return b[row][col]
}

// String renders the board in the ParseBoard text form
func (b Board) String() string {
	var sb strings.Builder
	for i, row := range b {
		if i > 0 {
			sb.WriteByte('\n')
		}
		for _, cell := range row {
			sb.WriteByte(stoneChar(cell))
		}
	}
	return sb.String()
}

// ParseBoard builds a board from rows of '.', 'B' and 'W'.
// All rows must have the same width.
func ParseBoard(rows []string) (Board, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("board has no rows")
	}

	width := len(rows[0])
	b := make(Board, len(rows))
	for r, line := range rows {
		if len(line) != width {
			return nil, fmt.Errorf("row %d has width %d, expected %d", r, len(line), width)
		}
		b[r] = make([]Stone, width)
		for c := 0; c < width; c++ {
			s, err := charStone(line[c])
			if err != nil {
				return nil, fmt.Errorf("row %d col %d: %w", r, c, err)
			}
			b[r][c] = s
		}
	}
	return b, nil
}

func stoneChar(s Stone) byte {
	switch s {
	case Black:
		return 'B'
	case White:
		return 'W'
	default:
		return '.'
	}
}

func charStone(c byte) (Stone, error) {
	switch c {
	case '.', '_', '0':
		return Empty, nil
	case 'B', 'b', 'X', 'x', '1':
		return Black, nil
	case 'W', 'w', 'O', 'o', '2':
		return White, nil
	default:
		return Empty, fmt.Errorf("invalid cell %q", c)
	}
}

// Position is a board coordinate
type Position struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Line is the span of a winning run, inclusive at both ends
type Line struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
	Count int      `json:"count"`
}
