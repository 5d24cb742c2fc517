package rules

// directions are the four axes checked for a run: horizontal, vertical and both diagonals
var directions = [4][2]int{
	{0, 1},
	{1, 0},
	{1, 1},
	{1, -1},
}

// CheckWin reports whether placing stone at (row, col) completes a run of at
// least WinLength along any axis. The cell itself is assumed to hold stone.
func CheckWin(board Board, row, col int, stone Stone) bool {
	_, ok := WinLine(board, row, col, stone)
	return ok
}

// WinLine returns the first winning run through (row, col), if any
func WinLine(board Board, row, col int, stone Stone) (Line, bool) {
	if stone == Empty || !board.InBounds(row, col) {
		return Line{}, false
	}

	for _, d := range directions {
		dr, dc := d[0], d[1]
		count := 1
		start := Position{Row: row, Col: col}
		end := start

		// forward
		r, c := row+dr, col+dc
		for board.InBounds(r, c) && board[r][c] == stone {
			count++
			end = Position{Row: r, Col: c}
			r += dr
			c += dc
		}

		// backward
		r, c = row-dr, col-dc
		for board.InBounds(r, c) && board[r][c] == stone {
			count++
			start = Position{Row: r, Col: c}
			r -= dr
			c -= dc
		}

		if count >= WinLength {
			return Line{Start: start, End: end, Count: count}, true
		}
	}

	return Line{}, false
}

// CheckDraw reports whether every cell is occupied. Callers check for a win
// first; a full board with a winning move is a win, not a draw.
func CheckDraw(board Board) bool {
	// a board with no cells is not a finished game
	if board.Rows() == 0 {
		return false
	}
	for _, row := range board {
		for _, cell := range row {
			if cell == Empty {
				return false
			}
		}
	}
	return true
}

// CountStones counts the cells holding stone
func CountStones(board Board, stone Stone) int {
	count := 0
	for _, row := range board {
		for _, cell := range row {
			if cell == stone {
				count++
			}
		}
	}
	return count
}
