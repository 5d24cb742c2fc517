// Package rules provides the stateless gomoku rule checks used by clients and
// the inspection tools of the relay server.
//
// The rules package implements:
//   - Win detection through the most recently placed stone
//   - Draw detection over a full board
//   - A compact text form for boards ('.', 'B', 'W')
//
// Core Types:
//
// Board is a rectangular grid of Stone values. Stone is Empty, Black or White
// and encodes to JSON as null, "Black" or "White" so it can travel inside
// GameUpdate and GameOver events unchanged.
//
// Usage:
//
//	board, err := rules.ParseBoard([]string{
//		".....",
//		"BBBBB",
//		".....",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	if rules.CheckWin(board, 1, 2, rules.Black) {
//		fmt.Println("black wins")
//	}
//
// Determinism:
//
// Every function is pure. Identical board and position input always yields
// the same result, and no function reads outside the board bounds.
package rules
