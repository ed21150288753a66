package importer

import (
	"encoding/json"
	"fmt"
)

// Move mirrors the move encoding of the board frontend: square indexes
// 0..63 (a1=0, h8=63) and -1 for "no promotion".
type Move struct {
	From      int `json:"from"`
	To        int `json:"to"`
	Promotion int `json:"promotion"`
}

// MoveNode is one node of a puzzle's move tree. Continuation holds the
// replies considered after this move.
type MoveNode struct {
	Move         Move       `json:"move"`
	Continuation []MoveNode `json:"continuation,omitempty"`
}

// ParseMove parses coordinate notation ("e2e4") into a Move.
func ParseMove(s string) (Move, error) {
	if len(s) != 4 {
		return Move{}, fmt.Errorf("invalid move %q: want coordinate notation like e2e4", s)
	}
	from, err := parseSquare(s[:2])
	if err != nil {
		return Move{}, fmt.Errorf("invalid move %q: %w", s, err)
	}
	to, err := parseSquare(s[2:])
	if err != nil {
		return Move{}, fmt.Errorf("invalid move %q: %w", s, err)
	}
	return Move{From: from, To: to, Promotion: -1}, nil
}

func parseSquare(s string) (int, error) {
	file := int(s[0] - 'a')
	rank := int(s[1] - '1')
	if file < 0 || file > 7 || rank < 0 || rank > 7 {
		return 0, fmt.Errorf("square %q out of range", s)
	}
	return file + rank*8, nil
}

// LinearMoveTree chains a forced move sequence into a tree with a single
// branch, the shape puzzle authors use for one-line tactics.
func LinearMoveTree(moves []Move) []MoveNode {
	if len(moves) == 0 {
		return []MoveNode{}
	}
	node := MoveNode{Move: moves[len(moves)-1]}
	for i := len(moves) - 2; i >= 0; i-- {
		node = MoveNode{Move: moves[i], Continuation: []MoveNode{node}}
	}
	return []MoveNode{node}
}

// MoveTreeJSON parses a sequence of coordinate moves and returns the
// serialized linear move tree the puzzle table stores.
func MoveTreeJSON(moves []string) (string, error) {
	parsed := make([]Move, 0, len(moves))
	for _, s := range moves {
		move, err := ParseMove(s)
		if err != nil {
			return "", err
		}
		parsed = append(parsed, move)
	}
	tree, err := json.Marshal(LinearMoveTree(parsed))
	if err != nil {
		return "", fmt.Errorf("marshal move tree: %w", err)
	}
	return string(tree), nil
}
