package game

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrBadBoard = errors.New("malformed board")
var ErrBadPosition = errors.New("position out of range")

type Symbol string

const (
	SymbolNone Symbol = ""
	SymbolX    Symbol = "X"
	SymbolO    Symbol = "O"
)

func (s Symbol) Valid() bool {
	return s == SymbolNone || s == SymbolX || s == SymbolO
}

type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

func (s Status) Valid() bool {
	return s == StatusWaiting || s == StatusPlaying || s == StatusFinished
}

// Outcome is the winner field: a symbol, a draw, or nothing yet.
type Outcome string

const (
	OutcomeNone Outcome = ""
	OutcomeX    Outcome = "X"
	OutcomeO    Outcome = "O"
	OutcomeDraw Outcome = "draw"
)

func (o Outcome) Valid() bool {
	switch o {
	case OutcomeNone, OutcomeX, OutcomeO, OutcomeDraw:
		return true
	}
	return false
}

const BoardSize = 9

// Board is a 3x3 grid, row-major. "" marks an empty cell.
type Board [BoardSize]Symbol

func (b *Board) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var cells []Symbol
	if err := json.Unmarshal(data, &cells); err != nil {
		return fmt.Errorf("%w: %v", ErrBadBoard, err)
	}
	if len(cells) != BoardSize {
		return fmt.Errorf("%w: want %d cells, got %d", ErrBadBoard, BoardSize, len(cells))
	}
	for i, c := range cells {
		if !c.Valid() {
			return fmt.Errorf("%w: cell %d has value %q", ErrBadBoard, i, c)
		}
		b[i] = c
	}
	return nil
}

func ValidPosition(pos int) bool {
	return pos >= 0 && pos < BoardSize
}

func (b Board) IsEmpty(pos int) bool {
	return ValidPosition(pos) && b[pos] == SymbolNone
}

// With returns a copy of b with a single cell overwritten.
func (b Board) With(pos int, s Symbol) (Board, error) {
	if !ValidPosition(pos) {
		return b, ErrBadPosition
	}
	b[pos] = s
	return b, nil
}

// Ply counts occupied cells.
func (b Board) Ply() int {
	n := 0
	for _, c := range b {
		if c != SymbolNone {
			n++
		}
	}
	return n
}
