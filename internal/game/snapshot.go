package game

import (
	"slices"
	"strings"

	"golang.org/x/text/cases"
)

type PlayerRef struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	SocketID string `json:"socketId,omitempty"`
	Symbol   Symbol `json:"symbol,omitempty"`
	Wins     int    `json:"wins"`
	Losses   int    `json:"losses"`
	Draws    int    `json:"draws"`
}

type Snapshot struct {
	GameID        string      `json:"gameId"`
	Players       []PlayerRef `json:"players"`
	Board         Board       `json:"board"`
	CurrentPlayer Symbol      `json:"currentPlayer"`
	Status        Status      `json:"status"`
	Winner        Outcome     `json:"winner"`
}

// Clone copies the snapshot so the result shares no backing arrays with s.
func (s Snapshot) Clone() Snapshot {
	s.Players = slices.Clone(s.Players)
	return s
}

// Fold normalizes a username for comparison: trimmed and case-folded.
func Fold(username string) string {
	return cases.Fold().String(strings.TrimSpace(username))
}

func SameUser(a, b string) bool {
	return Fold(a) == Fold(b)
}

// FindPlayer returns the player whose username matches identity after folding.
func (s Snapshot) FindPlayer(identity string) (PlayerRef, bool) {
	want := Fold(identity)
	if want == "" {
		return PlayerRef{}, false
	}
	for _, p := range s.Players {
		if Fold(p.Username) == want {
			return p, true
		}
	}
	return PlayerRef{}, false
}

// PositionalSymbol is the symbol a seat gets by convention: first X, second O.
func PositionalSymbol(seat int) Symbol {
	switch seat {
	case 0:
		return SymbolX
	case 1:
		return SymbolO
	default:
		return SymbolNone
	}
}

type SymbolConflict struct {
	Seat       int
	Username   string
	Declared   Symbol
	Positional Symbol
}

// SymbolConflicts lists seats whose declared symbol disagrees with the seat
// convention, including unassigned symbols and seats beyond the pair.
func (s Snapshot) SymbolConflicts() []SymbolConflict {
	var out []SymbolConflict
	for i, p := range s.Players {
		want := PositionalSymbol(i)
		if p.Symbol != want {
			out = append(out, SymbolConflict{Seat: i, Username: p.Username, Declared: p.Symbol, Positional: want})
		}
	}
	return out
}
