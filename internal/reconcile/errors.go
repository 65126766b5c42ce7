package reconcile

import "errors"

// Local validation failures. None of these ever reach the transport.
var (
	ErrEmptyUsername   = errors.New("username is required")
	ErrGameActive      = errors.New("a game is already in progress")
	ErrNotInGame       = errors.New("no active game")
	ErrInvalidPosition = errors.New("position must be between 0 and 8")
	ErrGameNotPlaying  = errors.New("game is not in progress")
	ErrNoSymbol        = errors.New("no symbol assigned to player; please rejoin")
	ErrNotYourTurn     = errors.New("not your turn")
	ErrMovePending     = errors.New("previous move is still awaiting the server")
	ErrCellOccupied    = errors.New("this position is already taken")
)

var ErrIdentityMismatch = errors.New("local player not found in game")

// IsLocalValidation reports whether err is one of the synchronous rejections.
func IsLocalValidation(err error) bool {
	for _, target := range []error{
		ErrEmptyUsername, ErrGameActive, ErrNotInGame, ErrInvalidPosition,
		ErrGameNotPlaying, ErrNoSymbol, ErrNotYourTurn, ErrMovePending, ErrCellOccupied,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
