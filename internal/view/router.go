// Package view decides which collaborator is on screen for a session.
package view

import (
	"github.com/DoyleJ11/tictactoe-client/internal/game"
	"github.com/DoyleJ11/tictactoe-client/internal/reconcile"
)

type Active string

const (
	ActiveLobby       Active = "lobby"
	ActiveBoard       Active = "board"
	ActiveLeaderboard Active = "leaderboard"
)

// Route is a pure function of its inputs. The lobby form is never returned
// while a game is active.
func Route(mode reconcile.ViewMode, g *game.Snapshot, p *game.PlayerRef) Active {
	if mode == reconcile.ViewLeaderboard {
		return ActiveLeaderboard
	}
	if g != nil && p != nil {
		return ActiveBoard
	}
	return ActiveLobby
}

func ForSession(s reconcile.Session) Active {
	return Route(s.View, s.Game, s.Player)
}
