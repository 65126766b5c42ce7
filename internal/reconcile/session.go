package reconcile

import (
	"github.com/DoyleJ11/tictactoe-client/internal/game"
	"github.com/DoyleJ11/tictactoe-client/internal/protocol"
)

type ViewMode string

const (
	ViewLobby       ViewMode = "lobby"
	ViewGame        ViewMode = "game"
	ViewLeaderboard ViewMode = "leaderboard"
)

type ConnectionStatus string

const (
	Connected    ConnectionStatus = "connected"
	Disconnected ConnectionStatus = "disconnected"
)

// Phase tracks matchmaking progress independently of what is on screen.
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseQueued   Phase = "queued"
	PhaseInGame   Phase = "in_game"
	PhaseFinished Phase = "finished"
)

type PendingMove struct {
	Position int         `json:"position"`
	Symbol   game.Symbol `json:"symbol"`
}

// Session is the client's whole view of the world. It is treated as a value:
// transitions build a new Session and never write through the old pointers.
type Session struct {
	View       ViewMode         `json:"viewMode"`
	Connection ConnectionStatus `json:"connectionStatus"`
	Identity   string           `json:"localIdentity"`
	Phase      Phase            `json:"phase"`
	Player     *game.PlayerRef  `json:"player"`
	Game       *game.Snapshot   `json:"game"`
	Pending    *PendingMove     `json:"pendingMove,omitempty"`

	// confirmed is the last server-sent snapshot; Game may differ from it by
	// one optimistic cell while Pending is set.
	confirmed *game.Snapshot
}

func NewSession() Session {
	return Session{
		View:       ViewLobby,
		Connection: Disconnected,
		Phase:      PhaseIdle,
	}
}

// InGame reports whether both halves of an active game are present.
func (s Session) InGame() bool {
	return s.Player != nil && s.Game != nil
}

// Confirmed returns the last authoritative snapshot, if any.
func (s Session) Confirmed() (game.Snapshot, bool) {
	if s.confirmed == nil {
		return game.Snapshot{}, false
	}
	return s.confirmed.Clone(), true
}

// Clone returns a deep copy that shares nothing with s.
func (s Session) Clone() Session {
	if s.Player != nil {
		p := *s.Player
		s.Player = &p
	}
	if s.Game != nil {
		g := s.Game.Clone()
		s.Game = &g
	}
	if s.confirmed != nil {
		c := s.confirmed.Clone()
		s.confirmed = &c
	}
	if s.Pending != nil {
		m := *s.Pending
		s.Pending = &m
	}
	return s
}

type NoticeKind string

const (
	NoticeInfo             NoticeKind = "info"
	NoticeLocalValidation  NoticeKind = "local_validation"
	NoticeIdentityMismatch NoticeKind = "identity_mismatch"
	NoticeMoveRejected     NoticeKind = "move_rejected"
	NoticeOpponentLost     NoticeKind = "opponent_lost"
	NoticeTransport        NoticeKind = "transport"
	NoticeCollaborator     NoticeKind = "collaborator"
	NoticeWarning          NoticeKind = "warning"
	NoticeCelebration      NoticeKind = "celebration"
)

// Notice is a human-readable message for whoever renders the session.
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Message string     `json:"message"`
	Fatal   bool       `json:"fatal,omitempty"`
}

// Result is the outcome of one transition.
type Result struct {
	Session  Session
	Notices  []Notice
	Outbound []protocol.Outbound
	// Dropped explains why an inbound event was ignored. Empty when applied.
	Dropped string
	// PendingOutcome is "committed", "superseded" or "discarded" when the
	// transition resolved a PendingMove.
	PendingOutcome string
}

func (r *Result) notify(kind NoticeKind, msg string) {
	r.Notices = append(r.Notices, Notice{Kind: kind, Message: msg})
}

func (r *Result) send(msg protocol.Outbound) {
	r.Outbound = append(r.Outbound, msg)
}

// settle enforces the view invariant: game view requires player and game.
func settle(s Session) Session {
	if s.View == ViewGame && !s.InGame() {
		s.View = ViewLobby
	}
	return s
}

func resetToLobby(s Session) Session {
	s.Player = nil
	s.Game = nil
	s.confirmed = nil
	s.Pending = nil
	s.Phase = PhaseIdle
	s.View = ViewLobby
	return s
}

func phaseFor(status game.Status) Phase {
	if status == game.StatusFinished {
		return PhaseFinished
	}
	return PhaseInGame
}
