// Package protocol describes the named-event contract spoken with the game server.
//
// Every frame on the wire is one JSON envelope:
//
//	{"event": "<name>", "data": <payload>}
//
// Client -> Server
//
//	join_queue:     {username}
//	leave_queue:    {}
//	make_move:      {gameId, position}
//	get_game_state: {gameId}
//	reconnect:      {username, gameId?}
//
// Server -> Client
//
//	queue_joined:          {message}
//	queue_left:            {message}
//	queue_rejoined:        {message}
//	game_started:          GameSnapshot
//	game_state:            GameSnapshot
//	reconnected:           {gameId, game: GameSnapshot}
//	move_made:             {gameId, position?, board, currentPlayer, winner, status}
//	game_finished:         {gameId, winner, board}
//	opponent_disconnected: {gameId, message}
//	move_error:            {message}
//	error:                 {message}
//	showWinEffect:         {winner, winnerUsername}
//
// GameSnapshot is {gameId, players[2], board[9], currentPlayer, status, winner};
// null currentPlayer/winner decode to the empty value.
package protocol
