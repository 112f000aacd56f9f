package domain

import "errors"

var (
	// ErrUsernameTaken is returned when a join reuses a connected player's name.
	ErrUsernameTaken = errors.New("Username already taken.")
	// ErrPlayerKicked is returned when a kicked username tries to rejoin.
	ErrPlayerKicked = errors.New("You have been kicked from the server and cannot reconnect.")
	// ErrGameStarted is returned for joins after the lobby has closed.
	ErrGameStarted = errors.New("Game already started.")
	// ErrUnknownPlayer is returned when an event names a username that never joined.
	ErrUnknownPlayer = errors.New("player not found in session")
	// ErrQuestionsNotFound indicates the question set could not be loaded.
	ErrQuestionsNotFound = errors.New("question set not found")
	// ErrConnectionLost is surfaced by the client when the stream ends early.
	ErrConnectionLost = errors.New("connection to server lost")
	// ErrKicked is surfaced by the client after a forced disconnect.
	ErrKicked = errors.New("kicked from server")
)
