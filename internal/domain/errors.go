package domain

import "errors"

var (
	// ErrNotFound indicates the requested key or record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNotResolvable indicates a market slug could not be mapped to a
	// well-formed condition id. Distinct from transport errors.
	ErrNotResolvable = errors.New("market not resolvable")
	// ErrWSDisconnect indicates the live feed websocket dropped.
	ErrWSDisconnect = errors.New("websocket disconnected")
)
