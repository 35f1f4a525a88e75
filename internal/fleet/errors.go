package fleet

import "errors"

var (
	// ErrNotFound is returned when a drone id is not part of the fleet.
	ErrNotFound = errors.New("drone not found")
	// ErrInvalidAction is returned for command actions other than pause/return.
	ErrInvalidAction = errors.New("invalid action")
)
