package engine

import "errors"

var (
	// ErrNotRunning is returned when an operation needs the simulation clock
	// to be running.
	ErrNotRunning = errors.New("simulation is not running")

	// ErrUnknownZone is returned when a zone id is not in the venue registry.
	ErrUnknownZone = errors.New("unknown zone")

	// ErrUnknownKind is returned for a stampede condition of unknown type.
	ErrUnknownKind = errors.New("unknown stampede type")
)
