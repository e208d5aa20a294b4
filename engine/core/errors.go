package core

import (
	"errors"
)

var (
	// ErrWrongThread is returned when a hardware-touching operation runs
	// anywhere but on the device thread.
	ErrWrongThread = errors.New("operation must run on the device thread")
)
