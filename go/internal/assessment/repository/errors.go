package repository

import "errors"

// ErrNotFound is returned when a session, drive or progress row does not exist.
var ErrNotFound = errors.New("not found")
