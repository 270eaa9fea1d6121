package pool

import "errors"

var (
	ErrNotConnected     = errors.New("pool: not connected")
	ErrAlreadyConnected = errors.New("pool: already connected")
	ErrConnectionFailed = errors.New("pool: failed to connect")
	ErrConnectionClosed = errors.New("pool: connection pool is closed")
	ErrInvalidConfig    = errors.New("pool: invalid configuration")
)
