package core

import "errors"

var (
	ErrNotConnected     = errors.New("not connected")
	ErrEmptyBody        = errors.New("empty message body")
	ErrIncompleteParams = errors.New("username and channel are required")
	ErrManagerStopped   = errors.New("connection manager stopped")
)
