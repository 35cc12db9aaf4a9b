package errors

import "errors"

var (
	ErrInvalidWallet  = errors.New("wallet address is invalid")
	ErrInvalidPoints  = errors.New("points must be a positive integer")
	ErrSessionUnknown = errors.New("session id matches neither current nor previous session")
	ErrNoSession      = errors.New("no session exists")
)
