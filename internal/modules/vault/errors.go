package vault

import "errors"

var (
	ErrNotFound          = errors.New("vault item not found")
	ErrInvalidFileToken  = errors.New("invalid download token")
	ErrFileTokenConsumed = errors.New("download token already used")
)
