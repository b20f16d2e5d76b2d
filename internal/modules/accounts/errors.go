package accounts

import "errors"

var (
	ErrRegistrationClosed = errors.New("registration is closed")
	ErrInvalidPassword    = errors.New("invalid master password hash")
	ErrInvalidKey         = errors.New("invalid encrypted key payload")
)
