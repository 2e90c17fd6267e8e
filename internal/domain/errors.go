package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInvalidInput        = errors.New("invalid input")
	ErrUnknownPreset       = errors.New("unknown preset")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrDuplicateExternalID = errors.New("duplicate external id")
	ErrProviderRejected    = errors.New("provider rejected request")
	ErrProviderUnreachable = errors.New("provider unreachable")
)
