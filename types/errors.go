package types

import "errors"

var (
	ErrUnavailable      = errors.New("price source unavailable")
	ErrNotFound         = errors.New("no price interval found")
	ErrInsufficientData = errors.New("insufficient price data")
	ErrBadRequest       = errors.New("bad request")
)
