package domain

import "errors"

var (
	ErrNotFound         = errors.New("resource not found")
	ErrInvalidState     = errors.New("invalid job state for this operation")
	ErrSourceMissing    = errors.New("source file not found")
	ErrProbeFailed      = errors.New("probe failed")
	ErrEncodeFailed     = errors.New("encode failed")
	ErrTranscodePending = errors.New("transcode pending")
	ErrWrongKind        = errors.New("wrong media kind for this route")
)
