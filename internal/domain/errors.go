package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidState        = errors.New("invalid state")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrDeadlineExceeded    = errors.New("deadline exceeded")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrUnsignedReport      = errors.New("report is not signed")
	ErrInvalidSpec         = errors.New("invalid task spec")
)
