package service

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned for unknown incidents and orders
	ErrNotFound = errors.New("not found")
	// ErrInvalidMode is returned for an unknown kill switch mode
	ErrInvalidMode = errors.New("invalid kill switch mode")
	// ErrInvalidPolicy wraps escalation policy validation failures
	ErrInvalidPolicy = errors.New("invalid escalation policy")
	// ErrInvalidSchedule wraps on-call schedule validation failures
	ErrInvalidSchedule = errors.New("invalid on-call schedule")
	// ErrInvalidNote is returned for an empty timeline note
	ErrInvalidNote = errors.New("note text is required")
	// ErrInvalidDomain is returned for an unknown learning domain
	ErrInvalidDomain = errors.New("unknown learning domain")
)

// RateLimitedError reports a rejected write and when to retry
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}
