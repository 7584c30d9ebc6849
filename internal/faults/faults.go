// Package faults defines the error taxonomy surfaced by the engine. Remote
// failures are caught at the engine boundary, classified here, and handed to
// the caller as a single structured value; raw transport errors never cross
// into the reconciler.
package faults

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Kind classifies a failure for presentation purposes.
type Kind string

const (
	NetworkFailure      Kind = "network_failure"
	ValidationFailure   Kind = "validation_failure"
	ModerationRejection Kind = "moderation_rejection"
	RateLimited         Kind = "rate_limited"
	Unclassified        Kind = "unclassified"
)

// Fault is the structured failure value crossing the engine boundary.
type Fault struct {
	Kind    Kind
	Message string
	Err     error
}

func (f *Fault) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Message, f.Err)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

func (f *Fault) Unwrap() error { return f.Err }

// Retryable reports whether resubmitting the same request could succeed.
// Retry is always user-initiated; the engine never retries automatically.
func (f *Fault) Retryable() bool {
	switch f.Kind {
	case ModerationRejection, ValidationFailure:
		return false
	}
	return true
}

// New builds a Fault without an underlying error.
func New(kind Kind, message string) *Fault {
	return &Fault{Kind: kind, Message: message}
}

// Wrap builds a Fault around an underlying error.
func Wrap(kind Kind, message string, err error) *Fault {
	return &Fault{Kind: kind, Message: message, Err: err}
}

// keyword patterns checked most-specific first; the first match wins.
var patterns = []struct {
	kind     Kind
	keywords []string
}{
	{ModerationRejection, []string{"moderation", "content policy", "content_policy", "flagged as unsafe"}},
	{RateLimited, []string{"rate limit", "rate_limit", "too many requests", "quota exceeded", "429"}},
	{NetworkFailure, []string{"timeout", "timed out", "deadline exceeded", "connection refused", "connection reset", "no such host", "broken pipe", "network is unreachable", "tls handshake"}},
}

// Classify maps an arbitrary error to a Fault. Already-classified faults
// pass through unchanged.
func Classify(err error) *Fault {
	if err == nil {
		return nil
	}
	var f *Fault
	if errors.As(err, &f) {
		return f
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Wrap(NetworkFailure, "request timed out", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return Wrap(NetworkFailure, "network error", err)
	}
	msg := strings.ToLower(err.Error())
	for _, p := range patterns {
		for _, kw := range p.keywords {
			if strings.Contains(msg, kw) {
				return Wrap(p.kind, "remote call failed", err)
			}
		}
	}
	return Wrap(Unclassified, "remote call failed", err)
}
