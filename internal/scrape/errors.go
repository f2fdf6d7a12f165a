package scrape

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
)

// FetchKind categorizes fetch failures so the selector can decide whether
// escalating to a heavier strategy is worthwhile.
type FetchKind string

const (
	FetchKindNetwork  FetchKind = "network"
	FetchKindTimeout  FetchKind = "timeout"
	FetchKindTooLarge FetchKind = "too_large"
	FetchKindBlocked  FetchKind = "blocked"
)

// FetchError is a structured extraction failure.
type FetchError struct {
	Kind  FetchKind
	URL   string
	Cause error
}

func (e *FetchError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("fetch %s: %s (%v)", e.URL, e.Kind, e.Cause)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Kind)
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}

func newFetchError(kind FetchKind, url string, cause error) *FetchError {
	return &FetchError{Kind: kind, URL: url, Cause: cause}
}

// classifyFetchError wraps err as a FetchError, inspecting it for timeout
// signals. Context deadline expiry and net timeouts map to the timeout
// kind; everything else is a network failure.
func classifyFetchError(url string, err error) *FetchError {
	if fe := (*FetchError)(nil); errors.As(err, &fe) {
		return fe
	}
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, os.ErrDeadlineExceeded):
		return newFetchError(FetchKindTimeout, url, err)
	case errors.As(err, &netErr) && netErr.Timeout():
		return newFetchError(FetchKindTimeout, url, err)
	default:
		return newFetchError(FetchKindNetwork, url, err)
	}
}
