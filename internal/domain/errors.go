package domain

import (
	"errors"
	"fmt"
)

var (
	ErrTransport          = errors.New("transport error")
	ErrRetryLimitExceeded = errors.New("redirect retry limit exceeded")
	ErrMalformedPage      = errors.New("empty page while more items expected")
	ErrNoViewableContent  = errors.New("no viewable posts found")
	ErrProfileNotFound    = errors.New("profile not found")
	ErrNoCategories       = errors.New("no category selected for download")
	ErrRunNotFound        = errors.New("run not found")
)

// TransportError is a network or HTTP failure of a single request.
type TransportError struct {
	Op         string
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: status %d", e.Op, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is makes every TransportError match ErrTransport.
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}
