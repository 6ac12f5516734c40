package models

import (
	"errors"
	"fmt"
)

var (
	ErrProviderUnavailable = errors.New("price providers unavailable")
	ErrFeedUnreachable     = errors.New("feed unreachable")
	ErrAllModelsExhausted  = errors.New("all model candidates exhausted")
	ErrDeliveryFailed      = errors.New("delivery failed")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrMissingCredential   = errors.New("missing credential")
	ErrRunInProgress       = errors.New("a pipeline run is already in progress")
	ErrNoReport            = errors.New("no report has been produced yet")
)

// ExhaustedError carries the last candidate's failure. errors.Is matches ErrAllModelsExhausted.
type ExhaustedError struct {
	Attempts  int
	LastModel string
	LastErr   error
}

func (e *ExhaustedError) Error() string {
	switch {
	case e.LastErr == nil:
		return fmt.Sprintf("%s: no candidates", ErrAllModelsExhausted)
	case e.LastModel == "":
		return fmt.Sprintf("%s: %v", ErrAllModelsExhausted, e.LastErr)
	default:
		return fmt.Sprintf("%s after %d attempt(s): %s: %v", ErrAllModelsExhausted, e.Attempts, e.LastModel, e.LastErr)
	}
}

func (e *ExhaustedError) Is(target error) bool { return target == ErrAllModelsExhausted }

func (e *ExhaustedError) Unwrap() error { return e.LastErr }
