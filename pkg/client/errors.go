package client

import (
	"errors"
	"fmt"
)

// Common errors returned by the client.
var (
	// ErrBackendCoolingDown is returned when the cooldown gate is closed.
	ErrBackendCoolingDown = errors.New("backend cooling down")

	// ErrMalformedResponse is returned when a 2xx payload cannot be decoded.
	ErrMalformedResponse = errors.New("malformed backend response")
)

// BackendError represents a failed catalog backend call with its classification.
type BackendError struct {
	Endpoint   string
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *BackendError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("backend %s error on %s (status %d): %s: %v",
			e.ErrorClass, e.Endpoint, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("backend %s error on %s (status %d): %s",
		e.ErrorClass, e.Endpoint, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *BackendError) Unwrap() error {
	return e.Err
}

// ClassOf returns the error class carried by err, or "" if err is not a
// backend failure.
func ClassOf(err error) ErrorClass {
	var be *BackendError
	if errors.As(err, &be) {
		return be.ErrorClass
	}
	return ""
}
