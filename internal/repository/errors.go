package repository

import (
	"errors"
	"fmt"
)

var (
	ErrMissingField      = errors.New("missing required metric field")
	ErrInvalidScoreField = errors.New("invalid score field name")
)

// StoreError is a non-success response from the remote store. It keeps
// the status code and body so callers can tell store rejections apart
// from validation and transport failures.
type StoreError struct {
	StatusCode int
	Body       string
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store returned status %d: %s", e.StatusCode, e.Body)
}

// IsValidationError reports whether err was raised locally before any
// request was issued.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrMissingField) || errors.Is(err, ErrInvalidScoreField)
}

// IsStoreError reports whether err is a non-2xx answer from the store.
func IsStoreError(err error) bool {
	var storeErr *StoreError
	return errors.As(err, &storeErr)
}
