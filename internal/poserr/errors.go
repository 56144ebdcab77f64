// Package poserr defines the error kinds surfaced to POS clients. Every kind is
// recoverable: handlers translate them into a response and the request ends.
package poserr

import (
	"fmt"

	"github.com/go-faster/errors"
)

// ValidationError reports rejected user input. State is left unchanged.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func Invalid(field string, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// FetchError wraps a failed read from the backing store.
type FetchError struct {
	Resource string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to load %s: %v", e.Resource, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// WriteError wraps a failed write. Callers keep whatever in-memory state
// depended on the write so the operation can be retried.
type WriteError struct {
	Op  string
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// ExportError wraps a document rendering failure.
type ExportError struct {
	Format string
	Err    error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("failed to render %s export: %v", e.Format, e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsFetch(err error) bool {
	var target *FetchError
	return errors.As(err, &target)
}

func IsWrite(err error) bool {
	var target *WriteError
	return errors.As(err, &target)
}

func IsExport(err error) bool {
	var target *ExportError
	return errors.As(err, &target)
}

// UserMessage returns the text safe to show to the caller. Store failures
// only name the resource or operation, never the driver message.
func UserMessage(err error) string {
	var (
		validation *ValidationError
		fetch      *FetchError
		write      *WriteError
		export     *ExportError
	)
	switch {
	case errors.As(err, &validation):
		return validation.Error()
	case errors.As(err, &fetch):
		return "failed to load " + fetch.Resource
	case errors.As(err, &write):
		return "failed to " + write.Op
	case errors.As(err, &export):
		return "failed to render " + export.Format + " export"
	}
	return err.Error()
}
