package entity

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyInput is returned when an upload has a header but no data rows.
	ErrEmptyInput = errors.New("dataset has no data rows")

	// ErrTxConflict marks a transient storage conflict; the unit of work can be retried.
	ErrTxConflict = errors.New("storage transaction conflict")
)

// FormatError reports an upload that cannot be read as delimited text.
type FormatError struct {
	Err error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("unreadable upload: %v", e.Err)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// SchemaError reports required columns missing from the header.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return "missing required columns: " + strings.Join(e.Missing, ", ")
}

// ValueError reports a cell that is not a finite number.
type ValueError struct {
	Line   int
	Column string
	Value  string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("line %d: column %q: %q is not a finite number", e.Line, e.Column, e.Value)
}
