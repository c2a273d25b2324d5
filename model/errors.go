package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies what went wrong while ingesting a candidate or a source
type ErrorKind string

const (
	// FetchFailure: network error, timeout or non-success status. Skip the item.
	FetchFailure ErrorKind = "fetch_failure"
	// ExtractionMiss: a required field (usually the subject code) is absent. Discard silently.
	ExtractionMiss ErrorKind = "extraction_miss"
	// ValidationFailure: downloaded bytes are not a PDF. Discard, never persist.
	ValidationFailure ErrorKind = "validation_failure"
	// StoreFailure: upload or insert failed. Discard, log, continue.
	StoreFailure ErrorKind = "store_failure"
	// ConfigurationGap: nothing to do (e.g. no sources). Warn and exit cleanly.
	ConfigurationGap ErrorKind = "configuration_gap"
)

// IngestError carries an ErrorKind alongside the failing operation and URL
type IngestError struct {
	Kind ErrorKind
	Op   string
	URL  string
	Err  error
}

// NewIngestError wraps err with a kind
func NewIngestError(kind ErrorKind, op, url string, err error) *IngestError {
	return &IngestError{Kind: kind, Op: op, URL: url, Err: err}
}

func (e *IngestError) Error() string {
	msg := e.Op
	if e.URL != "" {
		msg = fmt.Sprintf("%s %s", msg, e.URL)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *IngestError) Unwrap() error {
	return e.Err
}

// Is matches another IngestError by kind, so errors.Is(err, &IngestError{Kind: FetchFailure}) works
func (e *IngestError) Is(target error) bool {
	t, ok := target.(*IngestError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.URL == "" && t.Err == nil
}

// KindOf returns the kind of the first IngestError in err's chain, or "" if there is none
func KindOf(err error) ErrorKind {
	var ie *IngestError
	if errors.As(err, &ie) {
		return ie.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
