package domain

import (
	"errors"
	"fmt"
)

// Reason is the machine readable code attached to a rejected upload.
type Reason string

const (
	ReasonTooSmall        Reason = "TOO_SMALL"
	ReasonTooLarge        Reason = "TOO_LARGE"
	ReasonUnsupportedType Reason = "UNSUPPORTED_TYPE"
	ReasonCorruptContent  Reason = "CORRUPT_CONTENT"
	ReasonMalformed       Reason = "MALFORMED_REQUEST"
	ReasonIOFailure       Reason = "IO_FAILURE"
)

// ClientCorrectable reports whether the client can fix the request and retry.
func (r Reason) ClientCorrectable() bool {
	return r != ReasonIOFailure
}

// RejectionError is a typed pipeline failure.
type RejectionError struct {
	Reason Reason
	Err    error
}

func (e *RejectionError) Error() string {
	if e.Err == nil {
		return "upload rejected: " + string(e.Reason)
	}
	return fmt.Sprintf("upload rejected: %s: %v", e.Reason, e.Err)
}

func (e *RejectionError) Unwrap() error {
	return e.Err
}

// Is matches any RejectionError carrying the same reason, so callers can
// compare against the sentinels below with errors.Is.
func (e *RejectionError) Is(target error) bool {
	t, ok := target.(*RejectionError)
	if !ok {
		return false
	}
	return t.Reason == e.Reason
}

var (
	ErrTooSmall        = &RejectionError{Reason: ReasonTooSmall}
	ErrTooLarge        = &RejectionError{Reason: ReasonTooLarge}
	ErrUnsupportedType = &RejectionError{Reason: ReasonUnsupportedType}
	ErrCorruptContent  = &RejectionError{Reason: ReasonCorruptContent}
	ErrMalformed       = &RejectionError{Reason: ReasonMalformed}
	ErrIOFailure       = &RejectionError{Reason: ReasonIOFailure}
)

// Reject wraps err with a rejection reason.
func Reject(reason Reason, err error) error {
	return &RejectionError{Reason: reason, Err: err}
}

// ReasonOf extracts the rejection reason from err. Errors that are not
// rejections are treated as I/O failures.
func ReasonOf(err error) Reason {
	var rej *RejectionError
	if errors.As(err, &rej) {
		return rej.Reason
	}
	return ReasonIOFailure
}

// Outcome is the result of running the validation pipeline over one request.
// File is only ever set on an accepted outcome.
type Outcome struct {
	File *StoredFile
	Err  error
}

// Accepted reports whether every stage passed.
func (o Outcome) Accepted() bool {
	return o.Err == nil
}

// Reason returns the rejection reason, or "" for an accepted outcome.
func (o Outcome) Reason() Reason {
	if o.Err == nil {
		return ""
	}
	return ReasonOf(o.Err)
}
