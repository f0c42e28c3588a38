// Package apperror defines the error kinds produced by the detection pipeline
// and the gateway. Callers branch on Kind instead of matching messages.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure.
type Kind int

const (
	// KindInternal is any failure that does not carry a more specific kind.
	KindInternal Kind = iota
	KindInvalidImage
	KindInvalidRequest
	KindInferenceFailure
	KindUnknownClassID
	KindStorageWrite
	KindNotFound
	KindUpstreamUnavailable
)

var kindNames = map[Kind]string{
	KindInternal:            "internal_error",
	KindInvalidImage:        "invalid_image",
	KindInvalidRequest:      "invalid_request",
	KindInferenceFailure:    "inference_failure",
	KindUnknownClassID:      "unknown_class_id",
	KindStorageWrite:        "storage_write_error",
	KindNotFound:            "not_found",
	KindUpstreamUnavailable: "upstream_unavailable",
}

// Code returns the wire code of the kind.
func (k Kind) Code() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return kindNames[KindInternal]
}

func (k Kind) String() string { return k.Code() }

// Status maps the kind to an HTTP status code.
func (k Kind) Status() int {
	switch k {
	case KindInvalidImage, KindInvalidRequest:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUpstreamUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified failure. Op names the step that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind.Code(), e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind.Code(), e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind.Code())
	default:
		return e.Kind.Code()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports a match against another *Error by kind, so sentinel values such
// as ErrNotFound work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Err == nil
}

// Sentinels for errors.Is comparisons.
var (
	ErrInvalidImage        = &Error{Kind: KindInvalidImage}
	ErrInvalidRequest      = &Error{Kind: KindInvalidRequest}
	ErrInferenceFailure    = &Error{Kind: KindInferenceFailure}
	ErrUnknownClassID      = &Error{Kind: KindUnknownClassID}
	ErrStorageWrite        = &Error{Kind: KindStorageWrite}
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrUpstreamUnavailable = &Error{Kind: KindUpstreamUnavailable}
)

// New wraps err with kind and op.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf builds a classified error from a format string.
func Newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
