package event

import (
	"errors"
	"fmt"
)

// Decode failure kinds
var (
	ErrUnexpectedField      = errors.New("unexpected field")
	ErrTypeMismatch         = errors.New("type mismatch")
	ErrMissingRequiredField = errors.New("missing required field")
	ErrUnknownEvent         = errors.New("unknown event")
	ErrMalformedObject      = errors.New("malformed object")
)

// DecodeError describes why a single object could not be decoded.
// errors.Is matches both the failure kind and the underlying cause.
type DecodeError struct {
	Event string
	Field string
	Kind  error
	Cause error
}

func (e *DecodeError) Error() string {
	msg := e.Kind.Error()
	if e.Event != "" {
		msg = fmt.Sprintf("%s: %s", e.Event, msg)
	}
	if e.Field != "" {
		msg = fmt.Sprintf("%s %q", msg, e.Field)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *DecodeError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

// Reason returns a short label for the failure kind, suitable for metrics
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrUnexpectedField):
		return "unexpected_field"
	case errors.Is(err, ErrTypeMismatch):
		return "type_mismatch"
	case errors.Is(err, ErrMissingRequiredField):
		return "missing_field"
	case errors.Is(err, ErrUnknownEvent):
		return "unknown_event"
	case errors.Is(err, ErrMalformedObject):
		return "malformed_object"
	default:
		return "other"
	}
}

func unexpected(ev string, key []byte) error {
	return &DecodeError{Event: ev, Field: string(key), Kind: ErrUnexpectedField}
}

func mismatch(ev, field string, cause error) error {
	return &DecodeError{Event: ev, Field: field, Kind: ErrTypeMismatch, Cause: cause}
}

func missing(ev, field string) error {
	return &DecodeError{Event: ev, Field: field, Kind: ErrMissingRequiredField}
}

// malformed wraps a tokenizer error unless the callback already produced a DecodeError
func malformed(ev string, err error) error {
	var de *DecodeError
	if errors.As(err, &de) {
		return err
	}
	return &DecodeError{Event: ev, Kind: ErrMalformedObject, Cause: err}
}
