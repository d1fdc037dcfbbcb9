package errors

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindConfig    Kind = "config"
	KindIntake    Kind = "intake"
	KindScan      Kind = "scan"
	KindDetection Kind = "detection"
	KindRender    Kind = "render"
	KindTransport Kind = "transport"
	KindPlatform  Kind = "platform"
	KindBootstrap Kind = "bootstrap"
	KindStorage   Kind = "storage"
	KindUnknown   Kind = "unknown"
)

// Error is the typed error carried across package boundaries.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Kind, e.Op, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Kind, e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Wrap attaches kind and operation to err. A nil err stays nil and an
// already typed error is returned unchanged so the innermost kind wins.
func Wrap(kind Kind, op, message string, err error) error {
	if err == nil {
		return nil
	}

	var typed *Error
	if errors.As(err, &typed) {
		return err
	}

	return &Error{
		Kind:    kind,
		Op:      op,
		Message: message,
		Cause:   err,
	}
}

func New(kind Kind, op, message string) *Error {
	return &Error{
		Kind:    kind,
		Op:      op,
		Message: message,
	}
}

// IsKind checks whether the first typed error in the chain matches kind.
func IsKind(err error, kind Kind) bool {
	var target *Error
	if errors.As(err, &target) {
		return target.Kind == kind
	}
	return false
}

// KindOf returns the kind of the first typed error in the chain, or KindUnknown.
func KindOf(err error) Kind {
	var target *Error
	if errors.As(err, &target) {
		return target.Kind
	}
	return KindUnknown
}

// MessageOf returns the human readable message of the first typed error in
// the chain, falling back to err.Error().
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var target *Error
	if errors.As(err, &target) && target.Message != "" {
		return target.Message
	}
	return err.Error()
}
