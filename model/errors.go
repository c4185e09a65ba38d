package model

import (
	"errors"
	"fmt"
)

// Code is a dotted error-kind string as enumerated by the hub's error model.
// It is stable across releases and safe to match on in RPC/gossip callers.
type Code string

const (
	CodeValidationFailure Code = "bad_request.validation_failure"
	CodeConflict          Code = "bad_request.conflict"
	CodeParseFailure      Code = "bad_request.parse_failure"
	CodeInvalidParam      Code = "bad_request.invalid_param"
	CodeNotFound          Code = "not_found"
	CodeUnavailable       Code = "unavailable"
	CodeUnknown           Code = "unknown"
)

// HubError is the sum-type result every fallible core operation returns
// instead of a bare error: Ok(T) is just a normal return value, Err is a
// *HubError carrying one of the dotted Code kinds from §7 of the spec.
type HubError struct {
	Code    Code
	Message string
	cause   error
}

func (e *HubError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *HubError) Unwrap() error { return e.cause }

// Is lets errors.Is(err, &HubError{Code: CodeNotFound}) match on Code alone.
func (e *HubError) Is(target error) bool {
	other, ok := target.(*HubError)
	if !ok {
		return false
	}
	return other.Code == e.Code
}

func newErr(code Code, format string, args ...interface{}) *HubError {
	return &HubError{Code: code, Message: fmt.Sprintf(format, args...)}
}

func ErrValidationFailure(format string, args ...interface{}) *HubError {
	return newErr(CodeValidationFailure, format, args...)
}

func ErrConflict(format string, args ...interface{}) *HubError {
	return newErr(CodeConflict, format, args...)
}

func ErrParseFailure(format string, args ...interface{}) *HubError {
	return newErr(CodeParseFailure, format, args...)
}

func ErrInvalidParam(format string, args ...interface{}) *HubError {
	return newErr(CodeInvalidParam, format, args...)
}

func ErrNotFound(format string, args ...interface{}) *HubError {
	return newErr(CodeNotFound, format, args...)
}

func ErrUnavailable(format string, args ...interface{}) *HubError {
	return newErr(CodeUnavailable, format, args...)
}

// ErrUnknown wraps an internal, invariant-violating error. It is fatal to
// the current operation and must be logged by the caller, never propagated
// to a peer verbatim.
func ErrUnknown(cause error) *HubError {
	return &HubError{Code: CodeUnknown, Message: "internal invariant violated", cause: cause}
}

// WrapUnknown wraps cause into ErrUnknown unless it is already a *HubError.
func WrapUnknown(cause error) *HubError {
	var he *HubError
	if errors.As(cause, &he) {
		return he
	}
	return ErrUnknown(cause)
}
