// Package errors provides structured error types for the rcache client.
// It defines error categories (Permanent, Temporary, NotFound, InvalidInput,
// Configuration, Connection, Disposed) and the FailureKind used by the retry
// dispatcher to decide whether a failed cache call is retried.
//
// Example usage:
//
//	if connString == "" {
//	    return errors.NewConfiguration("connection_string", "must not be blank")
//	}
//
//	if err := client.Ping(ctx).Err(); err != nil {
//	    return errors.NewConnection("failed to connect to Redis", err)
//	}
package errors

import (
	"errors"
	"fmt"
)

// ErrDisposed is returned when a connection handle is used after it was
// replaced and closed by a reconnect.
var ErrDisposed = errors.New("connection handle disposed")

// PermanentError represents an error that won't succeed even if retried.
// Examples: serialization failures, wrong value types stored under a key.
type PermanentError struct {
	msg   string
	cause error
}

// NewPermanent creates a new permanent error with the given message and optional cause.
func NewPermanent(msg string, cause error) error {
	return &PermanentError{msg: msg, cause: cause}
}

func (e *PermanentError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.cause)
	}
	return e.msg
}

func (e *PermanentError) Unwrap() error {
	return e.cause
}

// TemporaryError represents an error that might succeed if retried later by the caller.
// Unlike ConnectionError it does not make the dispatcher retry on its own.
type TemporaryError struct {
	msg   string
	cause error
}

// NewTemporary creates a new temporary error with the given message and optional cause.
func NewTemporary(msg string, cause error) error {
	return &TemporaryError{msg: msg, cause: cause}
}

func (e *TemporaryError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.cause)
	}
	return e.msg
}

func (e *TemporaryError) Unwrap() error {
	return e.cause
}

// NotFoundError represents a cache miss.
type NotFoundError struct {
	resource string
	id       string
	cause    error
}

// NewNotFound creates a new not found error for the given resource and ID.
func NewNotFound(resource, id string) error {
	return &NotFoundError{resource: resource, id: id}
}

// NewNotFoundWithCause creates a new not found error with an underlying cause.
func NewNotFoundWithCause(resource, id string, cause error) error {
	return &NotFoundError{resource: resource, id: id, cause: cause}
}

func (e *NotFoundError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s not found: %s (%v)", e.resource, e.id, e.cause)
	}
	return fmt.Sprintf("%s not found: %s", e.resource, e.id)
}

func (e *NotFoundError) Unwrap() error {
	return e.cause
}

// Resource returns the type of resource that wasn't found.
func (e *NotFoundError) Resource() string {
	return e.resource
}

// ID returns the identifier of the resource that wasn't found.
func (e *NotFoundError) ID() string {
	return e.id
}

// InvalidInputError represents an error due to invalid caller input.
// Examples: empty keys, negative TTLs.
type InvalidInputError struct {
	field string
	msg   string
	cause error
}

// NewInvalidInput creates a new invalid input error for the given field and message.
func NewInvalidInput(field, msg string) error {
	return &InvalidInputError{field: field, msg: msg}
}

// NewInvalidInputWithCause creates a new invalid input error with an underlying cause.
func NewInvalidInputWithCause(field, msg string, cause error) error {
	return &InvalidInputError{field: field, msg: msg, cause: cause}
}

func (e *InvalidInputError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("invalid input for %s: %s (%v)", e.field, e.msg, e.cause)
	}
	return fmt.Sprintf("invalid input for %s: %s", e.field, e.msg)
}

func (e *InvalidInputError) Unwrap() error {
	return e.cause
}

// Field returns the field name that had invalid input.
func (e *InvalidInputError) Field() string {
	return e.field
}

// Message returns the validation error message.
func (e *InvalidInputError) Message() string {
	return e.msg
}

// ConfigurationError represents missing or invalid client configuration,
// such as a blank connection string. It is never retried.
type ConfigurationError struct {
	setting string
	msg     string
}

// NewConfiguration creates a new configuration error for the given setting.
func NewConfiguration(setting, msg string) error {
	return &ConfigurationError{setting: setting, msg: msg}
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error for %s: %s", e.setting, e.msg)
}

// Setting returns the name of the offending setting.
func (e *ConfigurationError) Setting() string {
	return e.setting
}

// ConnectionError represents a connection-level failure talking to the cache
// server. The dispatcher retries it and asks the connection manager to
// consider reconnecting.
type ConnectionError struct {
	msg   string
	cause error
}

// NewConnection creates a new connection error with the given message and optional cause.
func NewConnection(msg string, cause error) error {
	return &ConnectionError{msg: msg, cause: cause}
}

func (e *ConnectionError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.cause)
	}
	return e.msg
}

func (e *ConnectionError) Unwrap() error {
	return e.cause
}

// DisposedError reports that a handle was closed by a concurrent reconnect
// while a call was in flight. It matches ErrDisposed with errors.Is.
type DisposedError struct {
	cause error
}

// NewDisposed creates a new disposed error wrapping the driver error, if any.
func NewDisposed(cause error) error {
	return &DisposedError{cause: cause}
}

func (e *DisposedError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%v: %v", ErrDisposed, e.cause)
	}
	return ErrDisposed.Error()
}

func (e *DisposedError) Unwrap() error {
	return e.cause
}

// Is reports whether target is ErrDisposed.
func (e *DisposedError) Is(target error) bool {
	return target == ErrDisposed
}
