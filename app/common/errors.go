package common

import (
	"errors"
	"fmt"
)

// NotFoundError is returned when a requested entity (word, verse, surah,
// meta record) does not exist. Mapped to HTTP 404 by the server.
type NotFoundError struct {
	Kind string
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Key)
}

func NewNotFoundError(kind, key string) *NotFoundError {
	return &NotFoundError{Kind: kind, Key: key}
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// ParseError is returned for malformed range or language specs.
// Mapped to HTTP 400 by the server.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot parse %q: %s", e.Input, e.Reason)
}

func NewParseError(input, reason string) *ParseError {
	return &ParseError{Input: input, Reason: reason}
}

func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

type UserVisibleError struct {
	HttpCode int
	Message  string
}

func (e *UserVisibleError) Error() string {
	return fmt.Sprintf("Error %d: %s", e.HttpCode, e.Message)
}

func NewUserVisibleError(httpCode int, message string) *UserVisibleError {
	return &UserVisibleError{
		HttpCode: httpCode,
		Message:  message,
	}
}
