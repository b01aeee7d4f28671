// Package apperror defines the classified errors shared by the service and
// handler layers.
//
// Every failure a caller can see is one of four kinds:
//
//	ErrValidation → bad input, bad credentials, duplicate email, store failures (400)
//	ErrForbidden  → missing, invalid or mismatched tokens (403)
//	ErrNotFound   → repository lookups that matched nothing (404)
//	ErrConflict   → unique constraint violations in a repository (409)
//
// The Message of an AppError is safe to send to clients. Internal detail stays
// in the wrapped chain and in the logs.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")
	ErrConflict   = errors.New("conflict")
	ErrForbidden  = errors.New("forbidden")
)

// Client-facing messages. They are deliberately the same for every cause in
// their class so callers cannot probe which check failed.
const (
	MsgInvalidCredentials = "Failed to login. Email address or password incorrect."
	MsgNotAuthenticated   = "You are not authenticated to access this endpoint."
	MsgCreateUserFailed   = "Failed to create new user."
	MsgCreateInfoFailed   = "Failed to create user info."
	MsgUserInfoNotFound   = "Failed to find user with requested ID"
)

type AppError struct {
	Err     error  // sentinel the error belongs to
	Message string // human-readable, safe for clients
	Field   string // optional: input field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, key string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with key %s", resource, key),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// InvalidCredentials is returned by login for an unknown email and for a wrong
// password alike.
func InvalidCredentials() *AppError {
	return ValidationFailed("credentials", MsgInvalidCredentials)
}

// NotAuthenticated is the single denial returned by session checks.
func NotAuthenticated() *AppError {
	return Forbidden(MsgNotAuthenticated)
}
