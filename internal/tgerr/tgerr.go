// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package tgerr defines the typed error taxonomy shared by every core
// component. Components never return raw errno values; only the VFS
// surface (internal/vfs) maps a Kind to a syscall.Errno.
package tgerr

import "fmt"

// Kind classifies an Error for mapping to a POSIX errno at the VFS boundary.
type Kind int

const (
	// NotFound indicates an unknown path or missing entity.
	NotFound Kind = iota
	// NotDir indicates an operation expected a directory and got something else.
	NotDir
	// IsDir indicates an operation expected a non-directory and got a directory.
	IsDir
	// Perm indicates an unauthorized write or a disallowed truncate.
	Perm
	// TooLarge indicates an upload exceeded the maximum regular file size.
	TooLarge
	// BadInput indicates malformed data: binary writes to messages, bad media extensions.
	BadInput
	// Upstream indicates an RPC failure, timeout, or network error.
	Upstream
	// Backend indicates a SQLite or other local-storage failure.
	Backend
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case NotDir:
		return "not_dir"
	case IsDir:
		return "is_dir"
	case Perm:
		return "perm"
	case TooLarge:
		return "too_large"
	case BadInput:
		return "bad_input"
	case Upstream:
		return "upstream"
	case Backend:
		return "backend"
	default:
		return "unknown"
	}
}

// Error is the concrete error type returned by every component method that
// can fail. It carries enough information for internal/vfs to pick a
// syscall.Errno without re-deriving it from the message text.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New constructs an Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf constructs an Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an Error carrying cause as the underlying error.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the Kind of err if it is (or wraps) a *Error, otherwise
// returns Upstream as the conservative default for unrecognised errors.
func KindOf(err error) Kind {
	var e *Error
	if asError(err, &e) {
		return e.Kind
	}
	return Upstream
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
