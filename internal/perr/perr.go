// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package perr defines the pipeline's error taxonomy. Every external
// boundary (object store, HTTP client, AI inference) translates its
// low-level failures into one of these tagged variants so stage code
// and the orchestrator can decide, by type alone, whether to retry,
// skip, or abort the run.
package perr

import "fmt"

// Kind tags an error with the handling policy it implies.
type Kind string

const (
	// KindValidation marks bad input; never retried, surfaced as 400.
	KindValidation Kind = "validation"
	// KindAuth marks a missing or invalid credential; never retried.
	KindAuth Kind = "auth"
	// KindUpstreamTemporary marks network errors, 5xx, timeouts, 429;
	// retried with backoff up to the stage's limit.
	KindUpstreamTemporary Kind = "upstream_temporary"
	// KindUpstreamPermanent marks non-429 4xx; recorded per-item, pipeline continues.
	KindUpstreamPermanent Kind = "upstream_permanent"
	// KindContract marks a malformed AI response; callers fall back to safe defaults.
	KindContract Kind = "contract"
	// KindState marks a disallowed state transition or missing precondition.
	KindState Kind = "state"
	// KindFatalConfig marks a missing secret or other startup-blocking misconfiguration.
	KindFatalConfig Kind = "fatal_config"
)

// Error is the pipeline's tagged error type. Wrap low-level errors with
// one of the constructors below rather than returning them bare, so
// callers can dispatch retry/skip/abort policy on Kind alone.
type Error struct {
	Kind    Kind
	Op      string // the operation that failed, e.g. "clipcatalog.ListRecentClips"
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func new_(kind Kind, op, msg string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: msg, Err: err}
}

func Validation(op, msg string, err error) *Error        { return new_(KindValidation, op, msg, err) }
func Auth(op, msg string, err error) *Error               { return new_(KindAuth, op, msg, err) }
func UpstreamTemporary(op, msg string, err error) *Error  { return new_(KindUpstreamTemporary, op, msg, err) }
func UpstreamPermanent(op, msg string, err error) *Error  { return new_(KindUpstreamPermanent, op, msg, err) }
func Contract(op, msg string, err error) *Error           { return new_(KindContract, op, msg, err) }
func State(op, msg string, err error) *Error               { return new_(KindState, op, msg, err) }
func FatalConfig(op, msg string, err error) *Error        { return new_(KindFatalConfig, op, msg, err) }

// Is reports whether err (or something it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if pe, ok := err.(*Error); ok {
			e = pe
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return e != nil && e.Kind == kind
}

// Retryable reports whether the stage should retry the operation that
// produced err (exponential backoff up to the stage's configured limit).
func Retryable(err error) bool {
	return Is(err, KindUpstreamTemporary)
}
