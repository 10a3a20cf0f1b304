// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tagfilter

import (
	"errors"
	"fmt"
)

// Sentinel errors for rejected tree operations.
//
// Every engine rejection wraps exactly one of these, so callers can classify
// a failure with errors.Is without inspecting messages. A rejected operation
// never leaves the tree modified.
var (
	// ErrInvalidIndex indicates an out-of-range index, a path that does not
	// resolve, or an operation aimed at the root node.
	ErrInvalidIndex = errors.New("invalid index")

	// ErrTypeMismatch indicates the target node is of the wrong kind, for
	// example inserting under a leaf or a NOT.
	ErrTypeMismatch = errors.New("node type mismatch")

	// ErrDuplicateTag indicates the operation would give two sibling leaves
	// the same tag name.
	ErrDuplicateTag = errors.New("duplicate tag")

	// ErrCrossParent indicates the target nodes do not share one parent.
	ErrCrossParent = errors.New("nodes have different parents")

	// ErrBrokenPath indicates a parent link that does not match the parent's
	// child list, or a node that does not belong to the tree.
	ErrBrokenPath = errors.New("broken path")

	// ErrDecode indicates a malformed serialized tree or payload.
	ErrDecode = errors.New("decode error")

	// ErrEmptyTag indicates a leaf with an empty tag name.
	ErrEmptyTag = errors.New("empty tag name")

	// ErrReentrant indicates a mutation issued from inside a change observer.
	ErrReentrant = errors.New("tree mutated from inside a change notification")
)

// OpError describes a rejected tree operation.
//
// OpError wraps one of the sentinel errors above with the operation name and
// the path of the offending node, when known.
//
// Example:
//
//	_, err := tree.InsertLeaf("a", nil, -1)
//	var opErr *tagfilter.OpError
//	if errors.As(err, &opErr) {
//	    fmt.Println(opErr.Op, opErr.Path)
//	}
//	if errors.Is(err, tagfilter.ErrDuplicateTag) {
//	    // expected, tell the user
//	}
type OpError struct {
	// Op is the engine operation, e.g. "insert", "merge", "move".
	Op string

	// Path locates the offending node. Nil when not applicable.
	Path Path

	// Detail is a short human-readable explanation.
	Detail string

	// Err is the sentinel classifying the failure.
	Err error
}

// Error returns "op [at path]: sentinel: detail".
func (e *OpError) Error() string {
	msg := e.Op
	if e.Path != nil {
		msg += " at " + e.Path.Display()
	}
	msg += ": " + e.Err.Error()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Unwrap returns the classifying sentinel.
func (e *OpError) Unwrap() error {
	return e.Err
}

func opErr(op string, path Path, sentinel error, format string, args ...any) *OpError {
	return &OpError{
		Op:     op,
		Path:   path,
		Detail: fmt.Sprintf(format, args...),
		Err:    sentinel,
	}
}

// DecodeError reports malformed codec or payload input.
type DecodeError struct {
	// Offset is the byte offset at which decoding failed.
	Offset int

	// Reason describes what was wrong.
	Reason string
}

// Error returns the failure with its byte offset.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s at offset %d: %s", ErrDecode, e.Offset, e.Reason)
}

// Unwrap returns ErrDecode.
func (e *DecodeError) Unwrap() error {
	return ErrDecode
}

// Reason returns a stable, upper-case code for err, suitable for API
// responses and metric labels. Unknown errors map to "INTERNAL".
func Reason(err error) string {
	switch {
	case err == nil:
		return "OK"
	case errors.Is(err, ErrInvalidIndex):
		return "INVALID_INDEX"
	case errors.Is(err, ErrTypeMismatch):
		return "TYPE_MISMATCH"
	case errors.Is(err, ErrDuplicateTag):
		return "DUPLICATE_TAG"
	case errors.Is(err, ErrCrossParent):
		return "CROSS_PARENT"
	case errors.Is(err, ErrBrokenPath):
		return "BROKEN_PATH"
	case errors.Is(err, ErrDecode):
		return "DECODE_ERROR"
	case errors.Is(err, ErrEmptyTag):
		return "EMPTY_TAG"
	case errors.Is(err, ErrReentrant):
		return "REENTRANT"
	default:
		return "INTERNAL"
	}
}
