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

// ChangeKind identifies a structural change notification.
type ChangeKind uint8

const (
	// ChangeBeginInsert precedes insertion of rows First..Last under Parent.
	ChangeBeginInsert ChangeKind = iota + 1

	// ChangeEndInsert follows the insertion announced by ChangeBeginInsert.
	ChangeEndInsert

	// ChangeBeginRemove precedes removal of rows First..Last under Parent.
	ChangeBeginRemove

	// ChangeEndRemove follows the removal announced by ChangeBeginRemove.
	ChangeEndRemove

	// ChangeBeginMove precedes moving rows First..Last of Parent so that
	// they land before row DestIndex of Dest (pre-move coordinates).
	ChangeBeginMove

	// ChangeEndMove follows the move announced by ChangeBeginMove.
	ChangeEndMove
)

// String returns the snake_case event name used on the wire.
func (k ChangeKind) String() string {
	switch k {
	case ChangeBeginInsert:
		return "begin_insert"
	case ChangeEndInsert:
		return "end_insert"
	case ChangeBeginRemove:
		return "begin_remove"
	case ChangeEndRemove:
		return "end_remove"
	case ChangeBeginMove:
		return "begin_move"
	case ChangeEndMove:
		return "end_move"
	default:
		return "unknown"
	}
}

// IsBegin reports whether the change opens a begin/end bracket.
func (k ChangeKind) IsBegin() bool {
	return k == ChangeBeginInsert || k == ChangeBeginRemove || k == ChangeBeginMove
}

// Change is one structural change notification.
//
// Begin notifications are delivered before the backing storage changes and
// end notifications after it, so an observer never sees a half-applied
// mutation. Paths are computed at delivery time.
type Change struct {
	// Kind says what is happening.
	Kind ChangeKind

	// Op is the engine operation that caused the change ("insert",
	// "remove", "merge", "negate", "move", "drop", "filter").
	Op string

	// Parent is the node whose child rows change (the source for moves).
	Parent *Node

	// ParentPath is the path of Parent.
	ParentPath Path

	// First and Last bound the affected rows, inclusive.
	First int
	Last  int

	// Dest, DestPath and DestIndex describe the destination of a move.
	// They are zero for inserts and removals.
	Dest      *Node
	DestPath  Path
	DestIndex int
}

// Observer consumes change notifications.
//
// OnChange runs synchronously inside the mutating call. It must not call
// back into the Tree; such calls are rejected with ErrReentrant.
type Observer interface {
	OnChange(Change)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Change)

// OnChange calls f(c).
func (f ObserverFunc) OnChange(c Change) {
	f(c)
}

// Recorder is an Observer that keeps every change it receives.
// It is mainly useful in tests and for debugging views.
type Recorder struct {
	Changes []Change
}

// OnChange appends c.
func (r *Recorder) OnChange(c Change) {
	r.Changes = append(r.Changes, c)
}

// Kinds returns the kinds of the recorded changes in order.
func (r *Recorder) Kinds() []ChangeKind {
	out := make([]ChangeKind, len(r.Changes))
	for i, c := range r.Changes {
		out[i] = c.Kind
	}
	return out
}

// Reset forgets every recorded change.
func (r *Recorder) Reset() {
	r.Changes = nil
}
