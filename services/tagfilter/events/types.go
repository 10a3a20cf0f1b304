// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package events fans tag filter change notifications out to subscribers.
//
// A Tree delivers Change notifications synchronously to one Observer. The
// Emitter turns them into self-contained Event values (paths instead of live
// node pointers) that can be buffered, filtered and shipped to other
// goroutines, for example a WebSocket stream.
//
// Thread Safety:
//
//	All types in this package are designed for concurrent use.
package events

import (
	"github.com/AleutianAI/tagfilter/services/tagfilter"
)

// Type identifies the kind of event.
type Type string

const (
	// TypeBeginInsert is emitted before rows are inserted.
	TypeBeginInsert Type = "begin_insert"

	// TypeEndInsert is emitted after rows were inserted.
	TypeEndInsert Type = "end_insert"

	// TypeBeginRemove is emitted before rows are removed.
	TypeBeginRemove Type = "begin_remove"

	// TypeEndRemove is emitted after rows were removed.
	TypeEndRemove Type = "end_remove"

	// TypeBeginMove is emitted before a contiguous run of rows moves.
	TypeBeginMove Type = "begin_move"

	// TypeEndMove is emitted after a contiguous run of rows moved.
	TypeEndMove Type = "end_move"

	// TypeSaved is emitted when a filter is persisted.
	TypeSaved Type = "saved"

	// TypeLoaded is emitted when a stored filter replaces the edited one.
	TypeLoaded Type = "loaded"
)

// TypeOf maps an engine change kind to its event type.
func TypeOf(kind tagfilter.ChangeKind) Type {
	return Type(kind.String())
}

// Event is one broadcast notification.
//
// Thread Safety:
//
//	Event structs should be treated as immutable after creation.
type Event struct {
	// ID is a unique identifier for this event.
	ID string `json:"id"`

	// Type identifies the kind of event.
	Type Type `json:"type"`

	// Filter names the filter the event belongs to.
	Filter string `json:"filter"`

	// Sequence increases by one for every event of an Emitter.
	Sequence uint64 `json:"sequence"`

	// Timestamp is when the event occurred (Unix milliseconds UTC).
	Timestamp int64 `json:"timestamp"`

	// Data is ChangeData for structural events, FilterData otherwise.
	Data any `json:"data,omitempty"`
}

// ChangeData describes a structural change with paths in dotted form.
type ChangeData struct {
	// Op is the engine operation that caused the change.
	Op string `json:"op"`

	// ParentPath is the node whose rows change ("" for the root).
	ParentPath string `json:"parent_path"`

	// First and Last bound the affected rows, inclusive.
	First int `json:"first"`
	Last  int `json:"last"`

	// DestPath and DestIndex are set for moves only.
	DestPath  string `json:"dest_path,omitempty"`
	DestIndex int    `json:"dest_index,omitempty"`
}

// NewChangeData converts an engine notification.
func NewChangeData(c tagfilter.Change) ChangeData {
	d := ChangeData{
		Op:         c.Op,
		ParentPath: c.ParentPath.String(),
		First:      c.First,
		Last:       c.Last,
	}
	if c.Dest != nil {
		d.DestPath = c.DestPath.String()
		d.DestIndex = c.DestIndex
	}
	return d
}

// FilterData describes a whole-filter event.
type FilterData struct {
	// Expression is the compact rendering, e.g. OR[a,AND[b,c]].
	Expression string `json:"expression"`

	// Size is the encoded size in bytes, when known.
	Size int `json:"size,omitempty"`
}
