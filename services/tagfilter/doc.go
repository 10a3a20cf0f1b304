// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tagfilter implements an editable boolean tag-filter expression tree.
//
// A filter is a tree of OR / AND / NOT operator nodes whose leaves name single
// tags. The tree is edited interactively (insert, remove, group, negate,
// drag-and-drop move) through a Tree, which is the only component allowed to
// change tree shape. Every structural change is bracketed by a begin and an
// end Change notification so that a view can keep its own row addressing in
// sync with the model.
//
// # Architecture
//
//	┌──────────────┐   edit intents   ┌──────────────┐   Change events   ┌────────────┐
//	│ editor / API │ ───────────────▶ │     Tree     │ ────────────────▶ │  Observer  │
//	└──────────────┘                  └──────┬───────┘                   └────────────┘
//	                                         │ owns
//	                                  ┌──────▼───────┐
//	                                  │  *Node root  │  (always KindOr)
//	                                  └──────────────┘
//
// Drag payloads are lists of root-relative Paths encoded with the package's
// binary framing, so they can leave the process and come back without
// carrying live pointers. Whole filters are persisted with Marshal and
// evaluated with Node.IsAccepted or Evaluate.
//
// # Basic Usage
//
//	tree := tagfilter.NewTree()
//	a, _ := tree.InsertLeaf("a", nil, -1)
//	b, _ := tree.InsertLeaf("b", nil, -1)
//	and, _ := tree.Merge(tagfilter.KindAnd, []*tagfilter.Node{a, b})
//	_ = and
//	tree.Root().IsAccepted(tagfilter.NewTagSet("a", "b")) // true
//
// # Thread Safety
//
// Tree and Node are NOT safe for concurrent use. Callers that share a tree
// between goroutines must serialize access themselves (see the api package).
package tagfilter
