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

import "fmt"

// Move relocates nodes under target, the way a drag and drop does.
//
// Description:
//
//	The selection is first reduced to independent nodes, keeping the order
//	supplied by the caller. index is a gap index in the coordinates of the
//	tree before anything is removed ("insert before the child currently at
//	index"); a negative index appends. Each source that sits in target
//	before index shifts the insertion point left by one once it is gone.
//	The sources are then removed (deepest and latest first) and inserted as
//	one block in supplied order.
//
//	When the sources are one contiguous run of a single parent, supplied in
//	order, the change is announced as a single begin/end move pair. Moving
//	such a run onto itself is a no-op and announces nothing.
//
// Inputs:
//
//	nodes - Non-root nodes of this tree.
//	target - An OR or AND node of this tree, or nil for the root.
//	index - Gap index in [0, target.Len()], or negative to append.
//
// Outputs:
//
//	error - ErrInvalidIndex (empty selection, root source, bad index, target
//	inside a moved subtree), ErrTypeMismatch (target not OR/AND, source is
//	the content of a NOT), ErrDuplicateTag, ErrBrokenPath or ErrReentrant,
//	wrapped in *OpError.
//
// Example:
//
//	// OR[a,b,c]: move a to the end.
//	err := tree.Move([]*Node{a}, nil, 3) // OR[b,c,a]
func (t *Tree) Move(nodes []*Node, target *Node, index int) error {
	const op = "move"
	err := t.move(op, nodes, target, index)
	t.record(op, err)
	return err
}

func (t *Tree) move(op string, nodes []*Node, target *Node, index int) error {
	if err := t.guard(op); err != nil {
		return err
	}
	if len(nodes) == 0 {
		return opErr(op, nil, ErrInvalidIndex, "there is no index")
	}
	target, index, err := t.insertionPoint(op, target, index)
	if err != nil {
		return err
	}
	for _, n := range nodes {
		if _, err := t.ownedNonRoot(op, n); err != nil {
			return err
		}
	}

	sources := independent(nodes)
	if err := t.checkMoveSources(op, sources, target); err != nil {
		return err
	}

	if first, last, ok := contiguousRun(sources); ok {
		parent := sources[0].parent
		if parent == target && index >= first && index <= last+1 {
			return nil
		}
		t.moveRun(op, parent, first, last, target, index)
		return nil
	}

	adjusted := adjustedIndex(sources, target, index)
	for _, src := range reversed(sortByPath(sources)) {
		t.removeRow(op, src.parent, src.parent.indexOf(src))
	}
	t.insertRows(op, target, adjusted, sources...)
	return nil
}

// checkMoveSources rejects selections that cannot land under target.
func (t *Tree) checkMoveSources(op string, sources []*Node, target *Node) error {
	moving := make(map[*Node]struct{}, len(sources))
	for _, src := range sources {
		if src == target || src.isAncestorOf(target) {
			return opErr(op, t.pathOrNil(target), ErrInvalidIndex,
				"cannot move %s into its own subtree", src.Label())
		}
		if src.parent.kind == KindNot {
			return opErr(op, t.pathOrNil(src), ErrTypeMismatch,
				"cannot move the content out of a NOT")
		}
		moving[src] = struct{}{}
	}

	incoming := make(map[string]struct{})
	for _, src := range sources {
		if src.kind != KindLeaf {
			continue
		}
		if _, dup := incoming[src.tag]; dup {
			return opErr(op, t.pathOrNil(src), ErrDuplicateTag, "tag with name %q is moved twice", src.tag)
		}
		incoming[src.tag] = struct{}{}
		if target.hasLeafTag(src.tag, moving) {
			return opErr(op, t.pathOrNil(target), ErrDuplicateTag, "tag with name %q already exists", src.tag)
		}
	}
	return nil
}

// moveRun moves rows first..last of parent to gap index of target inside a
// single begin/end move bracket.
func (t *Tree) moveRun(op string, parent *Node, first, last int, target *Node, index int) {
	change := func(kind ChangeKind) Change {
		c := t.rowsChange(kind, op, parent, first, last)
		c.Dest = target
		c.DestPath = t.pathOrNil(target)
		c.DestIndex = index
		return c
	}

	t.emit(change(ChangeBeginMove))
	run := make([]*Node, last-first+1)
	for i := last; i >= first; i-- {
		run[i-first] = parent.removeChildAt(i)
	}
	dest := index
	if parent == target && index > last {
		dest -= len(run)
	}
	for i, n := range run {
		target.insertChild(dest+i, n)
	}
	t.emit(change(ChangeEndMove))
}

// adjustedIndex converts a pre-removal gap index of target into the index
// valid once every source has been detached.
func adjustedIndex(sources []*Node, target *Node, index int) int {
	adjusted := index
	for _, src := range sources {
		if src.parent == target && target.indexOf(src) < index {
			adjusted--
		}
	}
	return adjusted
}

// contiguousRun reports whether sources are consecutive children of one
// parent, supplied in ascending order, and returns the row range.
func contiguousRun(sources []*Node) (first, last int, ok bool) {
	parent := sources[0].parent
	first = parent.indexOf(sources[0])
	for i, src := range sources {
		if src.parent != parent || parent.indexOf(src) != first+i {
			return 0, 0, false
		}
	}
	return first, first + len(sources) - 1, true
}

func reversed(nodes []*Node) []*Node {
	out := make([]*Node, len(nodes))
	for i, n := range nodes {
		out[len(nodes)-1-i] = n
	}
	return out
}

// =============================================================================
// Drag and drop
// =============================================================================

// Payload builds the path payload for dragging nodes.
//
// The selection is reduced with PickIndependentSelection, so the payload
// lists each dragged subtree once, in path order.
func (t *Tree) Payload(nodes []*Node) ([]byte, error) {
	sel, err := t.PickIndependentSelection(nodes)
	if err != nil {
		return nil, err
	}
	if len(sel) == 0 {
		return nil, opErr("drag", nil, ErrInvalidIndex, "there is no index")
	}
	paths := make([]Path, len(sel))
	for i, n := range sel {
		p, err := PathOf(n)
		if err != nil {
			return nil, &OpError{Op: "drag", Err: err}
		}
		paths[i] = p
	}
	return EncodePayload(paths), nil
}

// MimeData returns every representation of a drag of nodes, keyed by MIME
// type: the path payload and the plain-text list of the leaf tags involved.
func (t *Tree) MimeData(nodes []*Node) (map[string][]byte, error) {
	payload, err := t.Payload(nodes)
	if err != nil {
		return nil, err
	}
	sel := independent(nodes)
	tags := make([]string, 0, len(sel))
	for _, n := range sortByPath(sel) {
		tags = append(tags, n.Tags()...)
	}
	return map[string][]byte{
		MIMEPaths: payload,
		MIMEText:  []byte(FormatTextPayload(tags)),
	}, nil
}

// DropPayload decodes a path payload produced by Payload on this tree and
// moves the addressed nodes to gap index of target.
func (t *Tree) DropPayload(payload []byte, target *Node, index int) error {
	const op = "drop"
	err := t.dropPayload(op, payload, target, index)
	t.record(op, err)
	return err
}

func (t *Tree) dropPayload(op string, payload []byte, target *Node, index int) error {
	if err := t.guard(op); err != nil {
		return err
	}
	paths, err := DecodePayload(payload)
	if err != nil {
		return &OpError{Op: op, Err: err}
	}
	nodes, err := t.ResolveAll(paths)
	if err != nil {
		return &OpError{Op: op, Err: err}
	}
	return t.move(op, nodes, target, index)
}

// DropText inserts one leaf per non-blank line of text under target,
// starting at index (negative appends).
//
// Description:
//
//	The drop is atomic: if any tag is empty after trimming or clashes with
//	an existing sibling or with another line, nothing is inserted. All
//	leaves are announced in one begin/end insert bracket.
//
// Outputs:
//
//	[]*Node - The inserted leaves, in line order. Nil when text holds no
//	tags.
//	error - ErrTypeMismatch, ErrInvalidIndex, ErrDuplicateTag, ErrBrokenPath
//	or ErrReentrant, wrapped in *OpError.
func (t *Tree) DropText(text string, target *Node, index int) ([]*Node, error) {
	const op = "drop"
	leaves, err := t.dropText(op, text, target, index)
	t.record(op, err)
	return leaves, err
}

func (t *Tree) dropText(op, text string, target *Node, index int) ([]*Node, error) {
	if err := t.guard(op); err != nil {
		return nil, err
	}
	target, index, err := t.insertionPoint(op, target, index)
	if err != nil {
		return nil, err
	}
	tags := ParseTextPayload(text)
	if len(tags) == 0 {
		return nil, nil
	}

	seen := make(map[string]struct{}, len(tags))
	leaves := make([]*Node, 0, len(tags))
	for _, tag := range tags {
		if _, dup := seen[tag]; dup || target.hasLeafTag(tag, nil) {
			return nil, opErr(op, t.pathOrNil(target), ErrDuplicateTag, "tag with name %q already exists", tag)
		}
		seen[tag] = struct{}{}
		leaves = append(leaves, NewLeaf(tag))
	}
	t.insertRows(op, target, index, leaves...)
	return leaves, nil
}

// Drop dispatches a drop on the MIME type of data: a path payload is a move
// inside this tree, plain text inserts new leaves.
func (t *Tree) Drop(mimeType string, data []byte, target *Node, index int) error {
	switch mimeType {
	case MIMEPaths:
		return t.DropPayload(data, target, index)
	case MIMEText:
		_, err := t.DropText(string(data), target, index)
		return err
	default:
		err := &OpError{Op: "drop", Err: &DecodeError{Reason: fmt.Sprintf("unsupported mime type %q", mimeType)}}
		t.record("drop", err)
		return err
	}
}
