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
	"log/slog"
	"sort"
)

// Tree owns a filter expression and is the only component that changes its
// shape.
//
// Description:
//
//	Every mutation follows the same protocol: validate (reject with a typed
//	error, nothing applied), announce begin, mutate, announce end. The root
//	is always an OR node and can never be removed, merged away or negated.
//
// Thread Safety:
//
//	Tree is NOT safe for concurrent use. Observers run synchronously inside
//	the mutating call and must not mutate the tree.
type Tree struct {
	root      *Node
	logger    *slog.Logger
	observers []observerEntry
	nextObsID int
	notifying bool
}

type observerEntry struct {
	id  int
	obs Observer
}

// TreeOption configures a Tree.
type TreeOption func(*Tree)

// WithLogger sets the logger used for rejected operations. Default:
// slog.Default().
func WithLogger(logger *slog.Logger) TreeOption {
	return func(t *Tree) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithObserver registers an observer at construction time.
func WithObserver(obs Observer) TreeOption {
	return func(t *Tree) {
		t.Observe(obs)
	}
}

// NewTree creates a tree with an empty OR root.
func NewTree(opts ...TreeOption) *Tree {
	t := &Tree{root: NewOr(), logger: slog.Default()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// LoadTree creates a tree from a deep copy of root.
//
// Inputs:
//
//	root - An OR node satisfying every tree invariant. It is copied, so the
//	caller keeps ownership of the argument.
//
// Outputs:
//
//	*Tree - The new tree.
//	error - Non-nil if root is not an OR node or fails Validate.
func LoadTree(root *Node, opts ...TreeOption) (*Tree, error) {
	cp, err := validRootCopy(root)
	if err != nil {
		return nil, err
	}
	t := NewTree(opts...)
	t.root = cp
	return t, nil
}

func validRootCopy(root *Node) (*Node, error) {
	if root == nil {
		return NewOr(), nil
	}
	if root.kind != KindOr {
		return nil, opErr("load", Path{}, ErrTypeMismatch, "root must be OR, got %s", root.kind)
	}
	cp := root.Clone()
	if err := cp.Validate(); err != nil {
		return nil, &OpError{Op: "load", Path: Path{}, Err: err}
	}
	return cp, nil
}

// Root returns the live root node. Callers must not modify it directly.
func (t *Tree) Root() *Node {
	return t.root
}

// Snapshot returns a detached deep copy of the whole filter.
func (t *Tree) Snapshot() *Node {
	return t.root.Clone()
}

// String renders the whole filter, e.g. OR[a,AND[b,c]].
func (t *Tree) String() string {
	return t.root.String()
}

// Observe registers obs for change notifications and returns a function
// that unregisters it.
func (t *Tree) Observe(obs Observer) (cancel func()) {
	t.nextObsID++
	id := t.nextObsID
	t.observers = append(t.observers, observerEntry{id: id, obs: obs})
	return func() {
		for i, e := range t.observers {
			if e.id == id {
				t.observers = append(t.observers[:i], t.observers[i+1:]...)
				return
			}
		}
	}
}

// Resolve returns the node at path.
func (t *Tree) Resolve(path Path) (*Node, error) {
	return Resolve(t.root, path)
}

// ResolveAll resolves several paths, failing on the first bad one.
func (t *Tree) ResolveAll(paths []Path) ([]*Node, error) {
	nodes := make([]*Node, 0, len(paths))
	for _, p := range paths {
		n, err := t.Resolve(p)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// PathOf returns the path of n, which must belong to this tree.
func (t *Tree) PathOf(n *Node) (Path, error) {
	return t.owned("path", n)
}

// =============================================================================
// Operations
// =============================================================================

// InsertLeaf inserts a new leaf for tag under parent.
//
// Description:
//
//	parent nil means the root. A negative index appends. Rejections are
//	ordinary error values: a duplicate sibling tag is expected during
//	interactive editing and wraps ErrDuplicateTag.
//
// Inputs:
//
//	tag - Tag name. Must not be empty.
//	parent - An OR or AND node of this tree, or nil for the root.
//	index - Insert position in [0, parent.Len()], or negative to append.
//
// Outputs:
//
//	*Node - The inserted leaf.
//	error - ErrEmptyTag, ErrTypeMismatch, ErrInvalidIndex, ErrDuplicateTag,
//	ErrBrokenPath or ErrReentrant, wrapped in *OpError.
func (t *Tree) InsertLeaf(tag string, parent *Node, index int) (*Node, error) {
	const op = "insert"
	leaf, err := t.insertLeaf(op, tag, parent, index)
	t.record(op, err)
	return leaf, err
}

func (t *Tree) insertLeaf(op, tag string, parent *Node, index int) (*Node, error) {
	if err := t.guard(op); err != nil {
		return nil, err
	}
	parent, index, err := t.insertionPoint(op, parent, index)
	if err != nil {
		return nil, err
	}
	if tag == "" {
		return nil, &OpError{Op: op, Err: ErrEmptyTag}
	}
	if parent.hasLeafTag(tag, nil) {
		return nil, opErr(op, t.pathOrNil(parent), ErrDuplicateTag, "tag with name %q already exists", tag)
	}

	leaf := NewLeaf(tag)
	t.insertRows(op, parent, index, leaf)
	return leaf, nil
}

// RemoveMany detaches every node in nodes from the tree.
//
// Description:
//
//	All targets must share one parent. They are removed in descending
//	position order so each removal only shifts positions that were already
//	processed. A node that is the content of a NOT is promoted to that NOT,
//	since a NOT cannot be left empty. Nodes nested inside another target
//	travel with it.
//
// Outputs:
//
//	[]*Node - The detached nodes, in their original sibling order.
//	error - ErrInvalidIndex (empty set or root), ErrCrossParent,
//	ErrBrokenPath or ErrReentrant, wrapped in *OpError.
func (t *Tree) RemoveMany(nodes []*Node) ([]*Node, error) {
	const op = "remove"
	removed, err := t.removeMany(op, nodes)
	t.record(op, err)
	return removed, err
}

func (t *Tree) removeMany(op string, nodes []*Node) ([]*Node, error) {
	if err := t.guard(op); err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, opErr(op, nil, ErrInvalidIndex, "there is no index")
	}

	promoted := make([]*Node, 0, len(nodes))
	for _, n := range nodes {
		if _, err := t.ownedNonRoot(op, n); err != nil {
			return nil, err
		}
		for n.parent.kind == KindNot {
			n = n.parent
		}
		promoted = append(promoted, n)
	}
	targets := independent(promoted)

	parent, err := t.sharedParent(op, targets)
	if err != nil {
		return nil, err
	}

	positions := sortedPositions(parent, targets)
	removed := make([]*Node, len(positions))
	for i := len(positions) - 1; i >= 0; i-- {
		removed[i] = t.removeRow(op, parent, positions[i])
	}
	return removed, nil
}

// Merge groups sibling nodes under a new OR or AND node.
//
// Description:
//
//	The targets are removed (descending order), placed in a new node of
//	the requested kind in their original relative order, and the new node
//	is inserted where the earliest target used to be.
//
// Inputs:
//
//	kind - KindOr or KindAnd.
//	nodes - Non-root siblings sharing one parent.
//
// Outputs:
//
//	*Node - The new grouping node.
//	error - ErrTypeMismatch, ErrInvalidIndex, ErrCrossParent, ErrBrokenPath
//	or ErrReentrant, wrapped in *OpError.
func (t *Tree) Merge(kind Kind, nodes []*Node) (*Node, error) {
	const op = "merge"
	merged, err := t.merge(op, kind, nodes)
	t.record(op, err)
	return merged, err
}

func (t *Tree) merge(op string, kind Kind, nodes []*Node) (*Node, error) {
	if err := t.guard(op); err != nil {
		return nil, err
	}
	if kind != KindOr && kind != KindAnd {
		return nil, opErr(op, nil, ErrTypeMismatch, "can only merge into OR or AND, got %s", kind)
	}
	if len(nodes) == 0 {
		return nil, opErr(op, nil, ErrInvalidIndex, "there is no index")
	}
	targets := dedupe(nodes)
	for _, n := range targets {
		if _, err := t.ownedNonRoot(op, n); err != nil {
			return nil, err
		}
	}
	parent, err := t.sharedParent(op, targets)
	if err != nil {
		return nil, err
	}

	positions := sortedPositions(parent, targets)
	if parent.kind == KindNot {
		merged := t.replaceRow(op, parent, positions[0], func(content *Node) *Node {
			return newSequence(kind, []*Node{content})
		})
		return merged, nil
	}
	first := positions[0]
	grouped := make([]*Node, len(positions))
	for i := len(positions) - 1; i >= 0; i-- {
		grouped[i] = t.removeRow(op, parent, positions[i])
	}

	merged := newSequence(kind, grouped)
	t.insertRows(op, parent, first, merged)
	return merged, nil
}

// Negate toggles negation of n in place.
//
// Description:
//
//	A NOT node is replaced by its content (double negation elimination);
//	any other node is replaced by a new NOT wrapping it. The position
//	within the parent is preserved.
//
// Outputs:
//
//	*Node - The node now occupying n's position.
//	error - ErrInvalidIndex (root), ErrDuplicateTag (unwrapped leaf clashes
//	with a sibling), ErrBrokenPath or ErrReentrant, wrapped in *OpError.
func (t *Tree) Negate(n *Node) (*Node, error) {
	const op = "negate"
	out, err := t.negate(op, n)
	t.record(op, err)
	return out, err
}

func (t *Tree) negate(op string, n *Node) (*Node, error) {
	if err := t.guard(op); err != nil {
		return nil, err
	}
	path, err := t.ownedNonRoot(op, n)
	if err != nil {
		return nil, err
	}
	parent := n.parent
	row := path.Last()

	if n.kind == KindNot {
		content := n.children[0]
		if content.kind == KindLeaf && parent.hasLeafTag(content.tag, map[*Node]struct{}{n: {}}) {
			return nil, opErr(op, path, ErrDuplicateTag, "tag with name %q already exists", content.tag)
		}
		return t.replaceRow(op, parent, row, func(not *Node) *Node {
			return not.removeChildAt(0)
		}), nil
	}
	return t.replaceRow(op, parent, row, NewNot), nil
}

// FilterTags prunes every leaf whose tag is not in allowed, announcing each
// removal. The root always survives, even when emptied.
//
// Outputs:
//
//	int - Number of rows removed (nested rows removed with an ancestor are
//	not counted separately).
//	error - ErrReentrant when called from an observer.
func (t *Tree) FilterTags(allowed TagSet, policy FilterPolicy) (int, error) {
	const op = "filter"
	if err := t.guard(op); err != nil {
		t.record(op, err)
		return 0, err
	}
	keep := make(map[*Node]bool)
	planFilter(t.root, allowed, policy, keep)
	removed := 0
	applyFilter(t.root, keep, func(parent *Node, index int) {
		t.removeRow(op, parent, index)
		removed++
	})
	t.record(op, nil)
	return removed, nil
}

// Reset replaces the whole filter with a deep copy of root, announcing the
// removal of the old top-level rows and the insertion of the new ones. The
// root node identity is preserved.
func (t *Tree) Reset(root *Node) error {
	const op = "reset"
	if err := t.guard(op); err != nil {
		t.record(op, err)
		return err
	}
	cp, err := validRootCopy(root)
	if err != nil {
		t.record(op, err)
		return err
	}

	if n := len(t.root.children); n > 0 {
		t.emit(t.rowsChange(ChangeBeginRemove, op, t.root, 0, n-1))
		for i := n - 1; i >= 0; i-- {
			t.root.removeChildAt(i)
		}
		t.emit(t.rowsChange(ChangeEndRemove, op, t.root, 0, n-1))
	}
	t.insertRows(op, t.root, 0, cp.Children()...)
	t.record(op, nil)
	return nil
}

// =============================================================================
// Validation helpers
// =============================================================================

func (t *Tree) guard(op string) error {
	if t.notifying {
		return &OpError{Op: op, Err: ErrReentrant}
	}
	return nil
}

// owned returns the path of n after checking that n belongs to this tree.
func (t *Tree) owned(op string, n *Node) (Path, error) {
	if n == nil {
		return nil, opErr(op, nil, ErrInvalidIndex, "the index is invalid")
	}
	path, err := PathOf(n)
	if err != nil {
		return nil, &OpError{Op: op, Err: err}
	}
	if rootOf(n) != t.root {
		return nil, opErr(op, path, ErrBrokenPath, "node %s does not belong to this tree", n.Label())
	}
	return path, nil
}

func (t *Tree) ownedNonRoot(op string, n *Node) (Path, error) {
	path, err := t.owned(op, n)
	if err != nil {
		return nil, err
	}
	if path.IsRoot() {
		return nil, opErr(op, path, ErrInvalidIndex, "cannot use top level index")
	}
	return path, nil
}

// insertionPoint resolves a nil parent to the root and a negative index to
// append, and checks that parent accepts new rows at index.
func (t *Tree) insertionPoint(op string, parent *Node, index int) (*Node, int, error) {
	if parent == nil {
		parent = t.root
	}
	path, err := t.owned(op, parent)
	if err != nil {
		return nil, 0, err
	}
	if parent.kind != KindOr && parent.kind != KindAnd {
		return nil, 0, opErr(op, path, ErrTypeMismatch, "index is not of sequence type (%s)", parent.kind)
	}
	if index < 0 {
		index = len(parent.children)
	}
	if index > len(parent.children) {
		return nil, 0, opErr(op, path, ErrInvalidIndex, "row %d out of range [0,%d]", index, len(parent.children))
	}
	return parent, index, nil
}

func (t *Tree) sharedParent(op string, nodes []*Node) (*Node, error) {
	parent := nodes[0].parent
	for _, n := range nodes[1:] {
		if n.parent != parent {
			return nil, opErr(op, t.pathOrNil(n), ErrCrossParent, "indexes have different parents")
		}
	}
	return parent, nil
}

func (t *Tree) pathOrNil(n *Node) Path {
	p, err := PathOf(n)
	if err != nil {
		return nil
	}
	return p
}

// =============================================================================
// Mutation primitives (announce + apply)
// =============================================================================

// insertRows inserts nodes at index under parent inside one begin/end
// insert bracket.
func (t *Tree) insertRows(op string, parent *Node, index int, nodes ...*Node) {
	if len(nodes) == 0 {
		return
	}
	last := index + len(nodes) - 1
	t.emit(t.rowsChange(ChangeBeginInsert, op, parent, index, last))
	for i, n := range nodes {
		parent.insertChild(index+i, n)
	}
	t.emit(t.rowsChange(ChangeEndInsert, op, parent, index, last))
}

// removeRow detaches the child at index inside one begin/end remove bracket.
func (t *Tree) removeRow(op string, parent *Node, index int) *Node {
	t.emit(t.rowsChange(ChangeBeginRemove, op, parent, index, index))
	n := parent.removeChildAt(index)
	t.emit(t.rowsChange(ChangeEndRemove, op, parent, index, index))
	return n
}

// replaceRow swaps the child at row of parent for build(child).
//
// Under an OR or AND the swap is announced as a remove followed by an
// insert of the same row. A NOT is never announced without its content:
// the outermost NOT above the row leaves its OR/AND parent, the swap
// happens while it is detached, and the NOT is inserted back.
func (t *Tree) replaceRow(op string, parent *Node, row int, build func(old *Node) *Node) *Node {
	if parent.kind != KindNot {
		n := build(t.removeRow(op, parent, row))
		t.insertRows(op, parent, row, n)
		return n
	}

	anchor := parent
	for anchor.parent.kind == KindNot {
		anchor = anchor.parent
	}
	holder := anchor.parent
	at := holder.indexOf(anchor)
	t.removeRow(op, holder, at)
	n := build(parent.removeChildAt(row))
	parent.insertChild(row, n)
	t.insertRows(op, holder, at, anchor)
	return n
}

func (t *Tree) rowsChange(kind ChangeKind, op string, parent *Node, first, last int) Change {
	return Change{
		Kind:       kind,
		Op:         op,
		Parent:     parent,
		ParentPath: t.pathOrNil(parent),
		First:      first,
		Last:       last,
	}
}

func (t *Tree) emit(c Change) {
	if len(t.observers) == 0 {
		return
	}
	t.notifying = true
	defer func() { t.notifying = false }()

	observers := make([]observerEntry, len(t.observers))
	copy(observers, t.observers)
	for _, e := range observers {
		e.obs.OnChange(c)
	}
}

func (t *Tree) record(op string, err error) {
	recordOperation(op, err)
	if err != nil {
		t.logger.Debug("tag filter operation rejected",
			slog.String("op", op),
			slog.String("reason", Reason(err)),
			slog.String("error", err.Error()),
		)
	}
}

// =============================================================================
// Set helpers
// =============================================================================

// dedupe drops repeated pointers, keeping first occurrences in order.
func dedupe(nodes []*Node) []*Node {
	seen := make(map[*Node]struct{}, len(nodes))
	out := make([]*Node, 0, len(nodes))
	for _, n := range nodes {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// sortedPositions returns the ascending child positions of nodes in parent.
func sortedPositions(parent *Node, nodes []*Node) []int {
	positions := make([]int, 0, len(nodes))
	for _, n := range nodes {
		positions = append(positions, parent.indexOf(n))
	}
	sort.Ints(positions)
	return positions
}
