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
	"fmt"
	"strings"
)

// Node is one element of a filter expression tree.
//
// Description:
//
//	A Node is a closed tagged union over four variants selected by Kind:
//	a leaf carrying a tag name, or an OR / AND / NOT operator owning an
//	ordered list of children. A NOT always owns exactly one child.
//
//	Children are owned through the children slice. The parent field is a
//	back-reference used for path computation and removal only; it never
//	keeps a node alive and is cleared when the node is detached.
//
// Thread Safety:
//
//	Node is NOT safe for concurrent use.
type Node struct {
	kind     Kind
	tag      string
	children []*Node
	parent   *Node
}

// NewLeaf creates a detached leaf matching tag.
func NewLeaf(tag string) *Node {
	return &Node{kind: KindLeaf, tag: tag}
}

// NewOr creates a detached OR node adopting children in order.
func NewOr(children ...*Node) *Node {
	return newSequence(KindOr, children)
}

// NewAnd creates a detached AND node adopting children in order.
func NewAnd(children ...*Node) *Node {
	return newSequence(KindAnd, children)
}

// NewNot creates a detached NOT node wrapping content.
func NewNot(content *Node) *Node {
	return newSequence(KindNot, []*Node{content})
}

func newSequence(kind Kind, children []*Node) *Node {
	n := &Node{kind: kind, children: make([]*Node, 0, len(children))}
	for _, c := range children {
		n.children = append(n.children, c)
		c.parent = n
	}
	return n
}

// Kind returns the node variant.
func (n *Node) Kind() Kind {
	return n.kind
}

// Tag returns the tag name of a leaf, or "" for operator nodes.
func (n *Node) Tag() string {
	return n.tag
}

// Parent returns the node whose child list contains n, or nil for a root or
// detached node.
func (n *Node) Parent() *Node {
	return n.parent
}

// Len returns the number of direct children. Leaves report 0.
//
// This is the row count a view shows beneath the node.
func (n *Node) Len() int {
	return len(n.children)
}

// Child returns the child at index i, or nil when i is out of range.
func (n *Node) Child(i int) *Node {
	if i < 0 || i >= len(n.children) {
		return nil
	}
	return n.children[i]
}

// Children returns a copy of the child list.
func (n *Node) Children() []*Node {
	out := make([]*Node, len(n.children))
	copy(out, n.children)
	return out
}

// Content returns the wrapped child of a NOT node, or nil for other kinds.
func (n *Node) Content() *Node {
	if n.kind != KindNot || len(n.children) != 1 {
		return nil
	}
	return n.children[0]
}

// IsSequence reports whether the node owns children (OR, AND or NOT).
func (n *Node) IsSequence() bool {
	return n.kind.IsSequence()
}

// Label returns the display text of the node: the tag for a leaf, the
// operator name otherwise.
func (n *Node) Label() string {
	if n.kind == KindLeaf {
		return n.tag
	}
	return n.kind.String()
}

// String renders the subtree in the compact form used by logs and tests,
// for example OR[a,AND[b,NOT[c]]].
func (n *Node) String() string {
	var sb strings.Builder
	n.writeTo(&sb)
	return sb.String()
}

func (n *Node) writeTo(sb *strings.Builder) {
	if n.kind == KindLeaf {
		sb.WriteString(n.tag)
		return
	}
	sb.WriteString(n.kind.String())
	sb.WriteByte('[')
	for i, c := range n.children {
		if i > 0 {
			sb.WriteByte(',')
		}
		c.writeTo(sb)
	}
	sb.WriteByte(']')
}

// Clone returns a detached deep copy of the subtree rooted at n.
func (n *Node) Clone() *Node {
	cp := &Node{kind: n.kind, tag: n.tag}
	if len(n.children) > 0 {
		cp.children = make([]*Node, len(n.children))
		for i, c := range n.children {
			cc := c.Clone()
			cc.parent = cp
			cp.children[i] = cc
		}
	}
	return cp
}

// Equal reports whether two subtrees have the same shape and leaf tags.
// Identity and parent links are not compared.
func (n *Node) Equal(other *Node) bool {
	if n == nil || other == nil {
		return n == other
	}
	if n.kind != other.kind || n.tag != other.tag || len(n.children) != len(other.children) {
		return false
	}
	for i := range n.children {
		if !n.children[i].Equal(other.children[i]) {
			return false
		}
	}
	return true
}

// Validate checks the structural invariants of the subtree rooted at n.
//
// Description:
//
//	Verifies that every kind is known, leaves have a non-empty tag and no
//	children, NOT nodes own exactly one child, every child points back at
//	its parent, no node appears twice, and leaf tags are unique among the
//	direct children of each node.
//
// Outputs:
//
//	error - nil when the subtree is well formed, otherwise an error wrapping
//	ErrTypeMismatch, ErrDuplicateTag, ErrEmptyTag or ErrBrokenPath.
func (n *Node) Validate() error {
	return n.validate(make(map[*Node]struct{}))
}

func (n *Node) validate(seen map[*Node]struct{}) error {
	if _, dup := seen[n]; dup {
		return fmt.Errorf("%w: node %s appears twice", ErrBrokenPath, n.Label())
	}
	seen[n] = struct{}{}

	switch n.kind {
	case KindLeaf:
		if n.tag == "" {
			return ErrEmptyTag
		}
		if len(n.children) != 0 {
			return fmt.Errorf("%w: leaf %q has children", ErrTypeMismatch, n.tag)
		}
		return nil
	case KindNot:
		if len(n.children) != 1 {
			return fmt.Errorf("%w: NOT has %d children, want 1", ErrTypeMismatch, len(n.children))
		}
	case KindOr, KindAnd:
	default:
		return fmt.Errorf("%w: unknown kind %d", ErrTypeMismatch, uint8(n.kind))
	}
	if n.tag != "" {
		return fmt.Errorf("%w: %s carries a tag", ErrTypeMismatch, n.kind)
	}

	tags := make(map[string]struct{}, len(n.children))
	for _, c := range n.children {
		if c == nil {
			return fmt.Errorf("%w: nil child under %s", ErrBrokenPath, n.kind)
		}
		if c.parent != n {
			return fmt.Errorf("%w: child %s does not point at its parent", ErrBrokenPath, c.Label())
		}
		if c.kind == KindLeaf {
			if _, dup := tags[c.tag]; dup {
				return fmt.Errorf("%w: %q", ErrDuplicateTag, c.tag)
			}
			tags[c.tag] = struct{}{}
		}
		if err := c.validate(seen); err != nil {
			return err
		}
	}
	return nil
}

// indexOf returns the position of child in n's child list, or -1.
func (n *Node) indexOf(child *Node) int {
	for i, c := range n.children {
		if c == child {
			return i
		}
	}
	return -1
}

// hasLeafTag reports whether a direct child leaf carries tag, ignoring the
// nodes in skip.
func (n *Node) hasLeafTag(tag string, skip map[*Node]struct{}) bool {
	for _, c := range n.children {
		if _, ok := skip[c]; ok {
			continue
		}
		if c.kind == KindLeaf && c.tag == tag {
			return true
		}
	}
	return false
}

// insertChild places child at pos and adopts it.
func (n *Node) insertChild(pos int, child *Node) {
	n.children = append(n.children, nil)
	copy(n.children[pos+1:], n.children[pos:])
	n.children[pos] = child
	child.parent = n
}

// removeChildAt detaches and returns the child at pos.
func (n *Node) removeChildAt(pos int) *Node {
	c := n.children[pos]
	copy(n.children[pos:], n.children[pos+1:])
	n.children[len(n.children)-1] = nil
	n.children = n.children[:len(n.children)-1]
	c.parent = nil
	return c
}

// isAncestorOf reports whether n is a proper ancestor of other.
func (n *Node) isAncestorOf(other *Node) bool {
	for p := other.parent; p != nil; p = p.parent {
		if p == n {
			return true
		}
	}
	return false
}

// rootOf walks parent links to the top of n's tree.
func rootOf(n *Node) *Node {
	for n.parent != nil {
		n = n.parent
	}
	return n
}
