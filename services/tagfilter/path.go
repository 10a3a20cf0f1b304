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
	"strconv"
	"strings"
)

// Path addresses a node by the child indices leading to it from the root.
//
// The root itself has the empty path. A Path is only meaningful until the
// next structural mutation of the tree; it is never cached across edits.
type Path []int

// String renders the path as dot-separated indices ("0.2.1"). The root path
// renders as "".
func (p Path) String() string {
	parts := make([]string, len(p))
	for i, idx := range p {
		parts[i] = strconv.Itoa(idx)
	}
	return strings.Join(parts, ".")
}

// Display is like String but renders the root path as "root".
func (p Path) Display() string {
	if len(p) == 0 {
		return "root"
	}
	return p.String()
}

// Depth returns the number of indices in the path.
func (p Path) Depth() int {
	return len(p)
}

// IsRoot reports whether the path addresses the root node.
func (p Path) IsRoot() bool {
	return len(p) == 0
}

// Parent returns the path of the containing node. The root's parent path is
// the root path.
func (p Path) Parent() Path {
	if len(p) == 0 {
		return Path{}
	}
	return p[: len(p)-1 : len(p)-1]
}

// Last returns the index within the parent, or -1 for the root path.
func (p Path) Last() int {
	if len(p) == 0 {
		return -1
	}
	return p[len(p)-1]
}

// Compare orders paths lexicographically; a proper prefix sorts first.
func (p Path) Compare(other Path) int {
	for i := 0; i < len(p) && i < len(other); i++ {
		switch {
		case p[i] < other[i]:
			return -1
		case p[i] > other[i]:
			return 1
		}
	}
	switch {
	case len(p) < len(other):
		return -1
	case len(p) > len(other):
		return 1
	default:
		return 0
	}
}

// HasPrefix reports whether prefix addresses p itself or one of its ancestors.
func (p Path) HasPrefix(prefix Path) bool {
	if len(prefix) > len(p) {
		return false
	}
	for i := range prefix {
		if p[i] != prefix[i] {
			return false
		}
	}
	return true
}

// Clone returns an independent copy of the path.
func (p Path) Clone() Path {
	out := make(Path, len(p))
	copy(out, p)
	return out
}

// ParsePath parses the String form of a path. "", "." and "root" address the
// root.
func ParsePath(s string) (Path, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "." || s == "root" {
		return Path{}, nil
	}
	parts := strings.Split(s, ".")
	p := make(Path, len(parts))
	for i, part := range parts {
		idx, err := strconv.Atoi(part)
		if err != nil || idx < 0 {
			return nil, fmt.Errorf("%w: bad path component %q in %q", ErrInvalidIndex, part, s)
		}
		p[i] = idx
	}
	return p, nil
}

// PathOf computes the root-relative path of n by walking its parent links.
//
// Description:
//
//	At each level the index of the previous node inside its parent's child
//	list is recorded. If a claimed parent does not actually contain the
//	child, the structure is corrupt and ErrBrokenPath is returned.
//
// Inputs:
//
//	n - The node to locate. Must not be nil.
//
// Outputs:
//
//	Path - Indices from the top of n's tree down to n.
//	error - Non-nil (wrapping ErrBrokenPath) on structural corruption.
func PathOf(n *Node) (Path, error) {
	var rev []int
	for cur := n; cur.parent != nil; cur = cur.parent {
		idx := cur.parent.indexOf(cur)
		if idx < 0 {
			return nil, fmt.Errorf("%w: %s is not a child of its parent %s",
				ErrBrokenPath, cur.Label(), cur.parent.Label())
		}
		rev = append(rev, idx)
	}
	p := make(Path, len(rev))
	for i, idx := range rev {
		p[len(rev)-1-i] = idx
	}
	return p, nil
}

// Resolve walks down from root following path.
//
// Outputs:
//
//	*Node - The addressed node.
//	error - Non-nil (wrapping ErrInvalidIndex) if an index is out of range or
//	the walk reaches a leaf before the path is exhausted.
func Resolve(root *Node, path Path) (*Node, error) {
	node := root
	for depth, idx := range path {
		if !node.IsSequence() {
			return nil, fmt.Errorf("%w: %s at depth %d is a leaf", ErrInvalidIndex, path.Display(), depth)
		}
		if idx < 0 || idx >= len(node.children) {
			return nil, fmt.Errorf("%w: index %d out of range [0,%d) at depth %d of %s",
				ErrInvalidIndex, idx, len(node.children), depth, path.Display())
		}
		node = node.children[idx]
	}
	return node, nil
}
