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

// FilterPolicy decides what happens to an OR or AND child that has no
// children left after tag filtering.
type FilterPolicy int

const (
	// PruneEmpty removes an OR/AND child emptied by filtering.
	PruneEmpty FilterPolicy = iota

	// KeepEmpty retains an OR/AND child even when it ends up empty.
	KeepEmpty
)

// String returns "prune-empty" or "keep-empty".
func (p FilterPolicy) String() string {
	if p == KeepEmpty {
		return "keep-empty"
	}
	return "prune-empty"
}

// FilterByAllowedTags prunes every leaf whose tag is not in allowed, using
// the PruneEmpty policy.
//
// It reports whether anything survived: for a leaf, whether its tag is
// allowed; for an operator, whether it still has children. The receiver
// itself is never detached; its caller decides what to do with it.
func (n *Node) FilterByAllowedTags(allowed TagSet) bool {
	return n.FilterByAllowedTagsWithPolicy(allowed, PruneEmpty)
}

// FilterByAllowedTagsWithPolicy is FilterByAllowedTags with an explicit
// empty-sequence policy.
//
// A NOT whose content is pruned is always pruned with it, because a NOT
// must own exactly one child.
func (n *Node) FilterByAllowedTagsWithPolicy(allowed TagSet, policy FilterPolicy) bool {
	keep := make(map[*Node]bool)
	planFilter(n, allowed, policy, keep)
	applyFilter(n, keep, nil)
	switch n.kind {
	case KindLeaf, KindNot:
		return keep[n]
	default:
		return len(n.children) > 0
	}
}

// planFilter records, for every node of the subtree, whether its parent
// should keep it. Nothing is mutated.
func planFilter(n *Node, allowed TagSet, policy FilterPolicy, keep map[*Node]bool) bool {
	var k bool
	switch n.kind {
	case KindLeaf:
		k = allowed.Has(n.tag)
	case KindNot:
		k = len(n.children) == 1 && planFilter(n.children[0], allowed, policy, keep)
	case KindOr, KindAnd:
		survivors := 0
		for _, c := range n.children {
			if planFilter(c, allowed, policy, keep) {
				survivors++
			}
		}
		k = survivors > 0 || policy == KeepEmpty
	}
	keep[n] = k
	return k
}

// applyFilter detaches the children planFilter marked for removal, walking
// each child list from the back so earlier indices stay valid. remove, when
// non-nil, performs the detach; the engine uses it to announce changes.
func applyFilter(n *Node, keep map[*Node]bool, remove func(parent *Node, index int)) {
	if n.kind == KindNot {
		// A kept NOT has kept content; a dropped NOT is detached whole.
		if len(n.children) == 1 && keep[n.children[0]] {
			applyFilter(n.children[0], keep, remove)
		}
		return
	}
	for i := len(n.children) - 1; i >= 0; i-- {
		c := n.children[i]
		if !keep[c] {
			if remove != nil {
				remove(n, i)
			} else {
				n.removeChildAt(i)
			}
			continue
		}
		applyFilter(c, keep, remove)
	}
}
