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

import "sort"

// PickIndependentSelection reduces a selection to the nodes that are not
// inside another selected node, ordered by path.
//
// Description:
//
//	Selecting a subtree together with some of its descendants means "the
//	subtree"; the descendants would travel with it anyway. Duplicates are
//	dropped. The result is sorted by path (pre-order), which is the order
//	a drag payload lists them in.
//
// Inputs:
//
//	nodes - Nodes of this tree, in any order.
//
// Outputs:
//
//	[]*Node - The independent subset, sorted by path.
//	error - ErrBrokenPath if a node does not belong to this tree.
func (t *Tree) PickIndependentSelection(nodes []*Node) ([]*Node, error) {
	const op = "select"
	for _, n := range nodes {
		if _, err := t.owned(op, n); err != nil {
			return nil, err
		}
	}
	return sortByPath(independent(nodes)), nil
}

// independent drops duplicates and nodes that have a selected ancestor,
// keeping the supplied order of the survivors.
func independent(nodes []*Node) []*Node {
	nodes = dedupe(nodes)
	selected := make(map[*Node]struct{}, len(nodes))
	for _, n := range nodes {
		selected[n] = struct{}{}
	}
	out := make([]*Node, 0, len(nodes))
	for _, n := range nodes {
		covered := false
		for p := n.parent; p != nil; p = p.parent {
			if _, ok := selected[p]; ok {
				covered = true
				break
			}
		}
		if !covered {
			out = append(out, n)
		}
	}
	return out
}

// sortByPath returns nodes ordered by their current paths.
func sortByPath(nodes []*Node) []*Node {
	type keyed struct {
		node *Node
		path Path
	}
	ks := make([]keyed, len(nodes))
	for i, n := range nodes {
		p, err := PathOf(n)
		if err != nil {
			p = nil
		}
		ks[i] = keyed{node: n, path: p}
	}
	sort.SliceStable(ks, func(i, j int) bool {
		return ks[i].path.Compare(ks[j].path) < 0
	})
	out := make([]*Node, len(ks))
	for i, k := range ks {
		out[i] = k.node
	}
	return out
}
