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

// TagSet is the set of tags a candidate item carries.
type TagSet map[string]struct{}

// NewTagSet builds a TagSet from tag names. Duplicates collapse.
func NewTagSet(tags ...string) TagSet {
	s := make(TagSet, len(tags))
	for _, t := range tags {
		s[t] = struct{}{}
	}
	return s
}

// Has reports whether tag is in the set. A nil set contains nothing.
func (s TagSet) Has(tag string) bool {
	_, ok := s[tag]
	return ok
}

// Sorted returns the tags in lexical order.
func (s TagSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// IsAccepted evaluates the subtree rooted at n against tags.
//
// Description:
//
//	A leaf accepts when its tag is in the set. OR accepts when any child
//	accepts and AND when every child accepts, both short-circuiting. NOT
//	inverts its single child. An empty OR never accepts; an empty AND
//	always accepts.
func (n *Node) IsAccepted(tags TagSet) bool {
	switch n.kind {
	case KindLeaf:
		return tags.Has(n.tag)
	case KindOr:
		for _, c := range n.children {
			if c.IsAccepted(tags) {
				return true
			}
		}
		return false
	case KindAnd:
		for _, c := range n.children {
			if !c.IsAccepted(tags) {
				return false
			}
		}
		return true
	case KindNot:
		// An empty NOT can only come from an unvalidated detached node; it
		// behaves like NOT of an empty OR.
		if len(n.children) == 0 {
			return true
		}
		return !n.children[0].IsAccepted(tags)
	default:
		return false
	}
}

// Evaluate decodes a serialized filter and evaluates it against tags.
//
// It lets a persisted filter be applied without building an editing Tree.
func Evaluate(data []byte, tags TagSet) (bool, error) {
	root, err := Unmarshal(data)
	if err != nil {
		return false, err
	}
	return root.IsAccepted(tags), nil
}

// Tags returns the distinct leaf tags referenced by the subtree, sorted.
func (n *Node) Tags() []string {
	set := make(TagSet)
	var walk func(*Node)
	walk = func(x *Node) {
		if x.kind == KindLeaf {
			set[x.tag] = struct{}{}
			return
		}
		for _, c := range x.children {
			walk(c)
		}
	}
	walk(n)
	return set.Sorted()
}
