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

// Kind identifies the variant of a Node.
type Kind uint8

const (
	// KindLeaf matches a single tag name. Leaves have no children.
	KindLeaf Kind = iota + 1

	// KindOr is accepted when any child is accepted.
	KindOr

	// KindAnd is accepted when every child is accepted.
	KindAnd

	// KindNot wraps exactly one child and inverts it.
	KindNot
)

// String returns the operator label used in tree dumps ("OR", "AND", "NOT")
// or "LEAF".
func (k Kind) String() string {
	switch k {
	case KindLeaf:
		return "LEAF"
	case KindOr:
		return "OR"
	case KindAnd:
		return "AND"
	case KindNot:
		return "NOT"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// IsSequence reports whether nodes of this kind own children.
func (k Kind) IsSequence() bool {
	switch k {
	case KindOr, KindAnd, KindNot:
		return true
	default:
		return false
	}
}

// ParseKind converts an operator label ("or", "AND", "not", "leaf") to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "leaf", "LEAF", "tag", "TAG":
		return KindLeaf, nil
	case "or", "OR":
		return KindOr, nil
	case "and", "AND":
		return KindAnd, nil
	case "not", "NOT":
		return KindNot, nil
	default:
		return 0, fmt.Errorf("%w: unknown node kind %q", ErrTypeMismatch, s)
	}
}

func (k Kind) valid() bool {
	return k >= KindLeaf && k <= KindNot
}
