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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsAccepted(t *testing.T) {
	root := sample() // OR[a,AND[b,NOT[c]],d]

	tests := []struct {
		name string
		tags TagSet
		want bool
	}{
		{"leaf a", NewTagSet("a"), true},
		{"and without excluded tag", NewTagSet("b"), true},
		{"and with excluded tag", NewTagSet("b", "c"), false},
		{"leaf d", NewTagSet("d"), true},
		{"only excluded tag", NewTagSet("c"), false},
		{"nothing", NewTagSet(), false},
		{"nil set", nil, false},
		{"unrelated", NewTagSet("zzz"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, root.IsAccepted(tt.tags))
		})
	}
}

func TestIsAccepted_EmptySequences(t *testing.T) {
	tags := NewTagSet("a")
	assert.False(t, NewOr().IsAccepted(tags), "empty OR accepts nothing")
	assert.True(t, NewAnd().IsAccepted(tags), "empty AND accepts everything")
	assert.True(t, NewNot(NewOr()).IsAccepted(tags))
	assert.False(t, NewNot(NewAnd()).IsAccepted(tags))
}

func TestIsAccepted_DoubleNegation(t *testing.T) {
	inner := NewAnd(NewLeaf("a"), NewLeaf("b"))
	double := NewNot(NewNot(inner.Clone()))

	for _, tags := range []TagSet{NewTagSet(), NewTagSet("a"), NewTagSet("b"), NewTagSet("a", "b")} {
		assert.Equal(t, inner.IsAccepted(tags), double.IsAccepted(tags), "tags %v", tags.Sorted())
	}
}

func TestEvaluate(t *testing.T) {
	data, err := Marshal(sample())
	require.NoError(t, err)

	ok, err := Evaluate(data, NewTagSet("b"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Evaluate(data, NewTagSet("b", "c"))
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = Evaluate([]byte("nope"), NewTagSet("a"))
	assert.ErrorIs(t, err, ErrDecode)
}

func TestNode_Tags(t *testing.T) {
	root := NewOr(NewLeaf("b"), NewAnd(NewLeaf("a"), NewLeaf("b")), NewNot(NewLeaf("c")))
	assert.Equal(t, []string{"a", "b", "c"}, root.Tags())
}

func TestFilterByAllowedTags(t *testing.T) {
	tests := []struct {
		name    string
		allowed TagSet
		policy  FilterPolicy
		want    string
		kept    bool
	}{
		{"drops negation of disallowed tag", NewTagSet("a", "b"), PruneEmpty, "OR[a,AND[b]]", true},
		{"keeps allowed negation", NewTagSet("c"), PruneEmpty, "OR[AND[NOT[c]]]", true},
		{"prunes emptied sequence", NewTagSet("a"), PruneEmpty, "OR[a]", true},
		{"keeps emptied sequence", NewTagSet("a"), KeepEmpty, "OR[a,AND[]]", true},
		{"everything filtered", NewTagSet(), PruneEmpty, "OR[]", false},
		{"everything allowed", NewTagSet("a", "b", "c", "d"), PruneEmpty, "OR[a,AND[b,NOT[c]],d]", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := sample()
			kept := root.FilterByAllowedTagsWithPolicy(tt.allowed, tt.policy)
			assert.Equal(t, tt.want, root.String())
			assert.Equal(t, tt.kept, kept)
			require.NoError(t, root.Validate())
		})
	}
}

func TestFilterByAllowedTags_DefaultPolicyPrunes(t *testing.T) {
	root := NewOr(NewAnd(NewLeaf("x")), NewLeaf("y"))
	assert.True(t, root.FilterByAllowedTags(NewTagSet("y")))
	assert.Equal(t, "OR[y]", root.String())

	leaf := NewLeaf("x")
	assert.True(t, leaf.FilterByAllowedTags(NewTagSet("x")))
	assert.False(t, leaf.FilterByAllowedTags(NewTagSet("y")))

	not := NewNot(NewAnd(NewLeaf("x"), NewLeaf("y")))
	assert.True(t, not.FilterByAllowedTags(NewTagSet("y")))
	assert.Equal(t, "NOT[AND[y]]", not.String())
	assert.False(t, not.FilterByAllowedTags(NewTagSet("z")))
}

func TestFilterPolicy_String(t *testing.T) {
	assert.Equal(t, "prune-empty", PruneEmpty.String())
	assert.Equal(t, "keep-empty", KeepEmpty.String())
}
