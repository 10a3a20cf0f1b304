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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustLoad(t *testing.T, root *Node) (*Tree, *Recorder) {
	t.Helper()
	rec := &Recorder{}
	tree, err := LoadTree(root, WithObserver(rec))
	require.NoError(t, err)
	return tree, rec
}

func mustNode(t *testing.T, tree *Tree, path string) *Node {
	t.Helper()
	p, err := ParsePath(path)
	require.NoError(t, err)
	n, err := tree.Resolve(p)
	require.NoError(t, err)
	return n
}

func leaves(tags ...string) []*Node {
	out := make([]*Node, len(tags))
	for i, tag := range tags {
		out[i] = NewLeaf(tag)
	}
	return out
}

// assertSiblingTagsUnique checks the duplicate-tag invariant on every node.
func assertSiblingTagsUnique(t *testing.T, tree *Tree) {
	t.Helper()
	require.NoError(t, tree.Root().Validate())
}

func TestNewTree(t *testing.T) {
	tree := NewTree()
	assert.Equal(t, "OR[]", tree.String())
	assert.Nil(t, tree.Root().Parent())
}

func TestLoadTree(t *testing.T) {
	src := sample()
	tree, err := LoadTree(src)
	require.NoError(t, err)
	assert.True(t, src.Equal(tree.Root()))
	assert.NotSame(t, src, tree.Root(), "LoadTree must copy its argument")

	_, err = LoadTree(NewAnd())
	assert.ErrorIs(t, err, ErrTypeMismatch)

	_, err = LoadTree(NewOr(NewLeaf("a"), NewLeaf("a")))
	assert.ErrorIs(t, err, ErrDuplicateTag)

	tree, err = LoadTree(nil)
	require.NoError(t, err)
	assert.Equal(t, "OR[]", tree.String())
}

func TestTree_Snapshot(t *testing.T) {
	tree, _ := mustLoad(t, sample())
	snap := tree.Snapshot()
	_, err := tree.InsertLeaf("e", nil, -1)
	require.NoError(t, err)
	assert.Equal(t, "OR[a,AND[b,NOT[c]],d]", snap.String())
}

// =============================================================================
// InsertLeaf
// =============================================================================

func TestInsertLeaf(t *testing.T) {
	tree, rec := mustLoad(t, NewOr(leaves("a", "c")...))

	b, err := tree.InsertLeaf("b", nil, 1)
	require.NoError(t, err)
	assert.Equal(t, "b", b.Tag())
	assert.Equal(t, "OR[a,b,c]", tree.String())

	require.Len(t, rec.Changes, 2)
	assert.Equal(t, ChangeBeginInsert, rec.Changes[0].Kind)
	assert.Equal(t, ChangeEndInsert, rec.Changes[1].Kind)
	assert.Equal(t, "insert", rec.Changes[0].Op)
	assert.Same(t, tree.Root(), rec.Changes[0].Parent)
	assert.Equal(t, Path{}, rec.Changes[0].ParentPath)
	assert.Equal(t, 1, rec.Changes[0].First)
	assert.Equal(t, 1, rec.Changes[0].Last)

	_, err = tree.InsertLeaf("d", nil, -1)
	require.NoError(t, err)
	assert.Equal(t, "OR[a,b,c,d]", tree.String())
}

func TestInsertLeaf_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		tag    string
		parent string
		index  int
		want   error
	}{
		{"duplicate sibling tag", "a", "", -1, ErrDuplicateTag},
		{"empty tag", "", "", -1, ErrEmptyTag},
		{"parent is a leaf", "x", "0", -1, ErrTypeMismatch},
		{"parent is a NOT", "x", "1.1", -1, ErrTypeMismatch},
		{"index past end", "x", "", 4, ErrInvalidIndex},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, rec := mustLoad(t, sample())
			parent := mustNode(t, tree, tt.parent)

			leaf, err := tree.InsertLeaf(tt.tag, parent, tt.index)
			assert.Nil(t, leaf)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, "OR[a,AND[b,NOT[c]],d]", tree.String(), "tree must be unchanged")
			assert.Empty(t, rec.Changes, "no notification on rejection")

			var opErr *OpError
			require.True(t, errors.As(err, &opErr))
			assert.Equal(t, "insert", opErr.Op)
		})
	}
}

func TestInsertLeaf_SameTagInAnotherParent(t *testing.T) {
	tree, _ := mustLoad(t, sample())
	and := mustNode(t, tree, "1")

	_, err := tree.InsertLeaf("a", and, 0)
	require.NoError(t, err)
	assert.Equal(t, "OR[a,AND[a,b,NOT[c]],d]", tree.String())
}

func TestInsertLeaf_ForeignNode(t *testing.T) {
	tree, _ := mustLoad(t, sample())
	other, _ := mustLoad(t, sample())

	_, err := tree.InsertLeaf("x", mustNode(t, other, "1"), -1)
	assert.ErrorIs(t, err, ErrBrokenPath)
}

// =============================================================================
// RemoveMany
// =============================================================================

func TestRemoveMany_Scenario(t *testing.T) {
	tree, rec := mustLoad(t, NewOr(leaves("x", "y", "z")...))

	removed, err := tree.RemoveMany([]*Node{mustNode(t, tree, "1")})
	require.NoError(t, err)
	require.Len(t, removed, 1)
	assert.Equal(t, "y", removed[0].Tag())
	assert.Nil(t, removed[0].Parent())
	assert.Equal(t, "OR[x,z]", tree.String())
	assert.Equal(t, []ChangeKind{ChangeBeginRemove, ChangeEndRemove}, rec.Kinds())
}

func TestRemoveMany_DescendingOrder(t *testing.T) {
	tree, rec := mustLoad(t, NewOr(leaves("a", "b", "c", "d", "e")...))

	a, c, e := mustNode(t, tree, "0"), mustNode(t, tree, "2"), mustNode(t, tree, "4")
	removed, err := tree.RemoveMany([]*Node{c, a, e})
	require.NoError(t, err)
	assert.Equal(t, "OR[b,d]", tree.String())
	assert.Equal(t, []*Node{a, c, e}, removed, "returned in sibling order")

	var firsts []int
	for _, ch := range rec.Changes {
		if ch.Kind == ChangeBeginRemove {
			firsts = append(firsts, ch.First)
		}
	}
	assert.Equal(t, []int{4, 2, 0}, firsts)
}

func TestRemoveMany_RootRejected(t *testing.T) {
	tree, rec := mustLoad(t, sample())

	_, err := tree.RemoveMany([]*Node{tree.Root()})
	assert.ErrorIs(t, err, ErrInvalidIndex)
	assert.Equal(t, "OR[a,AND[b,NOT[c]],d]", tree.String())
	assert.Empty(t, rec.Changes)
}

func TestRemoveMany_Rejections(t *testing.T) {
	tree, rec := mustLoad(t, sample())

	_, err := tree.RemoveMany(nil)
	assert.ErrorIs(t, err, ErrInvalidIndex)

	_, err = tree.RemoveMany([]*Node{mustNode(t, tree, "0"), mustNode(t, tree, "1.0")})
	assert.ErrorIs(t, err, ErrCrossParent)

	_, err = tree.RemoveMany([]*Node{NewLeaf("stray")})
	assert.ErrorIs(t, err, ErrBrokenPath)

	assert.Equal(t, "OR[a,AND[b,NOT[c]],d]", tree.String())
	assert.Empty(t, rec.Changes)
}

func TestRemoveMany_NegatedContentRemovesNegation(t *testing.T) {
	tree, _ := mustLoad(t, sample())

	removed, err := tree.RemoveMany([]*Node{mustNode(t, tree, "1.1.0")})
	require.NoError(t, err)
	require.Len(t, removed, 1)
	assert.Equal(t, KindNot, removed[0].Kind())
	assert.Equal(t, "OR[a,AND[b],d]", tree.String())
}

func TestRemoveMany_NestedSelection(t *testing.T) {
	tree, _ := mustLoad(t, sample())

	_, err := tree.RemoveMany([]*Node{mustNode(t, tree, "1.0"), mustNode(t, tree, "1"), mustNode(t, tree, "1")})
	require.NoError(t, err)
	assert.Equal(t, "OR[a,d]", tree.String())
}

// =============================================================================
// Merge
// =============================================================================

func TestMerge_Scenario(t *testing.T) {
	tree, _ := mustLoad(t, NewOr(leaves("a", "b")...))

	and, err := tree.Merge(KindAnd, []*Node{mustNode(t, tree, "0"), mustNode(t, tree, "1")})
	require.NoError(t, err)
	assert.Equal(t, KindAnd, and.Kind())
	assert.Equal(t, "OR[AND[a,b]]", tree.String())

	assert.False(t, tree.Root().IsAccepted(NewTagSet("a")))
	assert.True(t, tree.Root().IsAccepted(NewTagSet("a", "b")))
}

func TestMerge_KeepsOriginalOrderAndEarliestPosition(t *testing.T) {
	tree, rec := mustLoad(t, NewOr(leaves("a", "b", "c", "d")...))

	d, b := mustNode(t, tree, "3"), mustNode(t, tree, "1")
	or, err := tree.Merge(KindOr, []*Node{d, b})
	require.NoError(t, err)
	assert.Equal(t, "OR[a,OR[b,d],c]", tree.String())
	assert.Same(t, tree.Root(), or.Parent())

	last := rec.Changes[len(rec.Changes)-1]
	assert.Equal(t, ChangeEndInsert, last.Kind)
	assert.Equal(t, 1, last.First)
	assertSiblingTagsUnique(t, tree)
}

func TestMerge_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		kind  Kind
		paths []string
		want  error
	}{
		{"empty set", KindAnd, nil, ErrInvalidIndex},
		{"root", KindAnd, []string{""}, ErrInvalidIndex},
		{"different parents", KindAnd, []string{"0", "1.0"}, ErrCrossParent},
		{"NOT is not a merge kind", KindNot, []string{"0"}, ErrTypeMismatch},
		{"leaf is not a merge kind", KindLeaf, []string{"0"}, ErrTypeMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, rec := mustLoad(t, sample())
			var nodes []*Node
			for _, p := range tt.paths {
				nodes = append(nodes, mustNode(t, tree, p))
			}
			_, err := tree.Merge(tt.kind, nodes)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, "OR[a,AND[b,NOT[c]],d]", tree.String())
			assert.Empty(t, rec.Changes)
		})
	}
}

// =============================================================================
// Negate
// =============================================================================

func TestNegate_Involution(t *testing.T) {
	tree, _ := mustLoad(t, sample())
	and := mustNode(t, tree, "1")
	before := and.Clone()

	not, err := tree.Negate(and)
	require.NoError(t, err)
	assert.Equal(t, KindNot, not.Kind())
	assert.Equal(t, "OR[a,NOT[AND[b,NOT[c]]],d]", tree.String())

	back, err := tree.Negate(not)
	require.NoError(t, err)
	assert.Same(t, and, back)
	assert.True(t, before.Equal(back))
	assert.Equal(t, "OR[a,AND[b,NOT[c]],d]", tree.String())
}

func TestNegate_Leaf(t *testing.T) {
	tree, rec := mustLoad(t, sample())

	_, err := tree.Negate(mustNode(t, tree, "2"))
	require.NoError(t, err)
	assert.Equal(t, "OR[a,AND[b,NOT[c]],NOT[d]]", tree.String())
	assert.Equal(t, []ChangeKind{ChangeBeginRemove, ChangeEndRemove, ChangeBeginInsert, ChangeEndInsert}, rec.Kinds())
	for _, c := range rec.Changes {
		assert.Equal(t, 2, c.First)
	}
}

func TestNegate_UnwrapNestedNot(t *testing.T) {
	tree, _ := mustLoad(t, sample())

	c, err := tree.Negate(mustNode(t, tree, "1.1"))
	require.NoError(t, err)
	assert.Equal(t, "c", c.Tag())
	assert.Equal(t, "OR[a,AND[b,c],d]", tree.String())
}

func TestNegateAndMerge_UnderNotStayValid(t *testing.T) {
	tests := []struct {
		name    string
		root    func() *Node
		path    string
		edit    func(tree *Tree, n *Node) error
		want    string
		holder  string
		holdRow int
	}{
		{
			name: "negate content of NOT",
			root: sample,
			path: "1.1.0",
			edit: func(tree *Tree, n *Node) error {
				_, err := tree.Negate(n)
				return err
			},
			want:    "OR[a,AND[b,NOT[NOT[c]]],d]",
			holder:  "1",
			holdRow: 1,
		},
		{
			name: "unwrap NOT inside NOT",
			root: func() *Node { return NewOr(NewNot(NewNot(NewLeaf("x")))) },
			path: "0.0",
			edit: func(tree *Tree, n *Node) error {
				_, err := tree.Negate(n)
				return err
			},
			want:    "OR[NOT[x]]",
			holder:  "",
			holdRow: 0,
		},
		{
			name: "negate below a chain of NOTs",
			root: func() *Node { return NewOr(NewLeaf("a"), NewNot(NewNot(NewLeaf("x")))) },
			path: "1.0.0",
			edit: func(tree *Tree, n *Node) error {
				_, err := tree.Negate(n)
				return err
			},
			want:    "OR[a,NOT[NOT[NOT[x]]]]",
			holder:  "",
			holdRow: 1,
		},
		{
			name: "merge content of NOT",
			root: sample,
			path: "1.1.0",
			edit: func(tree *Tree, n *Node) error {
				_, err := tree.Merge(KindAnd, []*Node{n})
				return err
			},
			want:    "OR[a,AND[b,NOT[AND[c]]],d]",
			holder:  "1",
			holdRow: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, rec := mustLoad(t, tt.root())
			var invalid []string
			tree.Observe(ObserverFunc(func(c Change) {
				if err := tree.Root().Validate(); err != nil {
					invalid = append(invalid, c.Kind.String()+": "+err.Error())
				}
			}))

			require.NoError(t, tt.edit(tree, mustNode(t, tree, tt.path)))
			assert.Empty(t, invalid)
			assert.Equal(t, tt.want, tree.String())
			require.NoError(t, tree.Root().Validate())

			require.Equal(t, []ChangeKind{ChangeBeginRemove, ChangeEndRemove, ChangeBeginInsert, ChangeEndInsert}, rec.Kinds())
			holder := mustNode(t, tree, tt.holder)
			for _, c := range rec.Changes {
				assert.Same(t, holder, c.Parent)
				assert.Equal(t, tt.holdRow, c.First)
				assert.Equal(t, tt.holdRow, c.Last)
			}
		})
	}
}

func TestNegate_Rejections(t *testing.T) {
	tree, _ := mustLoad(t, NewOr(NewLeaf("a"), NewNot(NewLeaf("a"))))

	_, err := tree.Negate(mustNode(t, tree, "1"))
	assert.ErrorIs(t, err, ErrDuplicateTag)
	assert.Equal(t, "OR[a,NOT[a]]", tree.String())

	_, err = tree.Negate(tree.Root())
	assert.ErrorIs(t, err, ErrInvalidIndex)
}

// =============================================================================
// FilterTags, Reset
// =============================================================================

func TestFilterTags(t *testing.T) {
	tree, rec := mustLoad(t, sample())

	removed, err := tree.FilterTags(NewTagSet("a"), PruneEmpty)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Equal(t, "OR[a]", tree.String())
	assert.Len(t, rec.Changes, 4)
	for i := 0; i < len(rec.Changes); i += 2 {
		assert.Equal(t, ChangeBeginRemove, rec.Changes[i].Kind)
		assert.Equal(t, ChangeEndRemove, rec.Changes[i+1].Kind)
	}
}

func TestFilterTags_RootSurvives(t *testing.T) {
	tree, _ := mustLoad(t, sample())

	_, err := tree.FilterTags(NewTagSet(), PruneEmpty)
	require.NoError(t, err)
	assert.Equal(t, "OR[]", tree.String())

	tree, _ = mustLoad(t, sample())
	_, err = tree.FilterTags(NewTagSet("a"), KeepEmpty)
	require.NoError(t, err)
	assert.Equal(t, "OR[a,AND[]]", tree.String())
}

func TestReset(t *testing.T) {
	tree, rec := mustLoad(t, sample())
	root := tree.Root()

	require.NoError(t, tree.Reset(NewOr(leaves("x", "y")...)))
	assert.Same(t, root, tree.Root())
	assert.Equal(t, "OR[x,y]", tree.String())
	assert.Equal(t, []ChangeKind{ChangeBeginRemove, ChangeEndRemove, ChangeBeginInsert, ChangeEndInsert}, rec.Kinds())
	assert.Equal(t, 2, rec.Changes[0].Last)
	assert.Equal(t, 1, rec.Changes[2].Last)

	err := tree.Reset(NewNot(NewLeaf("x")))
	assert.ErrorIs(t, err, ErrTypeMismatch)
	assert.Equal(t, "OR[x,y]", tree.String())
}

// =============================================================================
// Notifications
// =============================================================================

func TestNotifications_BeginBeforeMutation(t *testing.T) {
	tree := NewTree()
	var seen []string
	tree.Observe(ObserverFunc(func(c Change) {
		seen = append(seen, c.Kind.String()+":"+tree.String())
	}))

	_, err := tree.InsertLeaf("a", nil, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"begin_insert:OR[]", "end_insert:OR[a]"}, seen)
}

func TestNotifications_ReentrantMutationRejected(t *testing.T) {
	tree := NewTree()
	var inner error
	tree.Observe(ObserverFunc(func(c Change) {
		if c.Kind == ChangeBeginInsert {
			_, inner = tree.InsertLeaf("nested", nil, -1)
		}
	}))

	_, err := tree.InsertLeaf("a", nil, -1)
	require.NoError(t, err)
	assert.ErrorIs(t, inner, ErrReentrant)
	assert.Equal(t, "OR[a]", tree.String())

	_, err = tree.InsertLeaf("b", nil, -1)
	assert.NoError(t, err, "guard must be released after notification")
}

func TestObserve_Cancel(t *testing.T) {
	tree := NewTree()
	rec := &Recorder{}
	cancel := tree.Observe(rec)

	_, err := tree.InsertLeaf("a", nil, -1)
	require.NoError(t, err)
	cancel()
	_, err = tree.InsertLeaf("b", nil, -1)
	require.NoError(t, err)

	assert.Len(t, rec.Changes, 2)
}

func TestPickIndependentSelection(t *testing.T) {
	tree, _ := mustLoad(t, sample())
	a, and, b, not, c := mustNode(t, tree, "0"), mustNode(t, tree, "1"), mustNode(t, tree, "1.0"),
		mustNode(t, tree, "1.1"), mustNode(t, tree, "1.1.0")

	got, err := tree.PickIndependentSelection([]*Node{c, b, and, a, not, a})
	require.NoError(t, err)
	assert.Equal(t, []*Node{a, and}, got)

	got, err = tree.PickIndependentSelection([]*Node{c, b})
	require.NoError(t, err)
	assert.Equal(t, []*Node{b, c}, got)

	_, err = tree.PickIndependentSelection([]*Node{NewLeaf("stray")})
	assert.ErrorIs(t, err, ErrBrokenPath)
}

func TestReason(t *testing.T) {
	tree, _ := mustLoad(t, sample())

	_, err := tree.InsertLeaf("a", nil, -1)
	assert.Equal(t, "DUPLICATE_TAG", Reason(err))
	assert.Equal(t, "OK", Reason(nil))
	assert.Equal(t, "INTERNAL", Reason(errors.New("boom")))
	assert.Equal(t, "DECODE_ERROR", Reason(&DecodeError{Offset: 3, Reason: "x"}))
}
