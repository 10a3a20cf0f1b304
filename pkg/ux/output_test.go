// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/tagfilter/services/tagfilter"
)

func TestPrinter_Plain(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)
	assert.False(t, p.Styled())

	p.Title("Filters")
	p.Success("saved %s", "inbox")
	p.Warning("unsaved edits")
	p.Error("failed: %d", 3)
	p.Println("plain")

	assert.Equal(t, "Filters\nOK: saved inbox\nWARN: unsaved edits\nERROR: failed: 3\nplain\n", buf.String())
}

func TestIsTerminal_RegularFile(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "out"))
	require.NoError(t, err)
	defer f.Close()

	assert.False(t, IsTerminal(f))
	assert.False(t, IsTerminal(nil))
	assert.False(t, NewPrinter(f).Styled())
}

func TestIcon_Render(t *testing.T) {
	assert.Contains(t, IconSuccess.Render(), string(IconSuccess))
	assert.Equal(t, string(IconArrow), IconArrow.Render())
}

func TestRenderTree_Plain(t *testing.T) {
	root := tagfilter.NewOr(
		tagfilter.NewLeaf("urgent"),
		tagfilter.NewAnd(tagfilter.NewLeaf("bug"), tagfilter.NewNot(tagfilter.NewLeaf("wontfix"))),
	)

	want := "OR\n" +
		"├── [0] urgent\n" +
		"└── [1] AND\n" +
		"    ├── [1.0] bug\n" +
		"    └── [1.1] NOT\n" +
		"        └── [1.1.0] wontfix\n"
	assert.Equal(t, want, RenderTree(root, false))
}

func TestRenderTree_Empty(t *testing.T) {
	assert.Equal(t, "OR\n", RenderTree(tagfilter.NewOr(), false))
}

func TestRenderTree_StyledKeepsText(t *testing.T) {
	out := RenderTree(tagfilter.NewOr(tagfilter.NewLeaf("a")), true)
	assert.Contains(t, out, "OR")
	assert.Contains(t, out, "[0]")
	assert.Contains(t, out, "a")
}
