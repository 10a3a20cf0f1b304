// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTag(t *testing.T) {
	tests := []struct {
		name    string
		tag     string
		wantErr bool
	}{
		{"simple", "urgent", false},
		{"single char", "a", false},
		{"inner space", "needs review", false},
		{"punctuation", "team/backend:p1", false},
		{"unicode", "müll-🗑", false},
		{"max length", strings.Repeat("x", MaxTagLength), false},

		{"empty", "", true},
		{"too long", strings.Repeat("x", MaxTagLength+1), true},
		{"newline", "bug\nurgent", true},
		{"carriage return", "bug\r", true},
		{"tab", "a\tb", true},
		{"nul", "a\x00b", true},
		{"leading space", " a", true},
		{"trailing space", "a ", true},
		{"only space", "   ", true},
		{"invalid utf8", "a\xffb", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTag(tt.tag)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTag)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateTags(t *testing.T) {
	assert.NoError(t, ValidateTags(nil))
	assert.NoError(t, ValidateTags([]string{"a", "b c"}))

	err := ValidateTags([]string{"ok", "", "x\ny"})
	require.ErrorIs(t, err, ErrInvalidTag)
	assert.Contains(t, err.Error(), `"", "x\ny"`)
}

func TestSanitizeTag(t *testing.T) {
	got, err := SanitizeTag("  urgent \n")
	require.NoError(t, err)
	assert.Equal(t, "urgent", got)

	_, err = SanitizeTag(" \t ")
	assert.ErrorIs(t, err, ErrInvalidTag)
}
