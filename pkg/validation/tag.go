// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation checks user-provided tag names at the input surfaces
// (HTTP API and CLI) before they reach a filter.
//
// The engine accepts any non-empty tag. Tags typed by users additionally
// must survive the line-oriented plain text drag payload and read well in
// logs, so control characters (including newlines) are refused.
package validation

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxTagLength is the longest accepted tag in bytes.
const MaxTagLength = 256

// ErrInvalidTag indicates a tag that fails ValidateTag.
var ErrInvalidTag = errors.New("invalid tag")

// ValidateTag validates one tag name.
//
// Valid tags:
//   - 1-256 bytes of valid UTF-8
//   - no control characters (newline, tab, NUL, ...)
//   - no leading or trailing white space
//
// Example:
//
//	if err := validation.ValidateTag(req.Tag); err != nil {
//	    return fmt.Errorf("insert: %w", err)
//	}
func ValidateTag(tag string) error {
	switch {
	case tag == "":
		return fmt.Errorf("%w: tag cannot be empty", ErrInvalidTag)
	case len(tag) > MaxTagLength:
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrInvalidTag, len(tag), MaxTagLength)
	case !utf8.ValidString(tag):
		return fmt.Errorf("%w: %q is not valid UTF-8", ErrInvalidTag, tag)
	case strings.TrimSpace(tag) != tag:
		return fmt.Errorf("%w: %q has surrounding white space", ErrInvalidTag, tag)
	}
	if i := strings.IndexFunc(tag, unicode.IsControl); i >= 0 {
		return fmt.Errorf("%w: %q has a control character at byte %d", ErrInvalidTag, tag, i)
	}
	return nil
}

// ValidateTags validates multiple tags.
// Returns an error listing all invalid tags if any fail validation.
func ValidateTags(tags []string) error {
	var invalid []string
	for _, t := range tags {
		if err := ValidateTag(t); err != nil {
			invalid = append(invalid, fmt.Sprintf("%q", t))
		}
	}
	if len(invalid) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidTag, strings.Join(invalid, ", "))
	}
	return nil
}

// SanitizeTag trims surrounding white space and validates the result.
//
//	tag, err := validation.SanitizeTag(" urgent ") // "urgent", nil
func SanitizeTag(tag string) (string, error) {
	trimmed := strings.TrimSpace(tag)
	if err := ValidateTag(trimmed); err != nil {
		return "", err
	}
	return trimmed, nil
}
