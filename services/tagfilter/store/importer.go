// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/AleutianAI/tagfilter/services/tagfilter"
)

// DocumentExtensions are the file extensions treated as YAML filter
// documents.
var DocumentExtensions = []string{".yaml", ".yml"}

// IsDocument reports whether path has a filter document extension.
func IsDocument(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range DocumentExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// NameFromPath derives a filter name from a document file name:
// "/etc/filters/inbox.yaml" becomes "inbox".
func NameFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ImportFile reads a YAML filter document and stores it.
//
// Inputs:
//
//	ctx - Context for tracing and cancellation.
//	path - The document file.
//	name - Filter name. Empty derives it with NameFromPath.
//
// Outputs:
//
//	Info - The stored entry.
//	error - Read, decode (wrapping tagfilter.ErrDecode) or storage error.
func (s *Store) ImportFile(ctx context.Context, path, name string) (Info, error) {
	if name == "" {
		name = NameFromPath(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Info{}, fmt.Errorf("import %s: %w", path, err)
	}
	root, err := tagfilter.UnmarshalDocument(data)
	if err != nil {
		return Info{}, fmt.Errorf("import %s: %w", path, err)
	}
	if root.Kind() != tagfilter.KindOr {
		root = tagfilter.NewOr(root)
	}
	return s.Save(ctx, name, root)
}

// ExportFile writes the filter stored under name as a YAML document.
func (s *Store) ExportFile(ctx context.Context, name, path string) error {
	root, err := s.Load(ctx, name)
	if err != nil {
		return err
	}
	data, err := tagfilter.MarshalDocument(root)
	if err != nil {
		return fmt.Errorf("export %s: %w", name, err)
	}
	if err := os.WriteFile(path, data, 0640); err != nil {
		return fmt.Errorf("export %s: %w", name, err)
	}
	return nil
}
