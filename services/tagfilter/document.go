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
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document is the human-editable form of a filter, used for YAML files and
// JSON API bodies.
//
// Example:
//
//	kind: or
//	children:
//	  - kind: leaf
//	    tag: urgent
//	  - kind: and
//	    children:
//	      - {kind: leaf, tag: bug}
//	      - kind: not
//	        children:
//	          - {kind: leaf, tag: wontfix}
type Document struct {
	Kind     string     `yaml:"kind" json:"kind"`
	Tag      string     `yaml:"tag,omitempty" json:"tag,omitempty"`
	Children []Document `yaml:"children,omitempty" json:"children,omitempty"`
}

// ToDocument converts the subtree rooted at n.
func ToDocument(n *Node) Document {
	doc := Document{Kind: strings.ToLower(n.kind.String())}
	if n.kind == KindLeaf {
		doc.Tag = n.tag
		return doc
	}
	if len(n.children) > 0 {
		doc.Children = make([]Document, len(n.children))
		for i, c := range n.children {
			doc.Children[i] = ToDocument(c)
		}
	}
	return doc
}

// Node builds a detached tree from the document.
//
// The same structural checks as Unmarshal apply; failures wrap ErrDecode and
// name the path of the offending entry.
func (d Document) Node() (*Node, error) {
	return d.build(Path{}, 0)
}

func (d Document) build(at Path, depth int) (*Node, error) {
	if depth > MaxDepth {
		return nil, fmt.Errorf("%w: at %s: nesting deeper than %d", ErrDecode, at.Display(), MaxDepth)
	}
	kind, err := ParseKind(d.Kind)
	if err != nil {
		return nil, fmt.Errorf("%w: at %s: %v", ErrDecode, at.Display(), err)
	}

	if kind == KindLeaf {
		if d.Tag == "" {
			return nil, fmt.Errorf("%w: at %s: %v", ErrDecode, at.Display(), ErrEmptyTag)
		}
		if len(d.Children) > 0 {
			return nil, fmt.Errorf("%w: at %s: leaf %q has children", ErrDecode, at.Display(), d.Tag)
		}
		return NewLeaf(d.Tag), nil
	}
	if d.Tag != "" {
		return nil, fmt.Errorf("%w: at %s: %s node has a tag", ErrDecode, at.Display(), kind)
	}
	if kind == KindNot && len(d.Children) != 1 {
		return nil, fmt.Errorf("%w: at %s: NOT must have exactly one child, got %d",
			ErrDecode, at.Display(), len(d.Children))
	}

	children := make([]*Node, 0, len(d.Children))
	tags := make(map[string]struct{})
	for i, cd := range d.Children {
		childAt := append(at.Clone(), i)
		c, err := cd.build(childAt, depth+1)
		if err != nil {
			return nil, err
		}
		if c.kind == KindLeaf {
			if _, dup := tags[c.tag]; dup {
				return nil, fmt.Errorf("%w: at %s: duplicate sibling tag %q", ErrDecode, childAt.Display(), c.tag)
			}
			tags[c.tag] = struct{}{}
		}
		children = append(children, c)
	}
	return newSequence(kind, children), nil
}

// MarshalDocument renders the subtree rooted at n as YAML.
func MarshalDocument(n *Node) ([]byte, error) {
	if err := n.Validate(); err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	return yaml.Marshal(ToDocument(n))
}

// UnmarshalDocument parses a YAML filter document.
func UnmarshalDocument(data []byte) (*Node, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return doc.Node()
}
