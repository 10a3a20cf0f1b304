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
	"strings"

	"github.com/AleutianAI/tagfilter/services/tagfilter"
)

// RenderTree draws a filter as an indented tree, one node per line, each
// prefixed with its path:
//
//	OR
//	├── [0] urgent
//	└── [1] AND
//	    ├── [1.0] bug
//	    └── [1.1] NOT
//	        └── [1.1.0] wontfix
//
// With styled set, operators, negations, tags and branch lines are colored.
func RenderTree(root *tagfilter.Node, styled bool) string {
	var sb strings.Builder
	sb.WriteString(nodeLabel(root, styled))
	sb.WriteByte('\n')
	renderChildren(&sb, root, nil, "", styled)
	return sb.String()
}

func renderChildren(sb *strings.Builder, n *tagfilter.Node, path tagfilter.Path, indent string, styled bool) {
	children := n.Children()
	for i, c := range children {
		last := i == len(children)-1
		branch, next := "├── ", "│   "
		if last {
			branch, next = "└── ", "    "
		}
		childPath := append(path.Clone(), i)

		sb.WriteString(style(Styles.Branch, indent+branch, styled))
		sb.WriteString(style(Styles.Muted, "["+childPath.String()+"] ", styled))
		sb.WriteString(nodeLabel(c, styled))
		sb.WriteByte('\n')
		renderChildren(sb, c, childPath, indent+next, styled)
	}
}

func nodeLabel(n *tagfilter.Node, styled bool) string {
	switch n.Kind() {
	case tagfilter.KindLeaf:
		return style(Styles.Tag, n.Tag(), styled)
	case tagfilter.KindNot:
		return style(Styles.Negation, n.Label(), styled)
	default:
		return style(Styles.Operator, n.Label(), styled)
	}
}

func style(s interface{ Render(...string) string }, text string, styled bool) string {
	if !styled {
		return text
	}
	return s.Render(text)
}
