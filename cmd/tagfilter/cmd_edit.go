// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/tagfilter/pkg/validation"
	"github.com/AleutianAI/tagfilter/services/tagfilter"
)

// =============================================================================
// Edit commands
// =============================================================================

// Every edit command loads the stored filter, applies one tree operation
// and saves the result when the operation announced a change.

func newInsertCmd(app *App) *cobra.Command {
	var (
		parent string
		index  int
	)
	cmd := &cobra.Command{
		Use:   "insert NAME TAG",
		Short: "Insert a tag leaf",
		Long: `Insert adds a leaf for TAG under the OR or AND node at --parent (the
root by default). A filter that does not exist yet is created.`,
		Example: `  tagfilter insert inbox urgent
  tagfilter insert inbox bug --parent 1 --index 0`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, tag := args[0], args[1]
			if err := validation.ValidateTag(tag); err != nil {
				return classify("insert", err)
			}
			_, err := app.editFilter(cmd.Context(), name, true, func(t *tagfilter.Tree) error {
				target, err := resolveArg(t, parent)
				if err != nil {
					return err
				}
				_, err = t.InsertLeaf(tag, target, index)
				return err
			})
			if err != nil {
				return classify("insert", err)
			}
			app.out.Success("inserted %s into %s at %s", tag, name, formatIndex(index))
			return nil
		},
	}
	cmd.Flags().StringVarP(&parent, "parent", "p", "", "path of the OR/AND node to insert into")
	indexFlag(cmd, &index)
	return cmd
}

func newRemoveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "remove NAME PATH...",
		Aliases: []string{"rm"},
		Short:   "Remove sibling nodes",
		Long: `Remove detaches the nodes at the given paths together with their
subtrees. All paths must share one parent.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var removed []*tagfilter.Node
			_, err := app.editFilter(cmd.Context(), args[0], false, func(t *tagfilter.Tree) error {
				nodes, err := resolveArgs(t, args[1:])
				if err != nil {
					return err
				}
				removed, err = t.RemoveMany(nodes)
				return err
			})
			if err != nil {
				return classify("remove", err)
			}
			for _, n := range removed {
				app.out.Success("removed %s", n)
			}
			return nil
		},
	}
}

func newMergeCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "merge NAME and|or PATH...",
		Short: "Group sibling nodes under a new AND or OR",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := tagfilter.ParseKind(args[1])
			if err != nil {
				return classify("merge", err)
			}
			var merged *tagfilter.Node
			_, err = app.editFilter(cmd.Context(), args[0], false, func(t *tagfilter.Tree) error {
				nodes, err := resolveArgs(t, args[2:])
				if err != nil {
					return err
				}
				merged, err = t.Merge(kind, nodes)
				return err
			})
			if err != nil {
				return classify("merge", err)
			}
			app.out.Success("merged into %s", merged)
			return nil
		},
	}
}

func newNegateCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "negate NAME PATH",
		Short: "Wrap a node in NOT",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var wrapped *tagfilter.Node
			_, err := app.editFilter(cmd.Context(), args[0], false, func(t *tagfilter.Tree) error {
				n, err := resolveArg(t, args[1])
				if err != nil {
					return err
				}
				wrapped, err = t.Negate(n)
				return err
			})
			if err != nil {
				return classify("negate", err)
			}
			app.out.Success("negated to %s", wrapped)
			return nil
		},
	}
}

func newMoveCmd(app *App) *cobra.Command {
	var (
		to    string
		index int
	)
	cmd := &cobra.Command{
		Use:     "move NAME PATH...",
		Aliases: []string{"mv"},
		Short:   "Move nodes under another OR/AND node",
		Long: `Move relocates the nodes at the given paths under --to (the root by
default). --index counts positions before anything is removed, so in
OR[a,b,c] moving a to index 2 yields OR[b,a,c] and to index 3 OR[b,c,a].`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := app.editFilter(cmd.Context(), args[0], false, func(t *tagfilter.Tree) error {
				nodes, err := resolveArgs(t, args[1:])
				if err != nil {
					return err
				}
				target, err := resolveArg(t, to)
				if err != nil {
					return err
				}
				return t.Move(nodes, target, index)
			})
			if err != nil {
				return classify("move", err)
			}
			app.out.Success("moved %s to %s at %s", strings.Join(args[1:], " "), displayPath(to), formatIndex(index))
			return nil
		},
	}
	cmd.Flags().StringVarP(&to, "to", "t", "", "path of the destination OR/AND node")
	indexFlag(cmd, &index)
	return cmd
}

func newDropCmd(app *App) *cobra.Command {
	var (
		mime  string
		to    string
		index int
	)
	cmd := &cobra.Command{
		Use:   "drop NAME [FILE|-]",
		Short: "Drop a payload onto a filter",
		Long: `Drop reads a payload from FILE or stdin and applies it under --to.
With the default text/plain type every non-blank line becomes a new tag
leaf. With application/x-tagfilter-paths the payload is a path list
produced by a drag and moves the named nodes.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(app, args[1:])
			if err != nil {
				return classify("drop", fmt.Errorf("read payload: %w", err))
			}
			if mime == tagfilter.MIMEText {
				if err := validation.ValidateTags(tagfilter.ParseTextPayload(string(data))); err != nil {
					return classify("drop", err)
				}
			}
			tree, err := app.editFilter(cmd.Context(), args[0], mime == tagfilter.MIMEText, func(t *tagfilter.Tree) error {
				target, err := resolveArg(t, to)
				if err != nil {
					return err
				}
				return t.Drop(mime, data, target, index)
			})
			if err != nil {
				return classify("drop", err)
			}
			app.out.Success("dropped onto %s: %s", args[0], tree)
			return nil
		},
	}
	cmd.Flags().StringVar(&mime, "mime", tagfilter.MIMEText, "payload MIME type")
	cmd.Flags().StringVarP(&to, "to", "t", "", "path of the destination OR/AND node")
	indexFlag(cmd, &index)
	return cmd
}

func newPruneCmd(app *App) *cobra.Command {
	var keepEmpty bool
	cmd := &cobra.Command{
		Use:   "prune NAME TAG...",
		Short: "Remove every leaf whose tag is not listed",
		Long: `Prune keeps only the leaves whose tags are listed. OR and AND nodes
left empty are removed too unless --keep-empty is set. A NOT whose
content is removed always goes with it.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validation.ValidateTags(args[1:]); err != nil {
				return classify("prune", err)
			}
			if !cmd.Flags().Changed("keep-empty") {
				keepEmpty = app.cfg.Editing.KeepEmpty
			}
			policy := tagfilter.PruneEmpty
			if keepEmpty {
				policy = tagfilter.KeepEmpty
			}
			var removed int
			tree, err := app.editFilter(cmd.Context(), args[0], false, func(t *tagfilter.Tree) error {
				var err error
				removed, err = t.FilterTags(tagfilter.NewTagSet(args[1:]...), policy)
				return err
			})
			if err != nil {
				return classify("prune", err)
			}
			if removed == 0 {
				app.out.Println("nothing to prune")
				return nil
			}
			app.out.Success("pruned %d rows (%s): %s", removed, policy, tree)
			return nil
		},
	}
	cmd.Flags().BoolVar(&keepEmpty, "keep-empty", false, "keep OR/AND nodes that end up empty")
	return cmd
}

func displayPath(s string) string {
	p, err := tagfilter.ParsePath(s)
	if err != nil {
		return s
	}
	return p.Display()
}
