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
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/tagfilter/services/tagfilter"
)

// newRootCmd builds the command tree for one invocation.
func newRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "tagfilter",
		Short: "Edit, store and evaluate boolean tag filters",
		Long: `tagfilter manages named boolean filters over tags, such as
OR[urgent, AND[bug, NOT[wontfix]]].

Nodes are addressed by dotted paths of child indices: "0" is the first
top-level node, "1.0" the first child of the second, and "" or "root" the
top-level OR itself.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			app.teardown()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&app.configPath, "config", "", "config file (default ~/.tagfilter/tagfilter.yaml)")
	pf.StringVar(&app.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.BoolVar(&app.jsonLogs, "json-logs", false, "write console logs as JSON")
	pf.BoolVarP(&app.verbose, "verbose", "v", false, "print the change notifications of edits")

	root.AddCommand(
		newShowCmd(app),
		newEvalCmd(app),
		newInsertCmd(app),
		newRemoveCmd(app),
		newMergeCmd(app),
		newNegateCmd(app),
		newMoveCmd(app),
		newDropCmd(app),
		newPruneCmd(app),
		newImportCmd(app),
		newExportCmd(app),
		newListCmd(app),
		newDeleteCmd(app),
		newServeCmd(app),
	)
	return root
}

// =============================================================================
// Read commands
// =============================================================================

func newShowCmd(app *App) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "show NAME",
		Short: "Print a stored filter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := app.loadFilter(cmd.Context(), args[0])
			if err != nil {
				return classify("show", err)
			}
			return classify("show", writeFilter(app, root, format))
		},
	}
	cmd.Flags().StringVarP(&format, "format", "o", "tree", "output format: tree, text, yaml, json")
	return cmd
}

func writeFilter(app *App, root *tagfilter.Node, format string) error {
	w := app.out.Writer()
	switch format {
	case "tree":
		app.printTree(root)
	case "text":
		fmt.Fprintln(w, root.String())
	case "yaml":
		data, err := tagfilter.MarshalDocument(root)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(tagfilter.ToDocument(root))
	default:
		return NewCommandError("show", ExitFailure, fmt.Errorf("unknown format %q", format))
	}
	return nil
}

func newEvalCmd(app *App) *cobra.Command {
	var exitOnReject bool
	cmd := &cobra.Command{
		Use:   "eval NAME [TAG...]",
		Short: "Evaluate a stored filter against a set of tags",
		Long: `Evaluate prints "accepted" or "rejected". With --exit-code a
rejection also exits with status 2.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := app.openStore()
			if err != nil {
				return classify("eval", err)
			}
			defer st.Close()

			raw, err := st.LoadRaw(cmd.Context(), args[0])
			if err != nil {
				return classify("eval", err)
			}
			accepted, err := tagfilter.Evaluate(raw, tagfilter.NewTagSet(args[1:]...))
			if err != nil {
				return classify("eval", err)
			}
			if accepted {
				app.out.Println("accepted")
				return nil
			}
			app.out.Println("rejected")
			if exitOnReject {
				return NewCommandError("eval", ExitRejected, nil)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&exitOnReject, "exit-code", false, "exit with status 2 when rejected")
	return cmd
}

func newListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored filters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := app.openStore()
			if err != nil {
				return classify("list", err)
			}
			defer st.Close()

			infos, err := st.List(cmd.Context())
			if err != nil {
				return classify("list", err)
			}
			for _, info := range infos {
				fmt.Fprintf(app.out.Writer(), "%s\t%d bytes\n", info.Name, info.Size)
			}
			return nil
		},
	}
}

// =============================================================================
// Persistence commands
// =============================================================================

func newImportCmd(app *App) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Store a YAML filter document",
		Long: `Import reads a YAML filter document and stores it under --name, or
under the file name without extension. A document whose top node is not an
OR is wrapped in one.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := app.openStore()
			if err != nil {
				return classify("import", err)
			}
			defer st.Close()

			info, err := st.ImportFile(cmd.Context(), args[0], name)
			if err != nil {
				return classify("import", err)
			}
			app.out.Success("imported %s (%d bytes)", info.Name, info.Size)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "filter name (default: file name)")
	return cmd
}

func newExportCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "export NAME FILE",
		Short: "Write a stored filter as a YAML document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := app.openStore()
			if err != nil {
				return classify("export", err)
			}
			defer st.Close()

			if err := st.ExportFile(cmd.Context(), args[0], args[1]); err != nil {
				return classify("export", err)
			}
			app.out.Success("exported %s to %s", args[0], args[1])
			return nil
		},
	}
}

func newDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a stored filter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := app.openStore()
			if err != nil {
				return classify("delete", err)
			}
			defer st.Close()

			if err := st.Delete(cmd.Context(), args[0]); err != nil {
				return classify("delete", err)
			}
			app.out.Success("deleted %s", args[0])
			return nil
		},
	}
}

// =============================================================================
// Helpers
// =============================================================================

// indexFlag registers --index; a negative value appends.
func indexFlag(cmd *cobra.Command, index *int) {
	cmd.Flags().IntVarP(index, "index", "i", -1, "position among the parent's children (negative appends)")
}

// readInput reads a file argument, or stdin for "-" or no argument.
func readInput(app *App, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(app.stdin)
	}
	return os.ReadFile(args[0])
}

func formatIndex(i int) string {
	if i < 0 {
		return "end"
	}
	return strconv.Itoa(i)
}
