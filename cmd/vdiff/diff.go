package main

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vango-dev/vdiff/internal/errors"
	"github.com/vango-dev/vdiff/pkg/scenario"
	"github.com/vango-dev/vdiff/pkg/server"
)

func diffCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "diff OLD NEW",
		Short: "Reconcile two trees and print the patches",
		Long: `Mount OLD under an empty root, reconcile it into NEW and print
the patches of the second pass with the primitive counts.

Trees are written in notation: a key (or _ for no key), an optional
:tag, and optional children in parentheses. Quoted strings are text.

Examples:
  vdiff diff "a b c" "c b a"
  vdiff diff "l:ul(a b)" "l:ul(b x a)" --json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(cmd.OutOrStdout(), args[0], args[1], asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")

	return cmd
}

func runDiff(w io.Writer, oldSrc, newSrc string, asJSON bool) error {
	if err := checkNotation("OLD", oldSrc); err != nil {
		return err
	}
	if err := checkNotation("NEW", newSrc); err != nil {
		return err
	}

	resp, err := server.ReconcileNotation(oldSrc, newSrc)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	for _, p := range resp.Patches {
		fmt.Fprintln(w, formatPatch(p))
	}
	if len(resp.Patches) == 0 {
		fmt.Fprintln(w, gray("no changes"))
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s %s\n", bold("result:"), resp.Shape)
	s := resp.Stats
	fmt.Fprintf(w, "%s created=%d inserted=%d moved=%d removed=%d updated=%d (%s)\n",
		bold("stats:"), s.Materialized, s.Inserted, s.Moved, s.Removed, s.Updated, resp.Duration)
	return nil
}

// checkNotation turns a notation syntax error into an E200 pointing at the
// offending column.
func checkNotation(name, src string) error {
	_, err := scenario.Parse(src)
	var pe *scenario.ParseError
	if !stderrors.As(err, &pe) {
		return err
	}
	lines := strings.Split(src, "\n")
	line := ""
	if pe.Line >= 1 && pe.Line <= len(lines) {
		line = lines[pe.Line-1]
	}
	return errors.New("E200").
		WithSource(name, line, pe.Line, pe.Col).
		WithSuggestion(pe.Msg).
		Wrap(err)
}

func formatPatch(p server.PatchJSON) string {
	var sb strings.Builder
	label := fmt.Sprintf("%-11s", strings.ToLower(strings.TrimSuffix(p.Op, "Node")))
	switch p.Op {
	case "CreateNode":
		label = cyan(label)
	case "InsertNode":
		label = green(label)
	case "MoveNode":
		label = yellow(label)
	case "RemoveNode":
		label = red(label)
	}
	sb.WriteString(label)
	sb.WriteString(p.HID)

	if n := p.Node; n != nil {
		switch {
		case n.Kind == "Text" || n.Kind == "Raw":
			fmt.Fprintf(&sb, " %s %q", strings.ToLower(n.Kind), n.Text)
		case n.Tag != "":
			fmt.Fprintf(&sb, " <%s>", n.Tag)
		default:
			fmt.Fprintf(&sb, " #%s", strings.ToLower(n.Kind))
		}
		if n.Key != "" {
			fmt.Fprintf(&sb, " key=%s", n.Key)
		}
	}
	if p.ParentID != "" {
		fmt.Fprintf(&sb, " %s %s", gray("in"), p.ParentID)
	}
	if p.Before != "" {
		fmt.Fprintf(&sb, " %s %s", gray("before"), p.Before)
	}
	switch p.Op {
	case "SetText":
		fmt.Fprintf(&sb, " %q", p.Value)
	case "SetAttr":
		fmt.Fprintf(&sb, " %s=%q", p.Key, p.Value)
	case "RemoveAttr":
		fmt.Fprintf(&sb, " %s", p.Key)
	}
	return sb.String()
}
