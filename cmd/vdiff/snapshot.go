package main

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vango-dev/vdiff/internal/errors"
	"github.com/vango-dev/vdiff/pkg/scenario"
	"github.com/vango-dev/vdiff/pkg/server"
	"github.com/vango-dev/vdiff/pkg/snapshot"
	"github.com/vango-dev/vdiff/pkg/vdom"
)

func snapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Inspect stored session trees",
	}
	cmd.AddCommand(snapshotGetCmd())
	return cmd
}

func snapshotGetCmd() *cobra.Command {
	var (
		configPath string
		serverURL  string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "get HASH",
		Short: "Print a stored snapshot",
		Long: `Fetch the snapshot stored under HASH and print its tree in notation.

The snapshot is read from the store configured in vdiff.json, or from
a running server with --server.

Examples:
  vdiff snapshot get 3q2-7wEAAAA...
  vdiff snapshot get 3q2-7wEAAAA... --server http://localhost:7070`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				resp *server.SnapshotResponse
				err  error
			)
			if serverURL != "" {
				resp, err = fetchSnapshot(cmd.Context(), serverURL, args[0])
			} else {
				resp, err = loadSnapshot(cmd.Context(), configPath, args[0])
			}
			if err != nil {
				return err
			}
			return printSnapshot(cmd.OutOrStdout(), resp, asJSON)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to vdiff.json")
	cmd.Flags().StringVar(&serverURL, "server", "", "Base URL of a running vdiff server")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the snapshot as JSON")

	return cmd
}

func loadSnapshot(ctx context.Context, configPath, hash string) (*server.SnapshotResponse, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	st, err := newSnapshotStore(cfg.Snapshot, cfg.SnapshotDir())
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, errors.New("E102").
			WithDetail("snapshot.backend is \"none\"").
			WithSuggestion("Set snapshot.backend in vdiff.json or use --server")
	}

	snap, err := snapshot.Load(ctx, st, hash)
	switch {
	case stderrors.Is(err, snapshot.ErrNotFound), stderrors.Is(err, snapshot.ErrBadHash):
		return nil, errors.New("E400").Wrap(err)
	case err != nil:
		return nil, errors.New("E401").Wrap(err)
	}

	var tree []*vdom.VNode
	if snap.Tree != nil {
		tree = []*vdom.VNode{snap.Tree.ToVNode()}
	}
	return &server.SnapshotResponse{
		Hash:      hash,
		SessionID: snap.SessionID,
		Seq:       snap.Seq,
		Taken:     snap.Taken,
		Tree:      scenario.Format(tree),
	}, nil
}

func fetchSnapshot(ctx context.Context, base, hash string) (*server.SnapshotResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	url := strings.TrimSuffix(base, "/") + "/api/snapshots/" + hash
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, errors.New("E401").Wrap(err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		var e server.ErrorResponse
		json.NewDecoder(res.Body).Decode(&e)
		code := "E401"
		if res.StatusCode == http.StatusNotFound || res.StatusCode == http.StatusBadRequest {
			code = "E400"
		}
		return nil, errors.New(code).Wrap(fmt.Errorf("%s: %s", res.Status, e.Error))
	}

	var out server.SnapshotResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, errors.New("E401").Wrap(err)
	}
	return &out, nil
}

func printSnapshot(w io.Writer, s *server.SnapshotResponse, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}
	fmt.Fprintf(w, "%s %s\n", gray("session:"), s.SessionID)
	fmt.Fprintf(w, "%s %d\n", gray("seq:    "), s.Seq)
	fmt.Fprintf(w, "%s %s\n", gray("taken:  "), s.Taken.Format(time.RFC3339))
	fmt.Fprintln(w, s.Tree)
	return nil
}
