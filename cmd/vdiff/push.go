package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/vango-dev/vdiff/internal/config"
	"github.com/vango-dev/vdiff/internal/errors"
	"github.com/vango-dev/vdiff/pkg/client"
	"github.com/vango-dev/vdiff/pkg/protocol"
	"github.com/vango-dev/vdiff/pkg/scenario"
	"github.com/vango-dev/vdiff/pkg/vdom"
)

type pushOptions struct {
	sessionID string
	lastSeq   uint64
	timeout   time.Duration
}

func pushCmd() *cobra.Command {
	var opts pushOptions

	cmd := &cobra.Command{
		Use:   "push URL TREE...",
		Short: "Render trees over a WebSocket session",
		Long: `Connect to a vdiff server, render each TREE in turn and print the
client's mirrored tree after every step. Each TREE has exactly one root
node; an empty string clears the document.

The session ID and last sequence number are printed at the end so a
later push can resume the session.

Examples:
  vdiff push ws://localhost:7070/ws "l:ul(a b c)" "l:ul(c a b)"
  vdiff push ws://localhost:7070/ws "l:ul(b)" --session 5f0c... --last-seq 2`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPush(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), args[0], args[1:], opts)
		},
	}

	cmd.Flags().StringVar(&opts.sessionID, "session", "", "Resume this session")
	cmd.Flags().Uint64Var(&opts.lastSeq, "last-seq", 0, "Last sequence number applied by the resumed session")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "Timeout for each step")

	return cmd
}

func runPush(ctx context.Context, w, logOut io.Writer, url string, trees []string, opts pushOptions) error {
	roots := make([]*vdom.VNode, len(trees))
	for i, src := range trees {
		root, err := parseRoot(fmt.Sprintf("TREE %d", i+1), src)
		if err != nil {
			return err
		}
		roots[i] = root
	}

	dialOpts := []client.Option{
		client.WithTimeout(opts.timeout),
		client.WithLogger(newLogger(config.LogConfig{Level: "warn"}, logOut)),
	}
	if opts.sessionID != "" {
		dialOpts = append(dialOpts, client.WithSession(opts.sessionID, opts.lastSeq))
	}

	dialCtx, cancel := context.WithTimeout(ctx, opts.timeout)
	c, err := client.Dial(dialCtx, url, dialOpts...)
	cancel()
	if err != nil {
		return protocolError(err)
	}
	defer c.Close()

	if opts.sessionID != "" {
		info(w, "%s %s", gray("resumed at seq"), fmt.Sprint(c.LastSeq()))
		info(w, "%s", c.Shape())
	}

	for i, root := range roots {
		stepCtx, cancel := context.WithTimeout(ctx, opts.timeout)
		seq, err := c.Render(stepCtx, root)
		cancel()
		if err != nil {
			failure(w, "step %d", i+1)
			return protocolError(err)
		}
		success(w, "seq %d  %s", seq, c.Shape())
	}

	fmt.Fprintf(w, "\n%s %s\n%s %d\n", gray("session:"), c.SessionID(), gray("last seq:"), c.LastSeq())
	return nil
}

// parseRoot parses a tree with a single root. An empty tree is nil.
func parseRoot(name, src string) (*vdom.VNode, error) {
	if err := checkNotation(name, src); err != nil {
		return nil, err
	}
	nodes := scenario.MustParse(src)
	switch len(nodes) {
	case 0:
		return nil, nil
	case 1:
		return nodes[0], nil
	}
	return nil, errors.New("E200").
		WithDetail(fmt.Sprintf("%s has %d root nodes; a rendered tree has one.", name, len(nodes))).
		WithSuggestion("Wrap the siblings in a parent, e.g. l:ul(" + src + ")")
}

// protocolError maps client failures to coded errors.
func protocolError(err error) error {
	var em *protocol.ErrorMessage
	switch {
	case stderrors.Is(err, client.ErrHandshake):
		return errors.New("E301").Wrap(err)
	case stderrors.As(err, &em), stderrors.Is(err, protocol.ErrFrameTooLarge):
		return errors.New("E300").Wrap(err)
	}
	return err
}
