package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/vdiff/internal/config"
	"github.com/vango-dev/vdiff/internal/errors"
	"github.com/vango-dev/vdiff/pkg/scenario"
	"github.com/vango-dev/vdiff/pkg/server"
	"github.com/vango-dev/vdiff/pkg/snapshot"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--no-color"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestDiffJSON(t *testing.T) {
	out, err := execute(t, "diff", "a b c", "c b a", "--json")
	require.NoError(t, err)

	var resp server.ReconcileResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 2, resp.Stats.Moved)
	assert.Equal(t, "c b a", resp.Shape)
}

func TestDiffText(t *testing.T) {
	out, err := execute(t, "diff", "l:ul(a b)", "l:ul(b x)")
	require.NoError(t, err)
	assert.Contains(t, out, "create")
	assert.Contains(t, out, "key=x")
	assert.Contains(t, out, "remove")
	assert.Contains(t, out, "result: l:ul(b x)")
}

func TestFormatPatch(t *testing.T) {
	errors.DisableColors()
	patches := []server.PatchJSON{
		{Op: "CreateNode", HID: "h4", Node: &server.NodeJSON{Kind: "Element", Tag: "li", Key: "x"}},
		{Op: "InsertNode", HID: "h4", ParentID: "h1", Before: "h3"},
		{Op: "MoveNode", HID: "h3", ParentID: "h1", Before: "h2"},
		{Op: "RemoveNode", HID: "h2", ParentID: "h1"},
		{Op: "CreateNode", HID: "h5", Node: &server.NodeJSON{Kind: "Text", Text: "hi"}},
		{Op: "CreateNode", HID: "h6", Node: &server.NodeJSON{Kind: "Fragment", Key: "f"}},
		{Op: "SetText", HID: "h5", Value: "hello"},
		{Op: "SetAttr", HID: "h1", Key: "class", Value: "list"},
		{Op: "RemoveAttr", HID: "h1", Key: "id"},
	}
	var sb strings.Builder
	for _, p := range patches {
		sb.WriteString(formatPatch(p))
		sb.WriteByte('\n')
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "patches", []byte(sb.String()))
}

func TestDiffSyntaxError(t *testing.T) {
	_, err := execute(t, "diff", "a (b", "a")
	assert.True(t, errors.HasCode(err, "E200"), "err = %v", err)
}

func TestRunBuiltin(t *testing.T) {
	out, err := execute(t, "run")
	require.NoError(t, err)
	assert.Contains(t, out, scenario.Builtin().Name)
	assert.Contains(t, out, " 0 failed")
}

func TestRunFailingSuite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "suite.yaml")
	suite := `name: wrong
scenarios:
  - name: swap
    old: "a b"
    new: "b a"
    expect: {moves: 5}
`
	require.NoError(t, os.WriteFile(path, []byte(suite), 0o644))

	out, err := execute(t, "run", path)
	assert.True(t, errors.HasCode(err, "E202"), "err = %v", err)
	assert.Contains(t, out, "moves = 1, want 5")

	_, err = execute(t, "run", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, errors.HasCode(err, "E201"), "err = %v", err)
}

func TestBenchMeetsBound(t *testing.T) {
	for _, churn := range []string{"0", "0.3"} {
		out, err := execute(t, "bench", "--size", "60", "--rounds", "25", "--churn", churn, "--json")
		require.NoError(t, err)

		var res benchResult
		require.NoError(t, json.Unmarshal([]byte(out), &res))
		assert.Equal(t, 25, res.Optimal, "churn %s", churn)
		assert.Equal(t, res.Bound, res.Stats.Moved, "churn %s", churn)
	}
}

func TestVersionShort(t *testing.T) {
	out, err := execute(t, "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, version+"\n", out)
}

func TestPush(t *testing.T) {
	srv, err := server.New(nil, server.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	defer srv.Shutdown(context.Background())
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	out, err := execute(t, "push", url, "l:ul(a b c)", "l:ul(c a)")
	require.NoError(t, err)
	assert.Contains(t, out, "seq 1  l:ul(a b c)")
	assert.Contains(t, out, "seq 2  l:ul(c a)")

	_, err = execute(t, "push", url, "a b")
	assert.True(t, errors.HasCode(err, "E200"), "err = %v", err)

	_, err = execute(t, "push", url, "l:ul(a)", "--session", "gone", "--last-seq", "1")
	assert.True(t, errors.HasCode(err, "E301"), "err = %v", err)
}

func TestSnapshotGetFromFileStore(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, config.ConfigFileName)
	require.NoError(t, os.WriteFile(cfgPath, []byte(`{"snapshot": {"backend": "file", "dir": "snaps"}}`), 0o644))

	st, err := snapshot.NewFileStore(filepath.Join(dir, "snaps"))
	require.NoError(t, err)
	tree := scenario.MustParse(`l:ul(a b:p("hi"))`)[0]
	hash, err := snapshot.Save(context.Background(), st, snapshot.New("s1", 4, tree))
	require.NoError(t, err)

	out, err := execute(t, "snapshot", "get", hash, "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "s1")
	assert.Contains(t, out, `l:ul(a b:p("hi"))`)

	_, err = execute(t, "snapshot", "get", snapshot.Hash([]byte("nothing")), "--config", cfgPath)
	assert.True(t, errors.HasCode(err, "E400"), "err = %v", err)
}

func TestNewSnapshotStore(t *testing.T) {
	st, err := newSnapshotStore(config.SnapshotConfig{Backend: config.SnapshotNone}, "")
	require.NoError(t, err)
	assert.Nil(t, st)

	st, err = newSnapshotStore(config.SnapshotConfig{Backend: config.SnapshotFile, CacheSize: 8}, t.TempDir())
	require.NoError(t, err)
	assert.IsType(t, &snapshot.Cached{}, st)

	st, err = newSnapshotStore(config.SnapshotConfig{Backend: config.SnapshotS3, Bucket: "b", Region: "us-east-1"}, "")
	require.NoError(t, err)
	assert.IsType(t, &snapshot.S3Store{}, st)
}

func TestServerConfigFromFile(t *testing.T) {
	cfg := config.New()
	cfg.Server.Port = 9001
	cfg.Server.AllowedOrigins = []string{"https://app.test"}
	cfg.Session.HistorySize = 7

	sc := serverConfig(cfg)
	assert.Equal(t, "localhost:9001", sc.Address)
	assert.Equal(t, 7, sc.HistorySize)
	assert.Equal(t, cfg.PingInterval(), sc.PingInterval)
	assert.NotNil(t, sc.CheckOrigin)
}
