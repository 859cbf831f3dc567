package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vango-dev/vdiff/internal/config"
	"github.com/vango-dev/vdiff/internal/errors"
	"github.com/vango-dev/vdiff/pkg/middleware"
	"github.com/vango-dev/vdiff/pkg/server"
	"github.com/vango-dev/vdiff/pkg/snapshot"
)

func serveCmd() *cobra.Command {
	var (
		configPath string
		host       string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the reconciliation server",
		Long: `Start the HTTP and WebSocket server.

Configuration is read from --config, or from the vdiff.json of the
current directory or its nearest parent. Without one the defaults
are used.

Endpoints:
  GET  /ws                   WebSocket sessions
  POST /api/reconcile        stateless diff of two notation trees
  GET  /api/snapshots/{hash} stored session trees
  GET  /healthz              liveness
  GET  /metrics              Prometheus metrics (when enabled)

Examples:
  vdiff serve
  vdiff serve --config deploy/vdiff.json --port 9000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if host != "" {
				cfg.Server.Host = host
			}
			if port != 0 {
				cfg.Server.Port = port
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to vdiff.json")
	cmd.Flags().StringVarP(&host, "host", "H", "", "Host to bind to (default from config)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (default from config)")

	return cmd
}

// loadConfig reads path, or the nearest vdiff.json when path is empty.
// A missing file only falls back to the defaults when no path was given.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	cfg, err := config.LoadFromWorkingDir()
	if errors.HasCode(err, "E100") {
		return config.New(), nil
	}
	return cfg, err
}

func runServe(ctx context.Context, cfg *config.Config, logOut io.Writer) error {
	logger := newLogger(cfg.Log, logOut)
	slog.SetDefault(logger)

	store, err := newSnapshotStore(cfg.Snapshot, cfg.SnapshotDir())
	if err != nil {
		return err
	}

	opts := []server.Option{
		server.WithLogger(logger),
		server.WithSnapshots(store),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, server.WithMetrics(middleware.Prometheus(
			middleware.WithNamespace(cfg.Metrics.Namespace),
		)))
	}
	if cfg.Tracing.Enabled {
		opts = append(opts, server.WithTracer(middleware.OpenTelemetry(
			middleware.WithTracerName(cfg.Tracing.TracerName),
		)))
	}

	srv, err := server.New(serverConfig(cfg), opts...)
	if err != nil {
		return err
	}
	logger.Info("vdiff serving",
		"address", cfg.Address(),
		"snapshots", cfg.Snapshot.Backend,
		"metrics", cfg.Metrics.Enabled)
	return srv.Run(ctx)
}

// serverConfig maps the file configuration onto the server's. Zero values
// take the server defaults.
func serverConfig(cfg *config.Config) *server.ServerConfig {
	sc := &server.ServerConfig{
		Address:         cfg.Address(),
		ReadTimeout:     cfg.ReadTimeout(),
		WriteTimeout:    cfg.WriteTimeout(),
		ShutdownTimeout: cfg.ShutdownTimeout(),
		PingInterval:    cfg.PingInterval(),
		MaxSessions:     cfg.Session.MaxSessions,
		HistorySize:     cfg.Session.HistorySize,
		MaxMessageSize:  cfg.Session.MaxMessageSize,
		MetricsPath:     cfg.Metrics.Path,
	}
	if len(cfg.Server.AllowedOrigins) > 0 {
		sc.CheckOrigin = server.AllowOrigins(cfg.Server.AllowedOrigins...)
	}
	return sc
}

// newSnapshotStore builds the configured backend, with an in-memory cache in
// front when cacheSize is set. It returns a nil Store for "none".
func newSnapshotStore(sc config.SnapshotConfig, dir string) (snapshot.Store, error) {
	var st snapshot.Store
	switch sc.Backend {
	case config.SnapshotNone, "":
		return nil, nil
	case config.SnapshotFile:
		fs, err := snapshot.NewFileStore(dir)
		if err != nil {
			return nil, errors.New("E401").WithDetail("Cannot use snapshot directory " + dir).Wrap(err)
		}
		st = fs
	case config.SnapshotS3:
		client := snapshot.NewS3Client(snapshot.S3Options{
			Region:   sc.Region,
			Endpoint: sc.Endpoint,
		})
		st = snapshot.NewS3Store(client, sc.Bucket, sc.Prefix)
	default:
		return nil, errors.New("E102").WithDetail("unknown snapshot backend " + sc.Backend)
	}

	if sc.CacheSize <= 0 {
		return st, nil
	}
	cached, err := snapshot.NewCached(st, sc.CacheSize)
	if err != nil {
		return nil, errors.New("E401").Wrap(err)
	}
	return cached, nil
}

// newLogger builds the slog handler selected by the log section.
func newLogger(lc config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(lc.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if lc.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
