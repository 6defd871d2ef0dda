package cli

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"hashfeed/internal/config"
	"hashfeed/internal/fswatch"
	"hashfeed/internal/metrics"
	"hashfeed/internal/server"
	"hashfeed/internal/threat"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve hash lookups from the latest crawl output",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, *configPath)
			if err != nil {
				return err
			}
			return RunServe(cmd.Context(), cfg)
		},
	}
}

// indexLoader builds the reload callback shared by startup and the watcher.
func indexLoader(ctx context.Context, index *threat.Index, path string) func() error {
	return func() error {
		records, err := threat.ReadCSV(path)
		if err != nil {
			metrics.Reloads.WithLabelValues("error").Inc()
			return err
		}
		metrics.Reloads.WithLabelValues("ok").Inc()
		return index.SaveRecords(ctx, records)
	}
}

// RunServe loads the crawl output into an index, keeps it fresh as the file
// changes and serves lookups until ctx is cancelled.
func RunServe(ctx context.Context, cfg *config.Config) error {
	metrics.RegisterRuntime()

	path := cfg.OutputPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "could not create output directory for %s", path)
	}

	index := threat.NewIndex()
	load := indexLoader(ctx, index, path)
	if err := load(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		slog.Warn("output file missing, waiting for first crawl", "path", path)
	}

	srv := server.New(index)
	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errc := make(chan error, 3)
	go func() {
		errc <- fswatch.Watch(ctx, path, fswatch.DefaultDebounce, load)
	}()
	go func() {
		slog.Info("listening", "addr", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- errors.Wrap(err, "http server")
			return
		}
		errc <- nil
	}()
	if cfg.GRPCAddr != "" {
		go func() {
			slog.Info("grpc listening", "addr", cfg.GRPCAddr)
			if err := srv.StartGRPC(cfg.GRPCAddr); err != nil {
				errc <- errors.Wrap(err, "grpc server")
				return
			}
			errc <- nil
		}()
	}

	var err error
	select {
	case <-ctx.Done():
	case err = <-errc:
	}
	cancel()

	shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
	defer done()
	if serr := httpSrv.Shutdown(shutdownCtx); serr != nil {
		slog.Error("http shutdown", "err", serr)
	}
	srv.Stop()
	return err
}
