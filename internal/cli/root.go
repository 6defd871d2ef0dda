package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"hashfeed/internal/config"
	"hashfeed/internal/metrics"
	"hashfeed/internal/threat"
)

// Execute runs the feed-loader command tree and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newRootCmd().ExecuteContext(ctx)
	stop()
	cobra.CheckErr(err)
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "feed-loader",
		Short: "Download the ThreatFox SHA256 feed and write a deduplicated CSV",
		Long: `feed-loader fetches the ThreatFox recent SHA256 export, keeps one row per
hash (the last one in the feed wins) and writes a normalized CSV.

Run without arguments to crawl once with the built-in defaults.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, configPath)
			if err != nil {
				return err
			}
			_, err = RunCrawl(cmd.Context(), cfg)
			return err
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	root.AddCommand(newServeCmd(&configPath))
	return root
}

func loadConfig(cmd *cobra.Command, path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(newLogger(cmd.OutOrStdout(), cfg.LogLevel, cfg.LogFormat))
	return cfg, nil
}

// RunCrawl performs one fetch, parse and write pass using cfg.
func RunCrawl(ctx context.Context, cfg *config.Config) (threat.RunSummary, error) {
	fetcher := threat.NewThreatFoxFetcher(threat.FetcherOptions{
		URL:       cfg.FeedURL,
		UserAgent: cfg.UserAgent,
		Timeout:   cfg.Timeout,
	})
	controller := threat.NewETLController(fetcher)
	controller.Register(threat.NewCSVStore(cfg.OutputDir, cfg.OutputFile))

	sum, err := controller.Run(ctx)
	if err != nil {
		return sum, errors.Wrap(err, "crawl failed")
	}

	if cfg.MetricsFile != "" {
		if err := metrics.WriteTextfile(cfg.MetricsFile); err != nil {
			slog.Warn("could not write metrics file", "path", cfg.MetricsFile, "err", err)
		}
	}
	slog.Info("crawl completed", "source", sum.Source, "records", sum.Records, "skipped", sum.Stats.Skipped, "elapsed", sum.Elapsed)
	return sum, nil
}
