package main

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httpAdapter "github.com/cwygoda/feedgrab/internal/adapter/http"
	"github.com/cwygoda/feedgrab/internal/adapter/fsstore"
	"github.com/cwygoda/feedgrab/internal/adapter/sqlite"
	"github.com/cwygoda/feedgrab/internal/config"
	"github.com/cwygoda/feedgrab/internal/domain"
	"github.com/cwygoda/feedgrab/internal/logger"
)

var (
	version = "dev"
	commit  = "none"
)

var (
	// cfgFile holds the path to the configuration file.
	cfgFile string
	// debug switches to a development logger at debug level.
	debug bool
)

var rootCmd = &cobra.Command{
	Use:           "feedgrab",
	Short:         "Download the media of a creator feed",
	Long:          "feedgrab pages through the post categories of a profile and downloads every viewable photo and video into a local directory tree.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/feedgrab/config.toml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "feedgrab %s (commit: %s)\n", version, commit)
		},
	})
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(historyCmd)
}

// Execute runs the root command.
func Execute() error {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(rootCmd.ErrOrStderr(), "Error:", err)
		return err
	}
	return nil
}

// app bundles everything a command needs after startup.
type app struct {
	cfg  *config.Config
	log  *zap.Logger
	repo *sqlite.Repository
	svc  *domain.SyncService
}

func (a *app) Close() {
	a.repo.Close()
	_ = a.log.Sync()
}

// newApp loads configuration and wires the adapters into a SyncService.
// validate is false for commands that only read run history.
func newApp(ctx context.Context, validate bool) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if validate {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid config: %w", err)
		}
	}

	level := cfg.LogLevel
	if debug {
		level = "debug"
	}
	log, err := logger.New(logger.Config{Level: level, Development: debug})
	if err != nil {
		return nil, err
	}

	repo, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open run history: %w", err)
	}

	headers := map[string]string{
		httpAdapter.HeaderAppToken:    cfg.AppToken,
		httpAdapter.HeaderAccessToken: cfg.AccessToken,
	}
	if cfg.UserAgent != "" {
		headers["User-Agent"] = cfg.UserAgent
	}
	client, err := httpAdapter.NewClient(httpAdapter.ClientConfig{
		BaseURL: cfg.BaseURL,
		Headers: headers,
		Timeout: cfg.Timeout,
	})
	if err != nil {
		repo.Close()
		return nil, err
	}
	fetcher := httpAdapter.NewRedirectingFetcher(httpAdapter.NewDownloadClient(cfg.Timeout), cfg.MaxRedirects, log)

	storeFor := func(profile string) domain.FileStore {
		return fsstore.New(cfg.Dir, profile)
	}
	svc := domain.NewSyncService(
		httpAdapter.NewAPI(client),
		fetcher,
		storeFor,
		repo,
		domain.SyncOptions{PageLimit: cfg.PageLimit, Workers: cfg.Workers},
		log,
	)

	// Recover runs left open by a previous crash
	if recovered, err := svc.RecoverStale(ctx); err != nil {
		log.Warn("failed to recover stale runs", zap.Error(err))
	} else if recovered > 0 {
		log.Info("marked stale runs interrupted", zap.Int64("count", recovered))
	}

	log.Debug("configuration loaded",
		zap.String("dir", cfg.Dir),
		zap.String("db", cfg.DBPath),
		zap.Int("workers", cfg.Workers),
	)
	return &app{cfg: cfg, log: log, repo: repo, svc: svc}, nil
}
