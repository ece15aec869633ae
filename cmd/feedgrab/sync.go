package main

import (
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cwygoda/feedgrab/internal/config"
	"github.com/cwygoda/feedgrab/internal/domain"
	"github.com/cwygoda/feedgrab/internal/worker"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default config file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			path = config.DefaultConfigPath()
		}
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync <profile>",
	Short: "Download the configured categories of a profile once",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, true)
		if err != nil {
			return err
		}
		defer a.Close()

		run, err := a.svc.Sync(ctx, args[0], a.cfg.DomainCategories())
		if run != nil {
			printRun(cmd.OutOrStdout(), run)
		}
		return err
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch <profile>",
	Short: "Re-sync a profile on the configured interval until interrupted",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, true)
		if err != nil {
			return err
		}
		defer a.Close()

		w := worker.New(a.svc, args[0], a.cfg.DomainCategories(), a.cfg.Interval, a.log)
		w.Run(ctx)
		return nil
	},
}

func printRun(out io.Writer, run *domain.Run) {
	fmt.Fprintf(out, "run %s: %s\n", run.ID, run.Status)
	for _, c := range run.Categories {
		if c.Error != "" {
			fmt.Fprintf(out, "  %-10s failed: %s\n", c.Name, c.Error)
			continue
		}
		fmt.Fprintf(out, "  %-10s %d posts, %d viewable, %d/%d downloaded, %d failed\n",
			c.Name, c.Posts, c.Viewable, c.Succeeded, c.Attempted, c.Failed)
	}
	if run.Error != "" {
		fmt.Fprintf(out, "  error: %s\n", run.Error)
	}
}
