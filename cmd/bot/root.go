package main

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/spf13/cobra"

	"github.com/edgard/medtechbot/internal/config"
	"github.com/edgard/medtechbot/internal/database"
)

// execute runs the command line and returns the process exit code.
func execute(ctx context.Context, args []string) int {
	root := newRootCmd()
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		slog.Error("Command failed", "error", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "medtechbot",
		Short:         "Telegram bot that collects medical equipment service requests",
		Long:          `Guides users through urgent replacement, repair, rental and audit requests and posts each completed request to its team channel.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configPath)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration file (default ./config.yaml when present)")

	root.AddCommand(
		&cobra.Command{
			Use:   "check-config",
			Short: "Validate the configuration and print a summary",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := config.Load(configPath)
				if err != nil {
					return err
				}
				printSummary(cmd, cfg)
				return nil
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply request journal migrations and exit",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := config.Load(configPath)
				if err != nil {
					return err
				}
				db, err := database.NewDB(cfg.Database.Driver, cfg.Database.DSN)
				if err != nil {
					return err
				}
				database.CloseDB(db)
				cmd.Printf("Journal schema is up to date (%s)\n", cfg.Database.Driver)
				return nil
			},
		},
	)
	return root
}

func printSummary(cmd *cobra.Command, cfg *config.Config) {
	cmd.Println("Configuration is valid ✅")
	for _, flow := range []struct{ name, dest string }{
		{"urgent", cfg.Destinations.Urgent},
		{"repair", cfg.Destinations.Repair},
		{"rental", cfg.Destinations.Rental},
		{"audit", cfg.Destinations.Audit},
	} {
		cmd.Printf("  destination %-7s %s\n", flow.name, flow.dest)
	}
	cmd.Printf("  state backend      %s\n", cfg.State.Backend)
	cmd.Printf("  journal driver     %s\n", cfg.Database.Driver)
	if cfg.HTTP.Enabled {
		cmd.Printf("  liveness port      %d\n", cfg.HTTP.Port)
	} else {
		cmd.Println("  liveness           disabled")
	}

	names := make([]string, 0, len(cfg.Scheduler.Tasks))
	for name := range cfg.Scheduler.Tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		task := cfg.Scheduler.Tasks[name]
		state := "disabled"
		if task.Enabled {
			state = fmt.Sprintf("every %q", task.Schedule)
		}
		cmd.Printf("  task %-18s %s\n", name, state)
	}
}
