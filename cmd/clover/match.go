package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func matchCmd() *cobra.Command {
	var skipMigrate bool

	cmd := &cobra.Command{
		Use:   "match",
		Short: "Run one matching batch and print its summary",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = a.close(context.WithoutCancel(ctx)) }()

			if cfg.Database.AutoMigrate && !skipMigrate {
				if err := a.migrate(); err != nil {
					return err
				}
			}

			summary, err := a.batch.Run(ctx)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		},
	}

	cmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false, "do not apply pending migrations first")
	return cmd
}
