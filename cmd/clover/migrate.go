package main

import (
	"context"

	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	var (
		version uint
		force   int
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long: `Apply database migrations from DB_MIGRATIONS_PATH.

Examples:
  clover migrate
  clover migrate --version 2
  clover migrate --force 3`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			a, err := newBase(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = a.close(context.Background()) }()

			migrationCfg := cfg.MigrationConfig()
			migrationCfg.Version = version
			migrationCfg.Force = force
			return a.migrateWith(migrationCfg)
		},
	}

	cmd.Flags().UintVar(&version, "version", 0, "migrate to this version instead of the latest")
	cmd.Flags().IntVar(&force, "force", 0, "force the recorded version before migrating")
	return cmd
}
