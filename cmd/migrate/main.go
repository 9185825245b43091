package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/geocoder89/attendhub/internal/app"
	"github.com/geocoder89/attendhub/internal/config"
	"github.com/geocoder89/attendhub/internal/db"
	"github.com/geocoder89/attendhub/internal/observability"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()

	if err := newRootCmd(config.Load()).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(cfg config.Config) *cobra.Command {
	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Manage the attendhub database schema and bootstrap data",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfg.DBURL, "db-url", cfg.DBURL, "postgres connection url (default: DB_URL)")

	root.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: func(cmd *cobra.Command, _ []string) error {
				if err := db.MigrateUp(cfg.DBURL); err != nil {
					return err
				}
				return printVersion(cmd, cfg.DBURL)
			},
		},
		newDownCmd(&cfg),
		&cobra.Command{
			Use:   "version",
			Short: "Print the applied migration version",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return printVersion(cmd, cfg.DBURL)
			},
		},
		&cobra.Command{
			Use:   "seed-admin",
			Short: "Create or promote the admin account from ADMIN_USERNAME and ADMIN_PASSWORD",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return seedAdmin(cmd.Context(), cfg)
			},
		},
	)

	return root
}

func newDownCmd(cfg *config.Config) *cobra.Command {
	var steps int

	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back the given number of migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if steps <= 0 {
				return errors.New("--steps must be positive")
			}
			if err := db.MigrateDown(cfg.DBURL, steps); err != nil {
				return err
			}
			return printVersion(cmd, cfg.DBURL)
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	return cmd
}

func printVersion(cmd *cobra.Command, dbURL string) error {
	version, dirty, err := db.MigrationVersion(dbURL)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty=%v)\n", version, dirty)
	return nil
}

func seedAdmin(ctx context.Context, cfg config.Config) error {
	if cfg.AdminUserName == "" || cfg.AdminPassword == "" {
		return errors.New("ADMIN_USERNAME and ADMIN_PASSWORD must be set")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	storage, err := app.OpenStorage(ctx, cfg, nil, log)
	if err != nil {
		return err
	}
	defer storage.Close(context.Background())

	return db.EnsureAdminUser(ctx, storage.Users, cfg, log)
}
