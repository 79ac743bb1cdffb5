package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/next-chapter/resume-engine/internal/cache"
	"github.com/next-chapter/resume-engine/internal/config"
	"github.com/next-chapter/resume-engine/internal/storage"
)

const adminTimeout = 30 * time.Second

func newMigrateCommand() *cobra.Command {
	var dsn, dir string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Long: `Apply pending SQL migrations to the database named by --dsn or DATABASE_DSN.
Migrations compiled into the binary are used unless --dir or MIGRATIONS_DIR is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return errors.Wrap(err, "failed to load config")
			}
			if dsn == "" {
				dsn = cfg.Database.DSN
			}
			if dir == "" {
				dir = cfg.Database.MigrationsDir
			}
			if dsn == "" {
				return errors.New("no database configured: set DATABASE_DSN or --dsn")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), adminTimeout)
			defer cancel()

			applied, err := storage.MigrateFromDSN(ctx, dsn, storage.MigrationSource(dir))
			if err != nil {
				return errors.Wrap(err, "migration failed")
			}

			fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", applied)
			return nil
		},
	}

	cmd.Flags().StringVar(&dsn, "dsn", "", "Postgres connection string (default DATABASE_DSN)")
	cmd.Flags().StringVar(&dir, "dir", "", "Migrations directory (default embedded)")

	return cmd
}

func newCacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the translation cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "purge",
		Short: "Remove every cached translation",
		Long: `Remove every cached translation from Redis. Entries also expire on their
own after CACHE_TTL.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return errors.Wrap(err, "failed to load config")
			}
			if cfg.Redis.Address == "" {
				return errors.New("no cache configured: set REDIS_ADDRESS")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), adminTimeout)
			defer cancel()

			c, err := cache.NewRedisCache(ctx, cache.RedisConfig{
				Address:  cfg.Redis.Address,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
				TTL:      cfg.Redis.TTL,
			})
			if err != nil {
				return errors.Wrap(err, "failed to connect to redis")
			}
			defer c.Close()

			n, err := c.Purge(ctx)
			if err != nil {
				return errors.Wrap(err, "purge failed")
			}

			fmt.Fprintf(cmd.OutOrStdout(), "purged %d cached translation(s)\n", n)
			return nil
		},
	})

	return cmd
}
