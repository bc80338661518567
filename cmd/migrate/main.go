package main

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/curricula/backend/internal/infrastructure/config"
	"github.com/curricula/backend/internal/infrastructure/logger"
	"github.com/curricula/backend/internal/infrastructure/migration"
	"github.com/curricula/backend/internal/infrastructure/persistence"
	"github.com/curricula/backend/internal/infrastructure/seed"
	"github.com/curricula/backend/migrations"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const defaultMigrationsDir = "migrations"

type options struct {
	migrationsPath string
	configFile     string
	logLevel       string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:          "migrate",
		Short:        "Curricula database migration tool",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.migrationsPath, "path", "", "Migrations directory (default: migrations embedded in the binary)")
	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "Config file (default: ./config.toml)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn, error")

	root.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: withMigrator(opts, func(m *migration.Migrator, _ []string) error {
				return m.Up()
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back all migrations",
			Args:  cobra.NoArgs,
			RunE: withMigrator(opts, func(m *migration.Migrator, _ []string) error {
				return m.Down()
			}),
		},
		&cobra.Command{
			Use:   "steps <n>",
			Short: "Apply n migrations (positive=up, negative=down)",
			Args:  cobra.ExactArgs(1),
			RunE: withMigrator(opts, func(m *migration.Migrator, args []string) error {
				n, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid step count %q", args[0])
				}
				return m.Steps(n)
			}),
		},
		&cobra.Command{
			Use:   "goto <version>",
			Short: "Migrate to a specific version",
			Args:  cobra.ExactArgs(1),
			RunE: withMigrator(opts, func(m *migration.Migrator, args []string) error {
				v, err := strconv.ParseUint(args[0], 10, 32)
				if err != nil {
					return fmt.Errorf("invalid version %q", args[0])
				}
				return m.GoTo(uint(v))
			}),
		},
		&cobra.Command{
			Use:   "version",
			Short: "Show the current migration version",
			Args:  cobra.NoArgs,
			RunE: withMigrator(opts, func(m *migration.Migrator, _ []string) error {
				v, dirty, err := m.Version()
				if err != nil {
					return err
				}
				if v == 0 {
					fmt.Println("No migrations applied")
					return nil
				}
				fmt.Printf("Version %d (dirty: %t)\n", v, dirty)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "force <version>",
			Short: "Force set the migration version (use with caution)",
			Args:  cobra.ExactArgs(1),
			RunE: withMigrator(opts, func(m *migration.Migrator, args []string) error {
				v, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid version %q", args[0])
				}
				return m.Force(v)
			}),
		},
		newCreateCmd(opts),
		newListCmd(opts),
		newSeedCmd(opts),
	)
	return root
}

func newCreateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "create <name> [description]",
		Short: "Create a new migration file pair",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger(opts)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			dir := opts.migrationsPath
			if dir == "" {
				dir = defaultMigrationsDir
			}
			description := ""
			if len(args) > 1 {
				description = args[1]
			}
			mf, err := migration.CreateMigration(dir, args[0], description)
			if err != nil {
				return err
			}
			log.Info("Migration created",
				zap.String("version", mf.Version),
				zap.String("up_file", mf.UpPath),
				zap.String("down_file", mf.DownPath),
			)
			return nil
		},
	}
}

func newListCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			names, err := migration.ListMigrations(migrationSource(opts))
			if err != nil {
				return err
			}
			if len(names) == 0 {
				fmt.Println("No migrations found")
				return nil
			}
			for _, name := range names {
				fmt.Println("  -", name)
			}
			return nil
		},
	}
}

func newSeedCmd(opts *options) *cobra.Command {
	var (
		file     string
		tenantID string
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load standards frameworks from a YAML file for one tenant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tenant, err := uuid.Parse(tenantID)
			if err != nil {
				return fmt.Errorf("invalid tenant id %q: %w", tenantID, err)
			}
			f, err := seed.LoadFromFile(file)
			if err != nil {
				return err
			}

			log, err := newLogger(opts)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			cfg, err := config.LoadFile(opts.configFile)
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			db, err := persistence.NewDatabase(&cfg.Database)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()
			res, err := seed.NewLoader(db, log).Apply(ctx, tenant, f)
			if err != nil {
				return err
			}
			log.Info("Seed applied",
				zap.Strings("created", res.Created),
				zap.Strings("skipped", res.Skipped),
				zap.Int("objectives", res.Objectives),
			)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "Seed file (YAML)")
	cmd.Flags().StringVar(&tenantID, "tenant", "", "Tenant id the frameworks belong to")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}

// withMigrator opens the database and a migrator around fn
func withMigrator(opts *options, fn func(m *migration.Migrator, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		log, err := newLogger(opts)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		cfg, err := config.LoadFile(opts.configFile)
		if err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}

		db, err := sql.Open("postgres", cfg.Database.DSN())
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()
		if err := db.PingContext(cmd.Context()); err != nil {
			return fmt.Errorf("ping database: %w", err)
		}

		var m *migration.Migrator
		if opts.migrationsPath != "" {
			dir, absErr := filepath.Abs(opts.migrationsPath)
			if absErr != nil {
				return absErr
			}
			m, err = migration.NewFromDir(db, dir, log)
		} else {
			m, err = migration.New(db, migrations.FS, log)
		}
		if err != nil {
			return err
		}
		defer func() {
			if err := m.Close(); err != nil {
				log.Warn("Failed to close migrator", zap.Error(err))
			}
		}()

		log.Info("Migration command started", zap.String("command", cmd.Name()))
		return fn(m, args)
	}
}

func migrationSource(opts *options) fs.FS {
	if opts.migrationsPath != "" {
		return os.DirFS(opts.migrationsPath)
	}
	return migrations.FS
}

func newLogger(opts *options) (*zap.Logger, error) {
	return logger.New(&logger.Config{
		Level:      opts.logLevel,
		Format:     "console",
		Output:     "stdout",
		TimeFormat: "2006-01-02 15:04:05",
	})
}
