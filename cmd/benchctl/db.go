package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/benchlink-core/internal/device"
	"github.com/nerrad567/benchlink-core/internal/infrastructure/database"
	"github.com/nerrad567/benchlink-core/migrations"
)

var errNoDatabase = errors.New("no database: pass --db or a --config with database.path")

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Maintain the position history store",
		Long:  "Apply or roll back schema migrations, read position history and prune old rows. Stop the server before migrating.",
	}
	cmd.PersistentFlags().String("db", "", "SQLite history file (default: database.path from --config)")

	cmd.AddCommand(
		newDBStatusCmd(),
		newDBMigrateCmd(),
		newDBRollbackCmd(),
		newDBHistoryCmd(),
		newDBPruneCmd(),
	)
	return cmd
}

// openDB opens the file named by --db, or the configured database.
func openDB(cmd *cobra.Command) (*database.DB, error) {
	dbCfg := database.Config{BusyTimeout: 5 * time.Second}
	if path, _ := cmd.Flags().GetString("db"); path != "" {
		dbCfg.Path = path
	} else {
		cfg, ok, err := loadConfig(cmd)
		if err != nil {
			return nil, err
		}
		if !ok || cfg.Database.Path == "" {
			return nil, errNoDatabase
		}
		dbCfg.Path = cfg.Database.Path
		dbCfg.WALMode = cfg.Database.WALMode
		dbCfg.BusyTimeout = time.Duration(cfg.Database.BusyTimeout) * time.Second
	}
	return database.Open(cmd.Context(), dbCfg)
}

func newDBStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openDB(cmd)
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck // read-only command

			applied, pending, err := db.MigrationStatus(cmd.Context(), migrations.FS)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "VERSION\tSTATE\tAPPLIED")
			for _, r := range applied {
				fmt.Fprintf(w, "%s\tapplied\t%s\n", r.Version, r.AppliedAt.Format(time.RFC3339))
			}
			for _, m := range pending {
				fmt.Fprintf(w, "%s\tpending\t-\n", m.Version)
			}
			return w.Flush()
		},
	}
}

func newDBMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply every pending migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openDB(cmd)
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck // errors surface from Migrate

			_, pending, err := db.MigrationStatus(cmd.Context(), migrations.FS)
			if err != nil {
				return err
			}
			if err := db.Migrate(cmd.Context(), migrations.FS); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s) to %s\n", len(pending), db.Path())
			return nil
		},
	}
}

func newDBRollbackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rollback",
		Short: "Roll back the most recent migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openDB(cmd)
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck // errors surface from MigrateDown

			applied, _, err := db.MigrationStatus(cmd.Context(), migrations.FS)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing to roll back")
				return nil
			}
			if err := db.MigrateDown(cmd.Context(), migrations.FS); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rolled back %s\n", applied[len(applied)-1].Version)
			return nil
		},
	}
}

func newDBHistoryCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history <device> [component]",
		Short: "Print recent position history, newest first",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(cmd)
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck // read-only command

			var component string
			if len(args) == 2 {
				component = args[1]
			}
			entries, err := device.NewSQLiteHistoryRepository(db.DB).GetHistory(cmd.Context(), args[0], component, limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no history")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tCOMPONENT\tTYPE\tPOSITION\tLABEL\tPREVIOUS\tDURATION\tERROR")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
					e.CreatedAt.Format(time.RFC3339), e.Component, e.Type, e.Position,
					dash(e.Label), dash(e.Previous),
					time.Duration(e.DurationMS)*time.Millisecond, dash(e.Error))
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum rows")
	return cmd
}

func newDBPruneCmd() *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete position history older than --older-than",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive, got %s", olderThan)
			}
			db, err := openDB(cmd)
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck // errors surface from PruneHistory

			n, err := device.NewSQLiteHistoryRepository(db.DB).PruneHistory(cmd.Context(), olderThan)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pruned %d row(s) older than %s\n", n, olderThan)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "age cutoff")
	return cmd
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
