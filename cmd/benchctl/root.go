package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nerrad567/benchlink-core/internal/infrastructure/config"
	"github.com/nerrad567/benchlink-core/internal/valve/models"
)

// Build information, set via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

// newRootCmd builds the full command tree. Each call returns a fresh tree
// so tests do not share flag state.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "benchctl",
		Short:         "Inspect valve models and talk to a BenchLink server offline",
		Long:          "benchctl lists and checks rotary valve model tables, resolves connection requests against them, issues API access tokens and maintains the position history store.",
		Version:       fmt.Sprintf("%s (%s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("config", "", "config file (default $BENCHLINK_CONFIG or "+config.DefaultPath+")")
	root.PersistentFlags().StringArray("model-path", nil, "extra model table file or directory (repeatable)")

	root.AddCommand(newModelsCmd(), newResolveCmd(), newTokenCmd(), newDBCmd())
	return root
}

// Execute runs benchctl and exits non-zero on error.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig reads the file named by --config. When the flag is unset it
// falls back to config.Path() and reports ok=false if that file is absent.
func loadConfig(cmd *cobra.Command) (cfg *config.Config, ok bool, err error) {
	path, _ := cmd.Flags().GetString("config")
	explicit := path != ""
	if !explicit {
		path = config.Path()
		if _, statErr := os.Stat(path); statErr != nil {
			return nil, false, nil
		}
	}
	cfg, err = config.Load(path)
	if err != nil {
		return nil, false, err
	}
	return cfg, true, nil
}

// loadCatalog returns the built-in models plus any configured or
// --model-path tables.
func loadCatalog(cmd *cobra.Command) (*models.Catalog, error) {
	catalog, err := models.NewCatalog()
	if err != nil {
		return nil, err
	}

	var paths []string
	if explicit, _ := cmd.Flags().GetString("config"); explicit != "" {
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return nil, err
		}
		paths = append(paths, cfg.Valves.ModelPaths...)
	}
	extra, _ := cmd.Flags().GetStringArray("model-path")
	paths = append(paths, extra...)

	if _, err := catalog.LoadPaths(paths); err != nil {
		return nil, err
	}
	return catalog, nil
}
