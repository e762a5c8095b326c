// Package seed parses seed command flags and installs baseline records.
package seed

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"

	"github.com/louisbranch/storefront/internal/engine"
	entrypoint "github.com/louisbranch/storefront/internal/platform/cmd"
)

// Config holds seed command configuration.
type Config struct {
	DataDir string `env:"STOREFRONT_DATA_DIR" envDefault:"data"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "The directory holding the SQLite databases")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run installs the builtin settings, countries, roles, activity types, task
// rows, and the system account, then reports what the stores now hold. It is
// safe to run repeatedly; existing records are left alone.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	if out == nil {
		out = io.Discard
	}

	eng, err := engine.New(engine.Config{DataDir: cfg.DataDir})
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := eng.Close(); closeErr != nil {
			log.Printf("close engine: %v", closeErr)
		}
	}()

	if err := eng.Register(eng.Builtins()...); err != nil {
		return err
	}
	if err := eng.Seed(ctx); err != nil {
		return err
	}

	countries, err := eng.Directory.ListCountries(ctx, false)
	if err != nil {
		return fmt.Errorf("count countries: %w", err)
	}
	types, err := eng.Activity.ListTypes(ctx)
	if err != nil {
		return fmt.Errorf("count activity types: %w", err)
	}
	roles, err := eng.Access.ListRoles(ctx, false)
	if err != nil {
		return fmt.Errorf("count roles: %w", err)
	}
	tasks, err := eng.Scheduler.List(ctx, false)
	if err != nil {
		return fmt.Errorf("count tasks: %w", err)
	}

	fmt.Fprintf(out, "seeded %s: %d countries, %d activity types, %d roles, %d tasks\n",
		cfg.DataDir, len(countries), len(types), len(roles), len(tasks))
	return nil
}
