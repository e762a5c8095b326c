// Package server parses server command flags and launches the admin API.
package server

import (
	"context"
	"flag"
	"log"

	"github.com/louisbranch/storefront/internal/engine"
	entrypoint "github.com/louisbranch/storefront/internal/platform/cmd"
	"github.com/louisbranch/storefront/internal/services/admin"
)

// Config holds server command configuration.
type Config struct {
	Addr           string `env:"STOREFRONT_SERVER_ADDR" envDefault:":8080"`
	DataDir        string `env:"STOREFRONT_DATA_DIR" envDefault:"data"`
	RedisAddr      string `env:"STOREFRONT_REDIS_ADDR"`
	RedisPassword  string `env:"STOREFRONT_REDIS_PASSWORD"`
	RedisDB        int    `env:"STOREFRONT_REDIS_DB"`
	ScriptsDir     string `env:"STOREFRONT_SCRIPTS_DIR"`
	CacheKeyPrefix string `env:"STOREFRONT_CACHE_KEY_PREFIX" envDefault:"storefront"`
	SkipSeed       bool   `env:"STOREFRONT_SERVER_SKIP_SEED"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "The admin API listen address")
	fs.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "The directory holding the SQLite databases")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "Redis address for shared cache and locks (empty = in-process)")
	fs.StringVar(&cfg.ScriptsDir, "scripts-dir", cfg.ScriptsDir, "Directory of Lua task handlers")
	fs.BoolVar(&cfg.SkipSeed, "skip-seed", cfg.SkipSeed, "Skip installing baseline records on boot")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the admin API server.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceServer, func(ctx context.Context) error {
		return runServer(ctx, cfg)
	})
}

func runServer(ctx context.Context, cfg Config) error {
	token, err := admin.LoadTokenConfigFromEnv(nil)
	if err != nil {
		return err
	}

	eng, err := engine.New(engine.Config{
		DataDir:        cfg.DataDir,
		RedisAddr:      cfg.RedisAddr,
		RedisPassword:  cfg.RedisPassword,
		RedisDB:        cfg.RedisDB,
		ScriptsDir:     cfg.ScriptsDir,
		CacheKeyPrefix: cfg.CacheKeyPrefix,
	})
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
	if !cfg.SkipSeed {
		if err := eng.Seed(ctx); err != nil {
			return err
		}
	}
	if err := eng.RunStartup(ctx); err != nil {
		return err
	}
	routes, err := eng.Compose()
	if err != nil {
		return err
	}

	server := admin.NewServer(admin.Config{Addr: cfg.Addr, Token: token}, routes)
	return server.ListenAndServe(ctx)
}
