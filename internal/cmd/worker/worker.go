// Package worker parses worker command flags and runs the task execution loop.
package worker

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/louisbranch/storefront/internal/engine"
	entrypoint "github.com/louisbranch/storefront/internal/platform/cmd"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// Config holds worker command configuration.
type Config struct {
	Port           int           `env:"STOREFRONT_WORKER_PORT" envDefault:"8089"`
	DataDir        string        `env:"STOREFRONT_DATA_DIR" envDefault:"data"`
	RedisAddr      string        `env:"STOREFRONT_REDIS_ADDR"`
	RedisPassword  string        `env:"STOREFRONT_REDIS_PASSWORD"`
	RedisDB        int           `env:"STOREFRONT_REDIS_DB"`
	ScriptsDir     string        `env:"STOREFRONT_SCRIPTS_DIR"`
	CacheKeyPrefix string        `env:"STOREFRONT_CACHE_KEY_PREFIX" envDefault:"storefront"`
	PollInterval   time.Duration `env:"STOREFRONT_WORKER_POLL_INTERVAL" envDefault:"30s"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The worker health gRPC server port")
	fs.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "The directory holding the SQLite databases")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "Redis address for shared cache and locks (empty = in-process)")
	fs.StringVar(&cfg.ScriptsDir, "scripts-dir", cfg.ScriptsDir, "Directory of Lua task handlers")
	fs.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "Due-task poll interval")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the task execution loop alongside a gRPC health server.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceWorker, func(ctx context.Context) error {
		return runWorker(ctx, cfg)
	})
}

// runWorker boots the engine without seeding. The worker shares its data
// directory with the server process, which owns installing baseline records.
func runWorker(ctx context.Context, cfg Config) error {
	eng, err := engine.New(engine.Config{
		DataDir:        cfg.DataDir,
		RedisAddr:      cfg.RedisAddr,
		RedisPassword:  cfg.RedisPassword,
		RedisDB:        cfg.RedisDB,
		ScriptsDir:     cfg.ScriptsDir,
		CacheKeyPrefix: cfg.CacheKeyPrefix,
		PollInterval:   cfg.PollInterval,
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
	if err := eng.RunStartup(ctx); err != nil {
		return err
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return fmt.Errorf("listen on worker port %d: %w", cfg.Port, err)
	}
	defer listener.Close()

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus("worker.runtime", grpc_health_v1.HealthCheckResponse_SERVING)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- grpcServer.Serve(listener)
	}()
	defer func() {
		healthServer.Shutdown()
		grpcServer.GracefulStop()
		<-serveErr
	}()

	log.Printf("worker listening at %v", listener.Addr())
	return eng.Runner.Run(ctx)
}
