package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	cli "github.com/urfave/cli/v2"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "willowd",
		Usage:   "moderation flag daemon",
		Version: versioninfo.Short(),
	}

	app.Commands = []*cli.Command{
		runCmd,
	}

	return app.Run(args)
}

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "run the service",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "database-url",
			Value:   "sqlite://data/willowd/willow.db",
			EnvVars: []string{"DATABASE_URL"},
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "redis connection URL for the flag store; empty runs fully in-memory",
			EnvVars: []string{"WILLOW_REDIS_URL", "REDIS_URL"},
		},
		&cli.StringFlag{
			Name:    "bind",
			Usage:   "IP or address, and port, to listen on for HTTP APIs",
			Value:   ":3999",
			EnvVars: []string{"WILLOW_BIND"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics APIs",
			Value:   ":3998",
			EnvVars: []string{"WILLOW_METRICS_LISTEN"},
		},
		&cli.Int64Flag{
			Name:    "min-reputation",
			Usage:   "reputation floor for reporters without edit rights on the target",
			Value:   0,
			EnvVars: []string{"WILLOW_MIN_REPUTATION"},
		},
		&cli.IntFlag{
			Name:    "max-db-connections",
			Value:   40,
			EnvVars: []string{"MAX_DB_CONNECTIONS"},
		},
		&cli.DurationFlag{
			Name:    "user-cache-ttl",
			Value:   5 * time.Minute,
			EnvVars: []string{"WILLOW_USER_CACHE_TTL"},
		},
	},
	Action: func(cctx *cli.Context) error {
		logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
		slog.SetDefault(logger)

		srv, err := NewServer(ServerConfig{
			Logger:           logger,
			DatabaseURL:      cctx.String("database-url"),
			RedisURL:         cctx.String("redis-url"),
			Bind:             cctx.String("bind"),
			MinReputation:    cctx.Int64("min-reputation"),
			MaxDBConnections: cctx.Int("max-db-connections"),
			UserCacheTTL:     cctx.Duration("user-cache-ttl"),
		})
		if err != nil {
			return err
		}

		go func() {
			if err := srv.RunMetrics(cctx.String("metrics-listen")); err != nil {
				logger.Error("metrics listener failed", "err", err)
				os.Exit(-1)
			}
		}()

		return srv.RunAPI()
	},
}
