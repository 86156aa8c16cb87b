package main

import (
	"context"

	"github.com/shubomifashakin/Temp-AWS-Infra/internal/config"
	"github.com/shubomifashakin/Temp-AWS-Infra/internal/domain"
	"github.com/shubomifashakin/Temp-AWS-Infra/internal/runtime"
	"github.com/shubomifashakin/Temp-AWS-Infra/internal/worker"
	pkglog "github.com/shubomifashakin/Temp-AWS-Infra/pkg/log"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load config")
	}

	// Initialise structured logger.
	pkglog.Init(pkglog.Config{
		Level:       cfg.Log.Level,
		Pretty:      cfg.Log.Pretty,
		ServiceName: "delete-relay",
	})
	l := pkglog.L()

	if err := cfg.Require(config.WorkerDeleteRelay); err != nil {
		l.Fatal().Err(err).Msg("invalid configuration")
	}

	deps, err := runtime.NewDependencies(context.Background(), cfg)
	if err != nil {
		l.Fatal().Err(err).Msg("failed to init dependencies")
	}

	r := worker.NewDeleteRelay(deps.Publisher(cfg.Queues.Target), deps.RelayPolicy())

	l.Info().Str("mode", cfg.Runtime.Mode).Msg("delete-relay starting")
	err = runtime.ServeRelay(deps, config.WorkerDeleteRelay, r, []string{
		string(domain.EventObjectRemoved),
		"s3:LifecycleExpiration:Delete",
	})
	if err != nil {
		l.Fatal().Err(err).Msg("delete-relay stopped")
	}
}
