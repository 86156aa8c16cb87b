package main

import (
	"context"

	"github.com/shubomifashakin/Temp-AWS-Infra/internal/config"
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
		ServiceName: "user-delete-executor",
	})
	l := pkglog.L()

	if err := cfg.Require(config.WorkerUserDeleteExecutor); err != nil {
		l.Fatal().Err(err).Msg("invalid configuration")
	}

	deps, err := runtime.NewDependencies(context.Background(), cfg)
	if err != nil {
		l.Fatal().Err(err).Msg("failed to init dependencies")
	}

	e := worker.NewUserDeleteExecutor(deps.Storage, cfg.Storage.S3.Bucket)

	l.Info().Str("mode", cfg.Runtime.Mode).Msg("user-delete-executor starting")
	if err := runtime.ServeBatch(deps, config.WorkerUserDeleteExecutor, e.Handle); err != nil {
		l.Fatal().Err(err).Msg("user-delete-executor stopped")
	}
}
