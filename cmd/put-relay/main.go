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
		ServiceName: "put-relay",
	})
	l := pkglog.L()

	if err := cfg.Require(config.WorkerPutRelay); err != nil {
		l.Fatal().Err(err).Msg("invalid configuration")
	}

	deps, err := runtime.NewDependencies(context.Background(), cfg)
	if err != nil {
		l.Fatal().Err(err).Msg("failed to init dependencies")
	}

	r := worker.NewPutRelay(deps.Publisher(cfg.Queues.Target), deps.RelayPolicy())

	l.Info().Str("mode", cfg.Runtime.Mode).Msg("put-relay starting")
	err = runtime.ServeRelay(deps, config.WorkerPutRelay, r, []string{string(domain.EventObjectCreated)})
	if err != nil {
		l.Fatal().Err(err).Msg("put-relay stopped")
	}
}
