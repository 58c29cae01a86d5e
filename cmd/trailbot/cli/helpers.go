package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/jwjoung/cloudtrail-bot/internal/audit"
	"github.com/jwjoung/cloudtrail-bot/internal/awsclient"
	"github.com/jwjoung/cloudtrail-bot/internal/broker"
	"github.com/jwjoung/cloudtrail-bot/internal/credential"
	"github.com/jwjoung/cloudtrail-bot/internal/directory"
	"github.com/jwjoung/cloudtrail-bot/internal/logging"
	"github.com/jwjoung/cloudtrail-bot/internal/settings"
	"github.com/jwjoung/cloudtrail-bot/internal/tools"
)

// app wires the credential core for one CLI invocation.
type app struct {
	resolver *settings.Resolver
	pools    *directory.PoolManager
	service  *credential.Service
	trail    *tools.CloudTrail
	registry *tools.Registry
	logger   zerolog.Logger
}

func loadApp(ctx context.Context) (*app, func(), error) {
	logger := logging.NewLogger(os.Getenv("LOG_LEVEL"), "trailbot")

	store, err := settings.NewSSMStore(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to parameter store: %w", err)
	}

	resolver := settings.NewResolver(store, logger)
	pools := directory.NewPoolManager(resolver, logger)
	dir := directory.New(pools, resolver, logger)
	brk := broker.New(resolver, logger)
	svc := credential.New(resolver, dir, brk, logger)

	// The issuance log is opt-in; without a path the service runs without it.
	var issuanceDB interface{ Close() error }
	if path := os.Getenv("TRAILBOT_ISSUANCE_DB"); path != "" {
		db, err := audit.Open(path)
		if err != nil {
			return nil, nil, fmt.Errorf("opening issuance log: %w", err)
		}
		al, err := audit.NewLogger(db)
		if err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("starting issuance log: %w", err)
		}
		svc.WithIssuanceLog(al)
		pools.WithIssuanceLog(al)
		issuanceDB = db
	}

	factory := awsclient.New(logger)
	trail := tools.NewCloudTrail(svc, factory, logger)

	registry := tools.NewRegistry(logger)
	tools.RegisterCloudTrailTools(registry, trail)

	cleanup := func() {
		pools.Close()
		if issuanceDB != nil {
			issuanceDB.Close()
		}
	}

	return &app{
		resolver: resolver,
		pools:    pools,
		service:  svc,
		trail:    trail,
		registry: registry,
		logger:   logger,
	}, cleanup, nil
}
