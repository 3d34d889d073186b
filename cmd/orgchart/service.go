package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/iota-uz/orgflow/modules/orgchart/domain/record"
	"github.com/iota-uz/orgflow/modules/orgchart/infrastructure/persistence"
	"github.com/iota-uz/orgflow/modules/orgchart/services"
	"github.com/iota-uz/orgflow/pkg/composables"
	"github.com/iota-uz/orgflow/pkg/configuration"
)

// openService wires an OrgChartService for opts. The returned context carries
// the database pool in dataset mode; close releases connections.
func openService(ctx context.Context, opts sourceOptions) (*services.OrgChartService, context.Context, func(), error) {
	if err := opts.validate(); err != nil {
		return nil, nil, nil, err
	}
	if len(opts.inputs) > 0 {
		normalizer, err := loadNormalizer(opts.mapping)
		if err != nil {
			return nil, nil, nil, err
		}
		raws, err := readInputs(ctx, opts.inputs, opts.sheet)
		if err != nil {
			return nil, nil, nil, err
		}
		svc := services.NewOrgChartService(services.StaticSource(raws), services.Config{
			MaxPasses:  opts.maxPasses,
			Normalizer: normalizer,
		})
		return svc, ctx, func() {}, nil
	}

	conf := configuration.Use()
	cfg := services.ConfigFromOptions(conf.Forest)
	cfg.Dataset = strings.TrimSpace(opts.dataset)
	if opts.maxPasses > 0 {
		cfg.MaxPasses = opts.maxPasses
	}
	normalizer, err := record.NewNormalizer(record.CanonicalFieldMapping())
	if err != nil {
		return nil, nil, nil, err
	}
	cfg.Normalizer = normalizer

	pool, err := connectDB(ctx, conf)
	if err != nil {
		return nil, nil, nil, withCode(exitDB, err)
	}
	closers := []func(){pool.Close}
	if conf.Forest.CacheBackend == "redis" {
		client := connectRedis(conf)
		cfg.Snapshots = persistence.NewRedisSnapshotStore(client, conf.Forest.SnapshotPrefix, conf.Forest.CacheTTL)
		closers = append(closers, func() { _ = client.Close() })
	}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	src := persistence.NewDatasetSource(persistence.NewRecordRepository(), cfg.Dataset)
	ctx = composables.WithDataset(composables.WithPool(ctx, pool), cfg.Dataset)
	return services.NewOrgChartService(src, cfg), ctx, closeAll, nil
}

// serviceExit maps service failures onto process exit codes.
func serviceExit(err error) error {
	if err == nil {
		return nil
	}
	var ce *cliError
	if errors.As(err, &ce) {
		return err
	}
	switch services.ErrorCode(err) {
	case services.CodeNodeNotFound:
		return withCode(exitNotFound, err)
	case services.CodeInvalidQuery, services.CodeTooManyRecords:
		return withCode(exitValidation, err)
	case services.CodeSourceFailed:
		return withCode(exitDB, err)
	case "":
		return withCode(1, fmt.Errorf("unexpected failure: %w", err))
	default:
		return err
	}
}
