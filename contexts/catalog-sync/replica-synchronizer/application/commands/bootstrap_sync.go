package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	application "shopgate/contexts/catalog-sync/replica-synchronizer/application"
	"shopgate/contexts/catalog-sync/replica-synchronizer/domain/entities"
	"shopgate/contexts/catalog-sync/replica-synchronizer/domain/services"
	"shopgate/contexts/catalog-sync/replica-synchronizer/ports"
	"shopgate/internal/shared/retry"
)

const (
	DefaultBootstrapDelay     = 5 * time.Second
	defaultBootstrapBatchSize = 500
)

type TableReport struct {
	Table   string
	Copied  int
	Skipped int
	Err     error
}

type BootstrapReport struct {
	Tables    []TableReport
	Projected int
}

// Failed lists tables whose copy was rolled back.
func (r BootstrapReport) Failed() []string {
	var failed []string
	for _, table := range r.Tables {
		if table.Err != nil {
			failed = append(failed, table.Table)
		}
	}
	return failed
}

// BootstrapSynchronizer copies every registered table from the write store
// into the read store once, parents first. Each table is copied in its own
// read-store transaction; a failing table is reported and the rest continue.
type BootstrapSynchronizer struct {
	Registry    *entities.Registry
	Source      ports.SourceStore
	Store       ports.ReplicaStore
	SideEffects SideEffects
	Clock       ports.Clock
	Delay       time.Duration
	BatchSize   int
	Sleep       retry.Sleeper
	Logger      *slog.Logger
}

func (b BootstrapSynchronizer) Run(ctx context.Context) (BootstrapReport, error) {
	logger := application.ResolveLogger(b.Logger)
	var report BootstrapReport

	sleep := b.Sleep
	if sleep == nil {
		sleep = retry.SleepContext
	}
	if err := sleep(ctx, b.Delay); err != nil {
		return report, err
	}

	started := time.Now()
	logger.InfoContext(ctx, "bootstrap sync started",
		"event", "replica_bootstrap_started",
		"module", "catalog-sync/replica-synchronizer",
		"layer", "application",
	)

	for _, schema := range b.Registry.BootstrapOrder() {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		table := b.copyTable(ctx, schema)
		report.Tables = append(report.Tables, table)
		if table.Err != nil {
			logger.ErrorContext(ctx, "bootstrap table copy failed",
				"event", "replica_bootstrap_table_failed",
				"module", "catalog-sync/replica-synchronizer",
				"layer", "application",
				"table", schema.Table,
				"error", table.Err.Error(),
			)
			continue
		}
		logger.InfoContext(ctx, "bootstrap table copied",
			"event", "replica_bootstrap_table_copied",
			"module", "catalog-sync/replica-synchronizer",
			"layer", "application",
			"table", schema.Table,
			"copied", table.Copied,
			"skipped", table.Skipped,
		)
	}

	for _, schema := range b.Registry.BootstrapOrder() {
		if schema.Search == entities.SearchNone {
			continue
		}
		projected, err := b.projectTable(ctx, schema)
		report.Projected += projected
		if err != nil {
			logger.WarnContext(ctx, "bootstrap search projection incomplete",
				"event", "replica_bootstrap_projection_failed",
				"module", "catalog-sync/replica-synchronizer",
				"layer", "application",
				"table", schema.Table,
				"error", err.Error(),
			)
		}
	}
	b.SideEffects.BumpCache(ctx)

	logger.InfoContext(ctx, "bootstrap sync completed",
		"event", "replica_bootstrap_completed",
		"module", "catalog-sync/replica-synchronizer",
		"layer", "application",
		"tables", len(report.Tables),
		"failed_tables", report.Failed(),
		"projected", report.Projected,
		"duration", time.Since(started).String(),
	)
	return report, nil
}

func (b BootstrapSynchronizer) copyTable(ctx context.Context, schema entities.TableSchema) TableReport {
	report := TableReport{Table: schema.Table}
	now := b.now()

	err := b.Store.Transaction(ctx, func(w ports.ReplicaWriter) error {
		return b.Source.StreamRows(ctx, schema, b.batchSize(), func(rows []map[string]any) error {
			for _, source := range rows {
				id := services.AsString(source[entities.ColumnID])
				if id == "" {
					report.Skipped++
					continue
				}
				row := services.FilterPayload(schema, id, source)
				if _, missing := schema.MissingMandatory(row); missing {
					report.Skipped++
					continue
				}
				if err := w.Upsert(schema, row, now); err != nil {
					return fmt.Errorf("copy %s/%s: %w", schema.Table, id, err)
				}
				report.Copied++
			}
			return nil
		})
	})
	if err != nil {
		report.Err = err
		report.Copied = 0
	}
	return report
}

func (b BootstrapSynchronizer) projectTable(ctx context.Context, schema entities.TableSchema) (int, error) {
	projected := 0
	err := b.Store.StreamRows(ctx, schema, b.batchSize(), func(rows []map[string]any) error {
		for _, row := range rows {
			if b.SideEffects.ProjectRow(ctx, schema, row) {
				projected++
			}
		}
		return nil
	})
	return projected, err
}

func (b BootstrapSynchronizer) batchSize() int {
	if b.BatchSize <= 0 {
		return defaultBootstrapBatchSize
	}
	return b.BatchSize
}

func (b BootstrapSynchronizer) now() time.Time {
	if b.Clock != nil {
		return b.Clock.Now().UTC()
	}
	return time.Now().UTC()
}
