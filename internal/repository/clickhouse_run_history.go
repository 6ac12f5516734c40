package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"MarketBrief/internal/domain/models"
	pkgch "MarketBrief/pkg/clickhouse"
	applogger "MarketBrief/pkg/logger"
	"MarketBrief/pkg/util"
)

const (
	runsTable       = "report_runs"
	maxMessageRunes = 2048
)

// RunHistorySchema returns the idempotent DDL for the run archive.
func RunHistorySchema(database string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s.%s (
            run_id       String,
            trigger      LowCardinality(String),
            status       LowCardinality(String),
            stage        LowCardinality(String),
            message      String,
            model        String,
            price_source LowCardinality(String),
            price        String,
            headlines    UInt32,
            delivered    Bool,
            started_at   DateTime64(3, 'UTC'),
            finished_at  DateTime64(3, 'UTC')
        )
        ENGINE = MergeTree
        ORDER BY (started_at, run_id)
        TTL toDateTime(started_at) + INTERVAL 180 DAY
    `, database, runsTable),
	}
}

// CHRunHistory implements RunHistory backed by ClickHouse.
// The caller owns the client and closes it.
type CHRunHistory struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewCHRunHistory(ch *pkgch.Client, database string, l *applogger.Logger) *CHRunHistory {
	if l == nil {
		l = applogger.Nop()
	}
	return &CHRunHistory{db: ch.DB(), table: database + "." + runsTable, l: l}
}

func (h *CHRunHistory) Record(ctx context.Context, r models.RunRecord) error {
	start := time.Now()
	q := fmt.Sprintf(`INSERT INTO %s
        (run_id, trigger, status, stage, message, model, price_source, price, headlines, delivered, started_at, finished_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, h.table)

	_, err := h.db.ExecContext(ctx, q,
		r.RunID,
		r.Trigger,
		r.Status,
		string(r.Stage),
		util.Truncate(r.Message, maxMessageRunes),
		r.Model,
		string(r.PriceSource),
		r.Price,
		uint32(r.Headlines),
		r.Delivered,
		r.StartedAt.UTC(),
		r.FinishedAt.UTC(),
	)
	if err != nil {
		h.l.Error("clickhouse record_run error", applogger.String("run_id", r.RunID), applogger.Error(err))
		return fmt.Errorf("record run: %w", err)
	}
	h.l.Debug("clickhouse record_run ok",
		applogger.String("run_id", r.RunID),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return nil
}

// Recent returns up to limit runs, newest first.
func (h *CHRunHistory) Recent(ctx context.Context, limit int) ([]models.RunRecord, error) {
	q := fmt.Sprintf(`
        SELECT run_id, trigger, status, stage, message, model, price_source, price, headlines, delivered, started_at, finished_at
        FROM %s
        ORDER BY started_at DESC
        LIMIT ?
    `, h.table)

	rows, err := h.db.QueryContext(ctx, q, limit)
	if err != nil {
		h.l.Error("clickhouse recent_runs query error", applogger.Int("limit", limit), applogger.Error(err))
		return nil, fmt.Errorf("recent runs: %w", err)
	}
	defer rows.Close()

	out := make([]models.RunRecord, 0, limit)
	for rows.Next() {
		var (
			r         models.RunRecord
			stage     string
			source    string
			headlines uint32
		)
		if err := rows.Scan(&r.RunID, &r.Trigger, &r.Status, &stage, &r.Message, &r.Model,
			&source, &r.Price, &headlines, &r.Delivered, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Stage = models.Stage(stage)
		r.PriceSource = models.PriceSource(source)
		r.Headlines = int(headlines)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

// NoopRunHistory is used when ClickHouse is disabled.
type NoopRunHistory struct{}

func (NoopRunHistory) Record(context.Context, models.RunRecord) error { return nil }

func (NoopRunHistory) Recent(context.Context, int) ([]models.RunRecord, error) {
	return []models.RunRecord{}, nil
}
