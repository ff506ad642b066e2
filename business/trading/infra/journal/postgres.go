// Package journal persists trade decisions.
package journal

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/goccy/go-json"
	_ "github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fd1az/flashguard/business/trading/domain"
	"github.com/fd1az/flashguard/internal/apm"
	"github.com/fd1az/flashguard/internal/apperror"
	"github.com/fd1az/flashguard/internal/logger"
)

const schema = `
CREATE TABLE IF NOT EXISTS trade_decisions (
	opportunity_id TEXT PRIMARY KEY,
	approved       BOOLEAN NOT NULL,
	stage          TEXT NOT NULL,
	reasons        JSONB NOT NULL DEFAULT '[]',
	warnings       JSONB NOT NULL DEFAULT '[]',
	amount         NUMERIC NOT NULL,
	net_profit     NUMERIC NOT NULL,
	confidence     DOUBLE PRECISION NOT NULL,
	safety_level   TEXT NOT NULL,
	relay          TEXT,
	bundle_hash    TEXT,
	dry_run        BOOLEAN NOT NULL,
	decided_at     TIMESTAMPTZ NOT NULL,
	elapsed_ms     BIGINT NOT NULL
)`

const insertDecision = `
INSERT INTO trade_decisions (
	opportunity_id, approved, stage, reasons, warnings, amount, net_profit,
	confidence, safety_level, relay, bundle_hash, dry_run, decided_at, elapsed_ms
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
ON CONFLICT (opportunity_id) DO NOTHING`

// Postgres writes decisions to a trade_decisions table.
type Postgres struct {
	db     *sql.DB
	logger logger.LoggerInterface
	tracer apm.Tracer
}

// OpenPostgres connects to dsn and creates the table when missing.
func OpenPostgres(ctx context.Context, dsn string, log logger.LoggerInterface) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, apperror.New(apperror.CodeJournalWriteFailed,
			apperror.WithContext("open database"), apperror.WithCause(err))
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, apperror.New(apperror.CodeJournalWriteFailed,
			apperror.WithContext("ping database"), apperror.WithCause(err))
	}

	p := NewPostgres(db, log)
	if err := p.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	log.Info(ctx, "decision journal connected")
	return p, nil
}

// NewPostgres wraps an open database.
func NewPostgres(db *sql.DB, log logger.LoggerInterface) *Postgres {
	return &Postgres{
		db:     db,
		logger: log,
		tracer: apm.NewTracer("github.com/fd1az/flashguard/business/trading/infra/journal"),
	}
}

// Migrate creates the decisions table.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return apperror.New(apperror.CodeJournalWriteFailed,
			apperror.WithContext("create trade_decisions"), apperror.WithCause(err))
	}
	return nil
}

// Record inserts d. A decision already journaled is left as is.
func (p *Postgres) Record(ctx context.Context, d domain.Decision) error {
	ctx, span := p.tracer.StartSpanFromContext(ctx, "journal.record")
	defer span.End()
	span.SetAttributes(
		attribute.String("opportunity_id", d.OpportunityID),
		attribute.Bool("approved", d.Approved),
	)

	reasons, err := marshalList(d.Reasons)
	if err != nil {
		return err
	}
	warnings, err := marshalList(d.Warnings)
	if err != nil {
		return err
	}

	_, err = p.db.ExecContext(ctx, insertDecision,
		d.OpportunityID,
		d.Approved,
		string(d.Stage),
		reasons,
		warnings,
		d.Amount.String(),
		d.NetProfit.String(),
		d.Confidence,
		d.SafetyLevel.String(),
		nullable(d.Relay),
		nullable(d.BundleHash),
		d.DryRun,
		d.DecidedAt,
		d.Elapsed.Milliseconds(),
	)
	if err != nil {
		span.NoticeError(err)
		return apperror.New(apperror.CodeJournalWriteFailed,
			apperror.WithContext(d.OpportunityID), apperror.WithCause(err))
	}
	return nil
}

// Close closes the database.
func (p *Postgres) Close() error {
	return p.db.Close()
}

func marshalList(items []string) (string, error) {
	if items == nil {
		items = []string{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("encode list: %w", err)
	}
	return string(b), nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
