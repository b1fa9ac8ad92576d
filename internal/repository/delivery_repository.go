package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"signal-bot/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

var deliverySchema = []string{
	`CREATE TABLE IF NOT EXISTS signal_deliveries (
		id           BIGSERIAL PRIMARY KEY,
		user_id      BIGINT NOT NULL,
		request_id   TEXT NOT NULL DEFAULT '',
		pair         TEXT NOT NULL,
		expiry       TEXT NOT NULL,
		direction    TEXT NOT NULL,
		confidence   SMALLINT NOT NULL,
		volatility   TEXT NOT NULL,
		sent         BOOLEAN NOT NULL DEFAULT TRUE,
		delivered_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS signal_deliveries_delivered_at_idx ON signal_deliveries (delivered_at DESC)`,
	`CREATE INDEX IF NOT EXISTS signal_deliveries_user_idx ON signal_deliveries (user_id, delivered_at DESC)`,
}

// DeliveryRepository journals delivered signals. It is an audit trail only;
// sessions are never restored from it.
type DeliveryRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewDeliveryRepository(pool PgxPool, tracer trace.Tracer) *DeliveryRepository {
	return &DeliveryRepository{pool: pool, tracer: tracer}
}

func (r *DeliveryRepository) RunMigrations(ctx context.Context) error {
	ctx, span := r.tracer.Start(ctx, "delivery-repo.run-migrations")
	defer span.End()

	for _, stmt := range deliverySchema {
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("delivery schema: %w", err)
		}
	}
	return nil
}

func (r *DeliveryRepository) Record(ctx context.Context, d domain.Delivery) error {
	ctx, span := r.tracer.Start(ctx, "delivery-repo.record")
	defer span.End()
	span.SetAttributes(attribute.String("pair", string(d.Pair)), attribute.String("direction", string(d.Direction)))

	deliveredAt := d.DeliveredAt
	if deliveredAt.IsZero() {
		deliveredAt = time.Now()
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO signal_deliveries (user_id, request_id, pair, expiry, direction, confidence, volatility, sent, delivered_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		int64(d.User),
		string(d.RequestID),
		string(d.Pair),
		string(d.Expiry),
		string(d.Direction),
		int16(d.Confidence),
		string(d.Volatility),
		d.Sent,
		deliveredAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("record delivery: %w", err)
	}
	return nil
}

func (r *DeliveryRepository) ListRecent(ctx context.Context, filter domain.DeliveryFilter) ([]domain.Delivery, error) {
	ctx, span := r.tracer.Start(ctx, "delivery-repo.list-recent")
	defer span.End()

	args := make([]any, 0, 3)
	var sb strings.Builder
	sb.WriteString(`SELECT id, user_id, request_id, pair, expiry, direction, confidence, volatility, sent, delivered_at
		FROM signal_deliveries
		WHERE 1=1`)

	if filter.User != 0 {
		args = append(args, int64(filter.User))
		sb.WriteString(fmt.Sprintf(" AND user_id = $%d", len(args)))
	}
	if filter.Pair != "" {
		args = append(args, string(filter.Pair))
		sb.WriteString(fmt.Sprintf(" AND pair = $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	args = append(args, limit)
	sb.WriteString(fmt.Sprintf(" ORDER BY delivered_at DESC LIMIT $%d", len(args)))

	rows, err := r.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Delivery, 0, limit)
	for rows.Next() {
		var d domain.Delivery
		var user int64
		var requestID, pair, expiry, direction, volatility string
		var confidence int16
		if err := rows.Scan(&d.ID, &user, &requestID, &pair, &expiry, &direction, &confidence, &volatility, &d.Sent, &d.DeliveredAt); err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		d.User = domain.UserID(user)
		d.RequestID = domain.RequestID(requestID)
		d.Pair = domain.Pair(pair)
		d.Expiry = domain.Expiry(expiry)
		d.Direction = domain.Direction(direction)
		d.Confidence = int(confidence)
		d.Volatility = domain.Volatility(volatility)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deliveries: %w", err)
	}
	return out, nil
}

// CountByDirection summarises the journal for the admin API.
func (r *DeliveryRepository) CountByDirection(ctx context.Context, since time.Time) (map[domain.Direction]int64, error) {
	ctx, span := r.tracer.Start(ctx, "delivery-repo.count-by-direction")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT direction, COUNT(*) FROM signal_deliveries WHERE delivered_at >= $1 GROUP BY direction`,
		since.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("count deliveries: %w", err)
	}
	defer rows.Close()

	out := make(map[domain.Direction]int64)
	for rows.Next() {
		var direction string
		var n int64
		if err := rows.Scan(&direction, &n); err != nil {
			return nil, fmt.Errorf("scan delivery count: %w", err)
		}
		out[domain.Direction(direction)] = n
	}
	return out, rows.Err()
}

// DeleteBefore prunes journal rows older than cutoff and reports how many
// were removed.
func (r *DeliveryRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, span := r.tracer.Start(ctx, "delivery-repo.delete-before")
	defer span.End()

	tag, err := r.pool.Exec(ctx, `DELETE FROM signal_deliveries WHERE delivered_at < $1`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune deliveries: %w", err)
	}
	return tag.RowsAffected(), nil
}
