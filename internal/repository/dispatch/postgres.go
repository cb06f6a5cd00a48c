package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"marketplace-storefront/internal/domain"
)

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *log.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *log.Logger) Repository {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &postgresRepo{pool: pool, logger: logger}
}

func (r *postgresRepo) Get(ctx context.Context, orderID, fulfillmentID string) (*domain.Timeline, error) {
	const q = `
SELECT order_id, fulfillment_id, stage, canceled, raw_status, confirmation, updated_at
FROM dispatch_snapshots
WHERE order_id = $1 AND fulfillment_id = $2
`
	var (
		t            domain.Timeline
		stage        string
		confirmation []byte
	)
	err := r.pool.QueryRow(ctx, q, orderID, fulfillmentID).Scan(
		&t.OrderID,
		&t.FulfillmentID,
		&stage,
		&t.Canceled,
		&t.RawStatus,
		&confirmation,
		&t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	t.Stage = domain.Stage(stage)
	if len(confirmation) > 0 {
		var c domain.Confirmation
		if err := json.Unmarshal(confirmation, &c); err != nil {
			return nil, fmt.Errorf("decode confirmation: %w", err)
		}
		t.Confirmation = &c
	}
	return &t, nil
}

func (r *postgresRepo) Save(ctx context.Context, t domain.Timeline) error {
	const stmt = `
INSERT INTO dispatch_snapshots (order_id, fulfillment_id, stage, canceled, raw_status, confirmation, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, now())
ON CONFLICT (order_id, fulfillment_id) DO UPDATE
SET stage = EXCLUDED.stage,
    canceled = EXCLUDED.canceled,
    raw_status = EXCLUDED.raw_status,
    confirmation = EXCLUDED.confirmation,
    updated_at = EXCLUDED.updated_at
WHERE dispatch_snapshots.stage <> 'delivered' AND NOT dispatch_snapshots.canceled
`
	var confirmation []byte
	if t.Confirmation != nil {
		b, err := json.Marshal(t.Confirmation)
		if err != nil {
			return fmt.Errorf("encode confirmation: %w", err)
		}
		confirmation = b
	}
	cmd, err := r.pool.Exec(ctx, stmt, t.OrderID, t.FulfillmentID, string(t.Stage), t.Canceled, t.RawStatus, confirmation)
	if err != nil {
		r.logger.Printf("dispatch repo: save order_id=%s fulfillment_id=%s error=%v", t.OrderID, t.FulfillmentID, err)
		return err
	}
	if cmd.RowsAffected() == 0 {
		r.logger.Printf("dispatch repo: skipped save over terminal snapshot order_id=%s fulfillment_id=%s", t.OrderID, t.FulfillmentID)
	}
	return nil
}
