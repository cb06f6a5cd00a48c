package quote

import (
	"context"
	"errors"
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

// Save stores q as the latest quote for its cart and option.
func (r *postgresRepo) Save(ctx context.Context, q domain.ShippingQuote) (*domain.ShippingQuote, error) {
	const stmt = `
INSERT INTO shipping_quotes (cart_id, option_id, option_name, amount, currency_code, distance_km, created_at)
VALUES ($1, $2, $3, $4, $5, $6, now())
ON CONFLICT (cart_id, option_id) DO UPDATE
SET option_name = EXCLUDED.option_name,
    amount = EXCLUDED.amount,
    currency_code = EXCLUDED.currency_code,
    distance_km = EXCLUDED.distance_km,
    created_at = EXCLUDED.created_at
RETURNING cart_id, option_id, option_name, amount, currency_code, distance_km, created_at
`
	var out domain.ShippingQuote
	err := r.pool.QueryRow(ctx, stmt, q.CartID, q.OptionID, q.OptionName, q.Amount, q.CurrencyCode, q.DistanceKm).Scan(
		&out.CartID,
		&out.OptionID,
		&out.OptionName,
		&out.Amount,
		&out.CurrencyCode,
		&out.DistanceKm,
		&out.CreatedAt,
	)
	if err != nil {
		r.logger.Printf("quote repo: save cart_id=%s option_id=%s error=%v", q.CartID, q.OptionID, err)
		return nil, err
	}
	return &out, nil
}

func (r *postgresRepo) Latest(ctx context.Context, cartID, optionID string) (*domain.ShippingQuote, error) {
	const q = `
SELECT cart_id, option_id, option_name, amount, currency_code, distance_km, created_at
FROM shipping_quotes
WHERE cart_id = $1 AND option_id = $2
`
	var out domain.ShippingQuote
	err := r.pool.QueryRow(ctx, q, cartID, optionID).Scan(
		&out.CartID,
		&out.OptionID,
		&out.OptionName,
		&out.Amount,
		&out.CurrencyCode,
		&out.DistanceKm,
		&out.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &out, nil
}

func (r *postgresRepo) DeleteByCart(ctx context.Context, cartID string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM shipping_quotes WHERE cart_id = $1`, cartID)
	if err != nil {
		return err
	}
	r.logger.Printf("quote repo: delete cart_id=%s rows=%d", cartID, cmd.RowsAffected())
	return nil
}
