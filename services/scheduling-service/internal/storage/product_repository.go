package storage

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jihoonkang/ptbook/libs/db"
	"github.com/jihoonkang/ptbook/services/scheduling-service/internal/model"
)

// ProductRepository is the local cache of the PT product catalog, kept
// fresh by catalog events consumed off Kafka.
type ProductRepository struct {
	pool *db.Pool
}

func NewProductRepository(pool *db.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

func (r *ProductRepository) Get(ctx context.Context, productID string) (model.Product, error) {
	var p model.Product
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, session_count, duration_minutes, updated_at
		FROM products
		WHERE id = $1
	`, productID).Scan(&p.ID, &p.Name, &p.SessionCount, &p.DurationMinutes, &p.UpdatedAt)
	if err != nil {
		return model.Product{}, err
	}
	return p, nil
}

func (r *ProductRepository) Upsert(ctx context.Context, tx pgx.Tx, p model.Product) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO products (id, name, session_count, duration_minutes)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
			session_count = EXCLUDED.session_count,
			duration_minutes = EXCLUDED.duration_minutes,
			updated_at = now()
	`, p.ID, p.Name, p.SessionCount, p.DurationMinutes)
	return err
}
