package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coursebridge/backend/internal/models"
)

// Repository handles service-account persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an auth repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByClientID returns the service account for a client id, or nil if absent.
func (r *Repository) GetByClientID(ctx context.Context, clientID string) (*models.ServiceAccount, error) {
	const q = `SELECT id, client_id, secret_hash, capabilities, created_at
		FROM service_accounts WHERE client_id = $1`
	var a models.ServiceAccount
	err := r.pool.QueryRow(ctx, q, clientID).Scan(&a.ID, &a.ClientID, &a.SecretHash, &a.Capabilities, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get service account: %w", err)
	}
	return &a, nil
}
