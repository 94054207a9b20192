package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/dosewatch/adherence-api/internal/model"
	"github.com/dosewatch/adherence-api/internal/repository"
)

type endpointRepository struct {
	db *sqlx.DB
}

func NewEndpointRepository(db *sqlx.DB) repository.EndpointRepository {
	return &endpointRepository{db: db}
}

func (r *endpointRepository) Create(ctx context.Context, endpoint *model.NotificationEndpoint) error {
	query := `
		INSERT INTO notification_endpoints (id, user_id, kind, address, device_name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, address) DO NOTHING
	`
	endpoint.CreatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		endpoint.ID,
		endpoint.UserID,
		endpoint.Kind,
		endpoint.Address,
		endpoint.DeviceName,
		endpoint.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create endpoint: %w", err)
	}
	return nil
}

func (r *endpointRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*model.NotificationEndpoint, error) {
	query := `SELECT * FROM notification_endpoints WHERE user_id = $1`
	var endpoints []*model.NotificationEndpoint
	err := r.db.SelectContext(ctx, &endpoints, query, userID)
	return endpoints, err
}

// Delete is scoped to the owner so one user can never silence another
// user's alerts by guessing endpoint ids.
func (r *endpointRepository) Delete(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	query := `DELETE FROM notification_endpoints WHERE id = $1 AND user_id = $2`
	result, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return false, fmt.Errorf("failed to delete endpoint: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}
