package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/dosewatch/adherence-api/internal/model"
	"github.com/dosewatch/adherence-api/internal/repository"
)

type connectionRepository struct {
	db *sqlx.DB
}

func NewConnectionRepository(db *sqlx.DB) repository.ConnectionRepository {
	return &connectionRepository{db: db}
}

func (r *connectionRepository) ListActiveRelatives(ctx context.Context, patientID uuid.UUID) ([]uuid.UUID, error) {
	query := `SELECT relative_id FROM connections WHERE patient_id = $1 AND status = $2`
	var relatives []uuid.UUID
	err := r.db.SelectContext(ctx, &relatives, query, patientID, model.ConnectionStatusActive)
	return relatives, err
}
