package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"pharmacy-agent/internal/models"
)

type PrescriptionRepo struct {
	pool *pgxpool.Pool
}

func NewPrescriptionRepo(pool *pgxpool.Pool) *PrescriptionRepo {
	return &PrescriptionRepo{pool: pool}
}

// Latest returns the most recent prescription a user holds for a
// medication, or ErrNotFound.
func (r *PrescriptionRepo) Latest(ctx context.Context, userID, medicationID int64) (*models.Prescription, error) {
	p := &models.Prescription{}
	query := `SELECT p.id, p.user_id, p.medication_id, m.name, p.prescription_date
		FROM prescriptions p
		JOIN medications m ON p.medication_id = m.id
		WHERE p.user_id = $1 AND p.medication_id = $2
		ORDER BY p.prescription_date DESC
		LIMIT 1`

	err := r.pool.QueryRow(ctx, query, userID, medicationID).Scan(
		&p.ID, &p.UserID, &p.MedicationID, &p.MedicationName, &p.PrescriptionDate,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return p, nil
}
