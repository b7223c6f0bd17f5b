package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pharmacy-agent/internal/models"
)

const medicationColumns = `id, name, active_ingredient, dosage, requires_prescription, in_stock,
	usage_instructions, side_effects, description, category`

type MedicationRepo struct {
	pool *pgxpool.Pool
}

func NewMedicationRepo(pool *pgxpool.Pool) *MedicationRepo {
	return &MedicationRepo{pool: pool}
}

// FindByName returns the first medication whose name or active ingredient
// contains name, case-insensitively.
func (r *MedicationRepo) FindByName(ctx context.Context, name string) (*models.Medication, error) {
	query := `SELECT ` + medicationColumns + ` FROM medications
		WHERE name ILIKE $1 OR active_ingredient ILIKE $1
		ORDER BY id LIMIT 1`
	return r.one(ctx, query, containsPattern(name))
}

// FindByBrand matches on the product name only. Stock and prescription
// checks use it so an ingredient never stands in for a product.
func (r *MedicationRepo) FindByBrand(ctx context.Context, name string) (*models.Medication, error) {
	query := `SELECT ` + medicationColumns + ` FROM medications
		WHERE name ILIKE $1
		ORDER BY id LIMIT 1`
	return r.one(ctx, query, containsPattern(name))
}

func (r *MedicationRepo) Search(ctx context.Context, filter, q string) ([]models.Medication, error) {
	var (
		query string
		args  []any
	)
	switch filter {
	case models.FilterIngredient:
		query = `SELECT ` + medicationColumns + ` FROM medications WHERE active_ingredient ILIKE $1 ORDER BY id`
		args = append(args, containsPattern(q))
	case models.FilterCategory:
		query = `SELECT ` + medicationColumns + ` FROM medications WHERE category ILIKE $1 ORDER BY id`
		args = append(args, containsPattern(q))
	case models.FilterAll:
		query = `SELECT ` + medicationColumns + ` FROM medications ORDER BY name`
	default:
		return nil, fmt.Errorf("unknown search filter %q", filter)
	}
	return r.many(ctx, query, args...)
}

func (r *MedicationRepo) List(ctx context.Context) ([]models.Medication, error) {
	return r.many(ctx, `SELECT `+medicationColumns+` FROM medications ORDER BY id`)
}

func (r *MedicationRepo) one(ctx context.Context, query string, args ...any) (*models.Medication, error) {
	m, err := scanMedication(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, notFound(err)
	}
	return m, nil
}

func (r *MedicationRepo) many(ctx context.Context, query string, args ...any) ([]models.Medication, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	meds := []models.Medication{}
	for rows.Next() {
		m, err := scanMedication(rows)
		if err != nil {
			return nil, err
		}
		meds = append(meds, *m)
	}
	return meds, rows.Err()
}

func scanMedication(row pgx.Row) (*models.Medication, error) {
	m := &models.Medication{}
	err := row.Scan(
		&m.ID, &m.Name, &m.ActiveIngredient, &m.Dosage, &m.RequiresPrescription, &m.InStock,
		&m.UsageInstructions, &m.SideEffects, &m.Description, &m.Category,
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}
