package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"pharmacy-agent/internal/models"
)

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

func (r *UserRepo) GetByID(ctx context.Context, id int64) (*models.User, error) {
	user := &models.User{}
	query := `SELECT id, name, email, phone, to_char(date_of_birth, 'YYYY-MM-DD')
		FROM users WHERE id = $1`

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&user.ID, &user.Name, &user.Email, &user.Phone, &user.DateOfBirth,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return user, nil
}

func (r *UserRepo) List(ctx context.Context) ([]models.UserSummary, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, email FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []models.UserSummary{}
	for rows.Next() {
		var u models.UserSummary
		if err := rows.Scan(&u.ID, &u.Name, &u.Email); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
