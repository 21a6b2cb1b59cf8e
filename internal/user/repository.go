package user

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/medsecop/platform/internal/auth"
	casedomain "github.com/medsecop/platform/internal/case/domain"
	"github.com/medsecop/platform/internal/shared/errors"
	"github.com/medsecop/platform/internal/shared/types"
)

// Repository defines the interface for user lookups
type Repository interface {
	FindByID(ctx context.Context, id types.ID) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	ListByRole(ctx context.Context, role auth.Role, activeOnly bool) ([]User, error)
	Save(ctx context.Context, u *User) error
}

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL user repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const userColumns = `id, email, name, role, specialty, active, created_at`

// FindByID finds a user by ID
func (r *PostgresRepository) FindByID(ctx context.Context, id types.ID) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM accounts.users WHERE id = $1`

	u := &User{}
	var specialty *string
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&u.ID, &u.Email, &u.Name, &u.Role, &specialty, &u.Active, &u.CreatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("user", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find user")
	}

	if specialty != nil {
		u.Specialty = casedomain.Specialty(*specialty)
	}
	return u, nil
}

// FindByEmail finds a user by email
func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM accounts.users WHERE email = $1`

	u := &User{}
	var specialty *string
	err := r.pool.QueryRow(ctx, query, email).Scan(
		&u.ID, &u.Email, &u.Name, &u.Role, &specialty, &u.Active, &u.CreatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("user", email)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find user by email")
	}

	if specialty != nil {
		u.Specialty = casedomain.Specialty(*specialty)
	}
	return u, nil
}

// ListByRole lists users with the given role
func (r *PostgresRepository) ListByRole(ctx context.Context, role auth.Role, activeOnly bool) ([]User, error) {
	query := `SELECT ` + userColumns + ` FROM accounts.users WHERE role = $1`
	if activeOnly {
		query += ` AND active`
	}
	query += ` ORDER BY name`

	rows, err := r.pool.Query(ctx, query, role)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list users")
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		var specialty *string
		err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &specialty, &u.Active, &u.CreatedAt)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan user")
		}
		if specialty != nil {
			u.Specialty = casedomain.Specialty(*specialty)
		}
		users = append(users, u)
	}

	return users, nil
}

// Save persists a new user
func (r *PostgresRepository) Save(ctx context.Context, u *User) error {
	query := `
		INSERT INTO accounts.users (id, email, name, role, specialty, active, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7)`

	_, err := r.pool.Exec(ctx, query,
		u.ID, u.Email, u.Name, u.Role, string(u.Specialty), u.Active, u.CreatedAt,
	)

	if err != nil {
		return errors.Wrap(err, "failed to save user")
	}

	return nil
}
