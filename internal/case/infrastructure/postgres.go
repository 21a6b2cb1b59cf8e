package infrastructure

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/medsecop/platform/internal/case/domain"
	"github.com/medsecop/platform/internal/shared/errors"
	"github.com/medsecop/platform/internal/shared/types"
)

const caseColumns = `id, case_number, patient_id, doctor_id, title, description,
		specialty, status, priority, version, created_at, updated_at, completed_at`

// PostgresRepository persists cases in PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new case repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Save persists a new case
func (r *PostgresRepository) Save(ctx context.Context, c *domain.Case) error {
	query := `
		INSERT INTO cases.cases (
			id, case_number, patient_id, doctor_id, title, description,
			specialty, status, priority, version, created_at, updated_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := r.pool.Exec(ctx, query,
		c.ID, c.CaseNumber, c.PatientID, c.DoctorID, c.Title, c.Description,
		c.Specialty, c.Status, c.Priority, c.Version, c.CreatedAt, c.UpdatedAt, c.CompletedAt,
	)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return errors.Conflict("case with this number already exists")
		}
		return errors.Wrap(err, "failed to save case")
	}

	return nil
}

// FindByID finds a case by ID
func (r *PostgresRepository) FindByID(ctx context.Context, id types.ID) (*domain.Case, error) {
	query := fmt.Sprintf(`SELECT %s FROM cases.cases WHERE id = $1`, caseColumns)

	c, err := r.scanCase(r.pool.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("case", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get case")
	}

	return c, nil
}

// Update persists a mutated case. The write is conditioned on the case's
// current version; concurrent writers lose with a Conflict error.
func (r *PostgresRepository) Update(ctx context.Context, c *domain.Case) error {
	query := `
		UPDATE cases.cases SET
			doctor_id = $3, title = $4, description = $5, specialty = $6,
			status = $7, priority = $8, version = version + 1,
			updated_at = $9, completed_at = $10
		WHERE id = $1 AND version = $2`

	result, err := r.pool.Exec(ctx, query,
		c.ID, c.Version,
		c.DoctorID, c.Title, c.Description, c.Specialty,
		c.Status, c.Priority, c.UpdatedAt, c.CompletedAt,
	)

	if err != nil {
		return errors.Wrap(err, "failed to update case")
	}

	if result.RowsAffected() == 0 {
		// Disambiguate a missing row from a stale version
		var exists bool
		checkErr := r.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM cases.cases WHERE id = $1)`, c.ID,
		).Scan(&exists)
		if checkErr != nil {
			return errors.Wrap(checkErr, "failed to update case")
		}
		if !exists {
			return errors.NotFound("case", c.ID.String())
		}
		return errors.Conflict("case was modified by another request")
	}

	c.Version++
	return nil
}

// List lists cases with optional filters
func (r *PostgresRepository) List(ctx context.Context, filter domain.ListFilter) ([]domain.Case, int, error) {
	return r.list(ctx, filter, "", nil)
}

// FindByPatient lists cases owned by the given patient
func (r *PostgresRepository) FindByPatient(ctx context.Context, patientID types.ID, filter domain.ListFilter) ([]domain.Case, int, error) {
	return r.list(ctx, filter, "patient_id", &patientID)
}

// FindByDoctor lists cases assigned to the given doctor
func (r *PostgresRepository) FindByDoctor(ctx context.Context, doctorID types.ID, filter domain.ListFilter) ([]domain.Case, int, error) {
	return r.list(ctx, filter, "doctor_id", &doctorID)
}

func (r *PostgresRepository) list(ctx context.Context, filter domain.ListFilter, ownerColumn string, ownerID *types.ID) ([]domain.Case, int, error) {
	var conditions []string
	var args []interface{}
	argNum := 1

	if ownerColumn != "" && ownerID != nil {
		conditions = append(conditions, fmt.Sprintf("%s = $%d", ownerColumn, argNum))
		args = append(args, *ownerID)
		argNum++
	}

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argNum))
		args = append(args, *filter.Status)
		argNum++
	}

	if filter.Specialty != nil {
		conditions = append(conditions, fmt.Sprintf("specialty = $%d", argNum))
		args = append(args, *filter.Specialty)
		argNum++
	}

	if filter.Priority != nil {
		conditions = append(conditions, fmt.Sprintf("priority = $%d", argNum))
		args = append(args, *filter.Priority)
		argNum++
	}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(title ILIKE $%d OR case_number ILIKE $%d)", argNum, argNum))
		args = append(args, "%"+filter.Search+"%")
		argNum++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	// Get total count
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM cases.cases %s", whereClause)
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count cases")
	}

	limit := 50
	if filter.Limit > 0 && filter.Limit <= 100 {
		limit = filter.Limit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	orderBy := "created_at"
	switch filter.OrderBy {
	case "updated_at", "priority", "status", "case_number":
		orderBy = filter.OrderBy
	}
	direction := "ASC"
	if filter.OrderDesc {
		direction = "DESC"
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM cases.cases
		%s
		ORDER BY %s %s
		LIMIT $%d OFFSET $%d`, caseColumns, whereClause, orderBy, direction, argNum, argNum+1)

	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list cases")
	}
	defer rows.Close()

	var cases []domain.Case
	for rows.Next() {
		c, err := r.scanCase(rows)
		if err != nil {
			return nil, 0, errors.Wrap(err, "failed to scan case")
		}
		cases = append(cases, *c)
	}

	return cases, total, nil
}

func (r *PostgresRepository) scanCase(row pgx.Row) (*domain.Case, error) {
	c := &domain.Case{}
	err := row.Scan(
		&c.ID, &c.CaseNumber, &c.PatientID, &c.DoctorID, &c.Title, &c.Description,
		&c.Specialty, &c.Status, &c.Priority, &c.Version, &c.CreatedAt, &c.UpdatedAt, &c.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}
