package repositories

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/desertthunder/offline/internal/models"
	"github.com/desertthunder/offline/internal/shared"
)

// PassRepository implements models.Repository[*models.Pass] for reconciliation pass history.
type PassRepository struct {
	db *sql.DB
}

var _ models.Repository[*models.Pass] = (*PassRepository)(nil)

// NewPassRepository creates a new PassRepository with the given database connection
func NewPassRepository(db *sql.DB) *PassRepository {
	return &PassRepository{db: db}
}

// Create inserts a new pass with a generated sequence. An empty ID is replaced with a generated one.
func (r *PassRepository) Create(pass *models.Pass) error {
	if err := pass.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "passes")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	if pass.ID() == "" {
		pass.SetID(shared.GenerateID())
	}
	pass.SetSequence(sequence)

	query := `
		INSERT INTO passes (
			id, sequence, loop, status, deleted, downloaded, failed,
			error_message, started_at, finished_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		pass.ID(),
		sequence,
		pass.Loop(),
		pass.Status(),
		pass.Deleted(),
		pass.Downloaded(),
		pass.Failed(),
		nullString(pass.ErrorMessage()),
		pass.StartedAt(),
		pass.FinishedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert pass: %w", err)
	}

	return nil
}

// Get retrieves a pass by ID
func (r *PassRepository) Get(id string) (*models.Pass, error) {
	query := `SELECT ` + passColumns + ` FROM passes WHERE id = ?`

	pass, err := scanPass(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: pass %s", shared.ErrNotFound, id)
	}
	return pass, err
}

// Update writes the outcome fields of an existing pass
func (r *PassRepository) Update(pass *models.Pass) error {
	if err := pass.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		UPDATE passes
		SET status = ?, deleted = ?, downloaded = ?, failed = ?,
			error_message = ?, finished_at = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query,
		pass.Status(),
		pass.Deleted(),
		pass.Downloaded(),
		pass.Failed(),
		nullString(pass.ErrorMessage()),
		pass.FinishedAt(),
		pass.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update pass: %w", err)
	}

	return expectRow(result, pass.ID())
}

// Delete removes a pass by ID
func (r *PassRepository) Delete(id string) error {
	result, err := r.db.Exec("DELETE FROM passes WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete pass: %w", err)
	}

	return expectRow(result, id)
}

// List retrieves passes newest first.
//
// Supported criteria: "loop" (string), "status" (string), "limit" (int).
func (r *PassRepository) List(criteria map[string]any) ([]*models.Pass, error) {
	query := `SELECT ` + passColumns + ` FROM passes WHERE 1 = 1`
	args := []any{}

	if loop, ok := criteria["loop"].(string); ok && loop != "" {
		query += " AND loop = ?"
		args = append(args, loop)
	}

	if status, ok := criteria["status"].(string); ok && status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query passes: %w", err)
	}
	defer rows.Close()

	var passes []*models.Pass
	for rows.Next() {
		pass, err := scanPass(rows)
		if err != nil {
			return nil, err
		}
		passes = append(passes, pass)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return passes, nil
}

// Prune deletes all but the newest keep passes and returns how many rows were removed.
func (r *PassRepository) Prune(keep int) (int, error) {
	if keep < 0 {
		return 0, fmt.Errorf("%w: keep must not be negative", shared.ErrInvalidInput)
	}

	result, err := r.db.Exec(`
		DELETE FROM passes
		WHERE id NOT IN (SELECT id FROM passes ORDER BY sequence DESC LIMIT ?)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune passes: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return int(rows), nil
}

const passColumns = `
	id, sequence, loop, status, deleted, downloaded, failed,
	error_message, started_at, finished_at
`

// rowScanner is satisfied by both [sql.Row] and [sql.Rows]
type rowScanner interface {
	Scan(dest ...any) error
}

// scanPass scans a single row into a [models.Pass]; [sql.ErrNoRows] is returned unwrapped
func scanPass(row rowScanner) (*models.Pass, error) {
	var (
		id           string
		sequence     int
		loop         string
		status       string
		deleted      int
		downloaded   int
		failed       int
		errorMessage sql.NullString
		startedAt    sql.NullTime
		finishedAt   sql.NullTime
	)

	err := row.Scan(
		&id, &sequence, &loop, &status, &deleted, &downloaded, &failed,
		&errorMessage, &startedAt, &finishedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan pass: %w", err)
	}

	pass := models.NewPass(sequence, loop)
	pass.SetID(id)
	pass.SetStatus(status)
	pass.SetCounts(deleted, downloaded, failed)
	if errorMessage.Valid {
		pass.SetErrorMessage(errorMessage.String)
	}
	if startedAt.Valid {
		pass.SetStartedAt(startedAt.Time)
	}
	if finishedAt.Valid {
		pass.SetFinishedAt(&finishedAt.Time)
	}

	return pass, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func expectRow(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: pass %s", shared.ErrNotFound, id)
	}
	return nil
}
