package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/offline/internal/shared"
)

// AggregateRepository stores named JSON documents in the aggregates table.
//
// Each aggregate is written whole; a write replaces the previous document.
type AggregateRepository struct {
	db *sql.DB
}

// NewAggregateRepository creates a new AggregateRepository with the given database connection
func NewAggregateRepository(db *sql.DB) *AggregateRepository {
	return &AggregateRepository{db: db}
}

// Get returns the stored document for name, or an error wrapping [shared.ErrNotFound].
func (r *AggregateRepository) Get(name string) ([]byte, error) {
	var data []byte
	err := r.db.QueryRow("SELECT data FROM aggregates WHERE name = ?", name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: aggregate %s", shared.ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get aggregate %s: %w", name, err)
	}
	return data, nil
}

// PutAll inserts or replaces every document in one transaction.
func (r *AggregateRepository) PutAll(docs map[string][]byte) error {
	if _, ok := docs[""]; ok {
		return fmt.Errorf("%w: aggregate name", shared.ErrMissingArgument)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	for name, data := range docs {
		if _, err := tx.Exec(upsertAggregate, name, data, now); err != nil {
			return fmt.Errorf("failed to put aggregate %s: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit aggregates: %w", err)
	}
	return nil
}

const upsertAggregate = `
	INSERT INTO aggregates (name, data, updated_at)
	VALUES (?, ?, ?)
	ON CONFLICT(name) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
`
