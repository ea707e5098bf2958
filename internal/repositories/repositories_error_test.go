package repositories

import (
	"errors"
	"testing"

	"github.com/desertthunder/offline/internal/models"
	"github.com/desertthunder/offline/internal/shared"
)

func TestAggregateRepositoryErrors(t *testing.T) {
	t.Run("Get", func(t *testing.T) {
		t.Run("NotFound", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			repo := NewAggregateRepository(db)
			if _, err := repo.Get("tracks"); !errors.Is(err, shared.ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	})

	t.Run("PutAll", func(t *testing.T) {
		t.Run("EmptyName", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			repo := NewAggregateRepository(db)
			err := repo.PutAll(map[string][]byte{"": []byte(`{}`), "tracks": []byte(`[]`)})
			if !errors.Is(err, shared.ErrMissingArgument) {
				t.Fatalf("expected ErrMissingArgument, got %v", err)
			}
			if _, err := repo.Get("tracks"); !errors.Is(err, shared.ErrNotFound) {
				t.Errorf("a rejected batch must write nothing, got %v", err)
			}
		})

		t.Run("ClosedDatabase", func(t *testing.T) {
			db := setupTestDB(t)
			db.Close()

			repo := NewAggregateRepository(db)
			if err := repo.PutAll(map[string][]byte{"tracks": []byte(`[]`)}); err == nil {
				t.Fatal("expected error writing to a closed database")
			}
		})
	})
}

func TestPassRepositoryErrors(t *testing.T) {
	t.Run("Create", func(t *testing.T) {
		t.Run("ValidationError", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			repo := NewPassRepository(db)
			if err := repo.Create(models.NewPass(0, "")); err == nil {
				t.Fatal("expected validation error for empty loop")
			}

			pass := models.NewPass(0, "tracks")
			pass.SetStatus("paused")
			if err := repo.Create(pass); err == nil {
				t.Fatal("expected validation error for unknown status")
			}
		})

		t.Run("DuplicateID", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			repo := NewPassRepository(db)
			first := models.NewPass(0, "tracks")
			first.SetID("same")
			if err := repo.Create(first); err != nil {
				t.Fatalf("failed to create first pass: %v", err)
			}

			second := models.NewPass(0, "tracks")
			second.SetID("same")
			if err := repo.Create(second); err == nil {
				t.Fatal("expected error when creating pass with duplicate ID")
			}
		})
	})

	t.Run("Get", func(t *testing.T) {
		t.Run("NotFound", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			repo := NewPassRepository(db)
			if _, err := repo.Get("nonexistent-id"); !errors.Is(err, shared.ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	})

	t.Run("Update", func(t *testing.T) {
		t.Run("NotFound", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			repo := NewPassRepository(db)
			pass := models.NewPass(0, "tracks")
			pass.SetID("nonexistent-id")
			if err := repo.Update(pass); !errors.Is(err, shared.ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})

		t.Run("NegativeCounts", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			repo := NewPassRepository(db)
			pass := models.NewPass(0, "tracks")
			if err := repo.Create(pass); err != nil {
				t.Fatalf("failed to create pass: %v", err)
			}
			pass.SetCounts(-1, 0, 0)
			if err := repo.Update(pass); err == nil {
				t.Fatal("expected validation error for negative counts")
			}
		})
	})

	t.Run("Delete", func(t *testing.T) {
		t.Run("NotFound", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			repo := NewPassRepository(db)
			if err := repo.Delete("nonexistent-id"); !errors.Is(err, shared.ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	})

	t.Run("Prune", func(t *testing.T) {
		t.Run("NegativeKeep", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			repo := NewPassRepository(db)
			if _, err := repo.Prune(-1); !errors.Is(err, shared.ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	})

	t.Run("NextSequence", func(t *testing.T) {
		t.Run("MissingTable", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			if _, err := NextSequence(db, "nonexistent"); err == nil {
				t.Fatal("expected error for a table without a sequence")
			}
		})
	})
}
