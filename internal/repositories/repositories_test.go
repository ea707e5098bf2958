package repositories

import (
	"database/sql"
	"testing"

	"github.com/desertthunder/offline/internal/models"
	"github.com/desertthunder/offline/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}

func TestAggregateRepository(t *testing.T) {
	t.Run("PutAll And Get", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewAggregateRepository(db)
		if err := repo.PutAll(map[string][]byte{"tracks": []byte(`[{"id":"t1"}]`)}); err != nil {
			t.Fatalf("failed to put aggregate: %v", err)
		}

		data, err := repo.Get("tracks")
		if err != nil {
			t.Fatalf("failed to get aggregate: %v", err)
		}
		if string(data) != `[{"id":"t1"}]` {
			t.Errorf("unexpected data: %s", data)
		}
	})

	t.Run("PutAll Replaces", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewAggregateRepository(db)
		if err := repo.PutAll(map[string][]byte{"settings": []byte(`{"favorites":false}`)}); err != nil {
			t.Fatalf("failed to put aggregate: %v", err)
		}
		if err := repo.PutAll(map[string][]byte{"settings": []byte(`{"favorites":true}`)}); err != nil {
			t.Fatalf("failed to replace aggregate: %v", err)
		}

		data, err := repo.Get("settings")
		if err != nil {
			t.Fatalf("failed to get aggregate: %v", err)
		}
		if string(data) != `{"favorites":true}` {
			t.Errorf("expected replaced data, got %s", data)
		}

		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM aggregates").Scan(&count); err != nil {
			t.Fatalf("failed to count aggregates: %v", err)
		}
		if count != 1 {
			t.Errorf("expected a single row, got %d", count)
		}
	})

	t.Run("PutAll", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewAggregateRepository(db)
		docs := map[string][]byte{
			"tracks":    []byte(`[]`),
			"favorites": []byte(`[]`),
			"albums":    []byte(`[]`),
		}
		if err := repo.PutAll(docs); err != nil {
			t.Fatalf("failed to put aggregates: %v", err)
		}

		for name := range docs {
			if _, err := repo.Get(name); err != nil {
				t.Errorf("expected aggregate %s: %v", name, err)
			}
		}
	})
}

func TestPassRepository(t *testing.T) {
	t.Run("Through The Repository Interface", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		var repo models.Repository[*models.Pass] = NewPassRepository(db)
		pass := models.NewPass(0, "albums")
		if err := repo.Create(pass); err != nil {
			t.Fatalf("failed to create pass: %v", err)
		}

		pass.Finish(models.PassCompleted)
		if err := repo.Update(pass); err != nil {
			t.Fatalf("failed to update pass: %v", err)
		}

		got, err := repo.Get(pass.ID())
		if err != nil {
			t.Fatalf("failed to get pass: %v", err)
		}
		if got.Status() != models.PassCompleted || got.Loop() != "albums" {
			t.Errorf("unexpected pass %s/%s", got.Loop(), got.Status())
		}

		passes, err := repo.List(map[string]any{"loop": "albums"})
		if err != nil || len(passes) != 1 {
			t.Fatalf("expected one albums pass, got %d (%v)", len(passes), err)
		}

		if err := repo.Delete(pass.ID()); err != nil {
			t.Fatalf("failed to delete pass: %v", err)
		}
		if passes, _ := repo.List(nil); len(passes) != 0 {
			t.Errorf("expected no passes after delete, got %d", len(passes))
		}
	})

	t.Run("Create", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewPassRepository(db)
		pass := models.NewPass(0, "tracks")

		if err := repo.Create(pass); err != nil {
			t.Fatalf("failed to create pass: %v", err)
		}

		if pass.ID() == "" {
			t.Error("pass ID should be set after creation")
		}
		if pass.Sequence() != 1 {
			t.Errorf("expected sequence 1, got %d", pass.Sequence())
		}
	})

	t.Run("Create Keeps ID", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewPassRepository(db)
		pass := models.NewPass(0, "tracks")
		pass.SetID("pass-1")

		if err := repo.Create(pass); err != nil {
			t.Fatalf("failed to create pass: %v", err)
		}
		if pass.ID() != "pass-1" {
			t.Errorf("expected ID pass-1, got %s", pass.ID())
		}
	})

	t.Run("Get", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewPassRepository(db)
		pass := models.NewPass(0, "favorites")
		if err := repo.Create(pass); err != nil {
			t.Fatalf("failed to create pass: %v", err)
		}

		retrieved, err := repo.Get(pass.ID())
		if err != nil {
			t.Fatalf("failed to get pass: %v", err)
		}

		if retrieved.Loop() != "favorites" {
			t.Errorf("expected loop favorites, got %s", retrieved.Loop())
		}
		if retrieved.Status() != models.PassRunning {
			t.Errorf("expected status running, got %s", retrieved.Status())
		}
		if retrieved.FinishedAt() != nil {
			t.Error("running pass should not have a finish time")
		}
	})

	t.Run("Update", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewPassRepository(db)
		pass := models.NewPass(0, "tracks")
		if err := repo.Create(pass); err != nil {
			t.Fatalf("failed to create pass: %v", err)
		}

		pass.SetCounts(2, 3, 1)
		pass.SetErrorMessage("1 download failed")
		pass.Finish(models.PassCompleted)
		if err := repo.Update(pass); err != nil {
			t.Fatalf("failed to update pass: %v", err)
		}

		retrieved, err := repo.Get(pass.ID())
		if err != nil {
			t.Fatalf("failed to get pass: %v", err)
		}
		if retrieved.Deleted() != 2 || retrieved.Downloaded() != 3 || retrieved.Failed() != 1 {
			t.Errorf("unexpected counts: %d/%d/%d", retrieved.Deleted(), retrieved.Downloaded(), retrieved.Failed())
		}
		if retrieved.Status() != models.PassCompleted {
			t.Errorf("expected status completed, got %s", retrieved.Status())
		}
		if retrieved.FinishedAt() == nil {
			t.Error("finished pass should have a finish time")
		}
		if retrieved.ErrorMessage() != "1 download failed" {
			t.Errorf("unexpected error message %q", retrieved.ErrorMessage())
		}
	})

	t.Run("Delete", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewPassRepository(db)
		pass := models.NewPass(0, "tracks")
		if err := repo.Create(pass); err != nil {
			t.Fatalf("failed to create pass: %v", err)
		}

		if err := repo.Delete(pass.ID()); err != nil {
			t.Fatalf("failed to delete pass: %v", err)
		}

		if _, err := repo.Get(pass.ID()); err == nil {
			t.Error("expected error when getting deleted pass")
		}
	})

	t.Run("List", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewPassRepository(db)
		for _, loop := range []string{"tracks", "favorites", "tracks", "playlists", "tracks"} {
			if err := repo.Create(models.NewPass(0, loop)); err != nil {
				t.Fatalf("failed to create pass: %v", err)
			}
		}

		tests := []struct {
			name     string
			criteria map[string]any
			expected int
		}{
			{name: "all", criteria: map[string]any{}, expected: 5},
			{name: "by loop", criteria: map[string]any{"loop": "tracks"}, expected: 3},
			{name: "by status", criteria: map[string]any{"status": models.PassCompleted}, expected: 0},
			{name: "limit", criteria: map[string]any{"limit": 2}, expected: 2},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				passes, err := repo.List(tt.criteria)
				if err != nil {
					t.Fatalf("failed to list passes: %v", err)
				}
				if len(passes) != tt.expected {
					t.Errorf("expected %d passes, got %d", tt.expected, len(passes))
				}
			})
		}

		passes, err := repo.List(nil)
		if err != nil {
			t.Fatalf("failed to list passes: %v", err)
		}
		for i := 1; i < len(passes); i++ {
			if passes[i].Sequence() >= passes[i-1].Sequence() {
				t.Errorf("passes not newest first: %d after %d", passes[i].Sequence(), passes[i-1].Sequence())
			}
		}
	})

	t.Run("Prune", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewPassRepository(db)
		for range 5 {
			if err := repo.Create(models.NewPass(0, "tracks")); err != nil {
				t.Fatalf("failed to create pass: %v", err)
			}
		}

		removed, err := repo.Prune(2)
		if err != nil {
			t.Fatalf("failed to prune: %v", err)
		}
		if removed != 3 {
			t.Errorf("expected 3 removed, got %d", removed)
		}

		passes, _ := repo.List(nil)
		if len(passes) != 2 || passes[0].Sequence() != 5 {
			t.Errorf("expected the two newest passes to remain")
		}
	})
}

func TestNextSequence(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	for want := 1; want <= 3; want++ {
		got, err := NextSequence(db, "passes")
		if err != nil {
			t.Fatalf("failed to get sequence: %v", err)
		}
		if got != want {
			t.Errorf("expected sequence %d, got %d", want, got)
		}
	}
}
