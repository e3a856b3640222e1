package postgres

import (
	"context"
	"database/sql"
	"os"
	"sync"
	"testing"

	_ "github.com/lib/pq"

	"github.com/potipress/insideout/internal/app/domain/emotion"
	apperrors "github.com/potipress/insideout/internal/errors"
)

func openTestDB(t *testing.T) *sql.DB {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping postgres integration test")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestStoreIntegration(t *testing.T) {
	db := openTestDB(t)
	store := New(db)
	ctx := context.Background()

	userID := "it-user-" + t.Name()

	if _, err := store.CreateOverride(ctx, emotion.Override{UserID: userID, Emotion: emotion.Happy, RGB: "#00FF00"}); err != nil {
		t.Fatalf("create override: %v", err)
	}
	defer store.DeleteOverride(ctx, userID, emotion.Happy)

	if _, err := store.CreateOverride(ctx, emotion.Override{UserID: userID, Emotion: emotion.Happy, RGB: "#111111"}); !apperrors.IsCode(err, apperrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	ov, err := store.GetOverride(ctx, userID, emotion.Happy)
	if err != nil {
		t.Fatalf("get override: %v", err)
	}
	if ov.RGB != "#00FF00" {
		t.Fatalf("unexpected rgb %s", ov.RGB)
	}
}

func TestIncrementQuotaConcurrent(t *testing.T) {
	db := openTestDB(t)
	store := New(db)
	ctx := context.Background()

	userID := "it-quota-" + t.Name()
	defer db.ExecContext(ctx, `DELETE FROM api_counts WHERE user_id = $1`, userID)

	const workers = 20
	counts := make(chan int, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			count, err := store.IncrementQuota(ctx, userID)
			if err != nil {
				t.Errorf("increment: %v", err)
				return
			}
			counts <- count
		}()
	}
	wg.Wait()
	close(counts)

	seen := make(map[int]bool)
	for c := range counts {
		if seen[c] {
			t.Fatalf("duplicate count %d", c)
		}
		seen[c] = true
	}

	rec, err := store.GetQuota(ctx, userID)
	if err != nil {
		t.Fatalf("get quota: %v", err)
	}
	if rec.CallCount != workers {
		t.Fatalf("expected %d, got %d", workers, rec.CallCount)
	}
}
