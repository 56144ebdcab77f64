package postgres

import (
	"context"
	"os"
	"testing"

	"kasirpos/backend/internal/store/storetest"
)

func TestPostgresRepository(t *testing.T) {
	databaseURL := os.Getenv("KASIRPOS_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set KASIRPOS_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	storetest.Run(t, s)
}
