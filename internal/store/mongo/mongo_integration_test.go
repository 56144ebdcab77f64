package mongo

import (
	"context"
	"os"
	"testing"

	"kasirpos/backend/internal/store/storetest"
	"kasirpos/backend/internal/xid"
)

func TestMongoRepository(t *testing.T) {
	uri := os.Getenv("KASIRPOS_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("set KASIRPOS_TEST_MONGO_URI to run mongo integration test")
	}

	ctx := context.Background()
	database := xid.New("kasirpos_it")
	s, err := New(ctx, uri, database)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.db.Drop(context.Background())
		_ = s.Close(context.Background())
	})

	storetest.Run(t, s)
}
