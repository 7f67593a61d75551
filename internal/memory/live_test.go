package memory

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// These tests run against real services and skip unless pointed at one.

func TestMongoPersister_Live(t *testing.T) {
	uri := os.Getenv("CAIA_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("CAIA_TEST_MONGO_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	p, err := ConnectMongoPersister(ctx, uri, "caia_extract_test", fmt.Sprintf("memory_%d", time.Now().UnixNano()))
	require.NoError(t, err)
	defer p.Close(ctx)
	defer p.collection.Drop(ctx)

	roundTrip(t, p)
}

func TestPostgresPersister_Live(t *testing.T) {
	dsn := os.Getenv("CAIA_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("CAIA_TEST_POSTGRES_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	table := fmt.Sprintf("memory_test_%d", time.Now().UnixNano())
	p, err := ConnectPostgresPersister(ctx, dsn, table)
	require.NoError(t, err)
	defer p.Close()
	defer p.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table)

	roundTrip(t, p)
}

func TestS3Persister_Live(t *testing.T) {
	bucket := os.Getenv("CAIA_TEST_S3_BUCKET")
	if bucket == "" {
		t.Skip("CAIA_TEST_S3_BUCKET not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	key := fmt.Sprintf("caia-extract-test/%d.json", time.Now().UnixNano())
	p, err := NewS3PersisterFromEnv(ctx, os.Getenv("AWS_REGION"), os.Getenv("CAIA_TEST_S3_ENDPOINT"), bucket, key)
	require.NoError(t, err)

	roundTrip(t, p)
}
