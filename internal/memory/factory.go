package memory

import (
	"context"
	"fmt"

	"github.com/Caia-Tech/caia-extract/internal/metrics"
	"github.com/Caia-Tech/caia-extract/pkg/pipeline"
)

// NewPersister builds the persister selected by cfg, wrapped in a
// HybridPersister when a fallback backend is configured
func NewPersister(ctx context.Context, cfg *pipeline.MemoryConfig, collector metrics.Collector) (Persister, error) {
	primary, err := newBackend(ctx, cfg.Backend, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.FallbackBackend == "" {
		return primary, nil
	}

	secondary, err := newBackend(ctx, cfg.FallbackBackend, cfg)
	if err != nil {
		return nil, fmt.Errorf("fallback backend: %w", err)
	}
	return NewHybridPersister(primary, secondary, cfg.OperationTimeout, collector), nil
}

func newBackend(ctx context.Context, backend string, cfg *pipeline.MemoryConfig) (Persister, error) {
	switch backend {
	case pipeline.BackendFile, "":
		return NewFilePersister(cfg.Path), nil
	case pipeline.BackendGit:
		return NewGitPersister(cfg.GitRepo)
	case pipeline.BackendS3:
		return NewS3PersisterFromEnv(ctx, cfg.S3Region, cfg.S3Endpoint, cfg.S3Bucket, cfg.S3Key)
	case pipeline.BackendMongo:
		return ConnectMongoPersister(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoCollection)
	case pipeline.BackendPostgres:
		return ConnectPostgresPersister(ctx, cfg.PostgresDSN, cfg.PostgresTable)
	case pipeline.BackendMemory:
		return NewMemoryPersister(), nil
	default:
		return nil, fmt.Errorf("unknown memory backend %q", backend)
	}
}
