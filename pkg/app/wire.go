package app

import (
	"context"
	"fmt"

	"github.com/curatorbot/curator/internal/config"
	"github.com/curatorbot/curator/internal/persist"
	"github.com/curatorbot/curator/modules/storage/s3"
	"github.com/curatorbot/curator/modules/storage/sqlite"
)

// buildBackend constructs the configured durable backend and returns it
// with a close function for resources that need teardown.
func buildBackend(ctx context.Context, cfg *config.Config) (persist.Backend, func(), error) {
	switch cfg.Storage.Backend {
	case "s3":
		backend, err := s3.New(ctx, s3.Config{
			Bucket:   cfg.Storage.S3.Bucket,
			Region:   cfg.Storage.S3.Region,
			Endpoint: cfg.Storage.S3.Endpoint,
		})
		if err != nil {
			return nil, nil, err
		}
		return backend, func() {}, nil

	case "sqlite":
		backend, err := sqlite.Open(cfg.Storage.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		return backend, func() { _ = backend.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("app: unknown storage backend %q", cfg.Storage.Backend)
	}
}
