package e2e_harness

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/joyfill/joydoc"
	"github.com/joyfill/joydoc/internal/source"
)

// StoreConfig returns a report store configuration pointing at the harness
// Postgres container.
func (h *TestHarness) StoreConfig() joydoc.StoreConfig {
	cfg := joydoc.DefaultConfig().Store
	cfg.Enabled = true
	cfg.Host = h.PGHost
	cfg.Port = h.PGPort
	cfg.Database = pgDatabase
	cfg.Username = pgUser
	cfg.Password = pgPassword
	cfg.MaxConnections = 4
	return cfg
}

// SourceConfig returns a source configuration pointing at the harness S3
// container.
func (h *TestHarness) SourceConfig() joydoc.SourceConfig {
	cfg := joydoc.DefaultConfig().Source
	cfg.S3 = joydoc.S3Config{
		Region:          "us-east-1",
		Endpoint:        h.S3Endpoint,
		AccessKeyID:     S3AccessKey,
		SecretAccessKey: S3SecretKey,
		UsePathStyle:    true,
	}
	return cfg
}

// UploadDocument copies the local file at path to s3://bucket/key, creating
// the bucket when needed.
func (h *TestHarness) UploadDocument(ctx context.Context, bucket, key, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	client, err := source.NewS3Client(ctx, h.SourceConfig().S3)
	if err != nil {
		return err
	}
	publisher := source.NewPublisher(client)
	if err := publisher.EnsureBucket(ctx, bucket); err != nil {
		return err
	}
	return publisher.Publish(ctx, fmt.Sprintf("s3://%s/%s", bucket, key), data, "application/json")
}

// CountReports counts the rows of table through database/sql.
func CountReports(ctx context.Context, db *sql.DB, table string, valid bool) (int, error) {
	var n int
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %q WHERE valid = $1`, table)
	if err := db.QueryRowContext(ctx, query, valid).Scan(&n); err != nil {
		return 0, fmt.Errorf("count reports: %w", err)
	}
	return n, nil
}
