package migrations

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"traininglog/lib/clients"
)

//go:embed sql/*.sql
var embedded embed.FS

// Source provides the directory of goose SQL migrations. The caller runs cleanup once it
// is done with the directory.
type Source interface {
	Open(ctx context.Context) (fsys fs.FS, cleanup func() error, err error)
	String() string
}

func noCleanup() error { return nil }

// EmbeddedSource serves the migrations compiled into the binary
type EmbeddedSource struct{}

func (EmbeddedSource) Open(ctx context.Context) (fs.FS, func() error, error) {
	fsys, err := fs.Sub(embedded, "sql")
	if err != nil {
		return nil, nil, err
	}
	return fsys, noCleanup, nil
}

func (EmbeddedSource) String() string {
	return "embedded"
}

// S3Source downloads the .sql objects under Prefix into a temporary directory,
// removed by the cleanup of Open
type S3Source struct {
	Client  clients.S3ClientInterface
	Bucket  string
	Prefix  string
	TempDir string // parent of the download directory; os.TempDir() when empty
}

func (s *S3Source) Open(ctx context.Context) (fs.FS, func() error, error) {
	keys, err := s.Client.ListKeys(ctx, s.Prefix)
	if err != nil {
		return nil, nil, err
	}

	dir, err := os.MkdirTemp(s.TempDir, "migrations")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create migrations directory: %w", err)
	}
	cleanup := func() error {
		return os.RemoveAll(dir)
	}

	if err := s.download(ctx, dir, keys); err != nil {
		_ = cleanup()
		return nil, nil, err
	}

	return os.DirFS(dir), cleanup, nil
}

func (s *S3Source) download(ctx context.Context, dir string, keys []string) error {
	count := 0
	for _, key := range keys {
		if !strings.HasSuffix(key, ".sql") {
			continue
		}

		body, err := s.Client.GetObject(ctx, key)
		if err != nil {
			return err
		}

		if err := os.WriteFile(filepath.Join(dir, path.Base(key)), body, 0o600); err != nil {
			return fmt.Errorf("failed to write migration %s: %w", key, err)
		}
		count++
	}

	if count == 0 {
		return fmt.Errorf("no migrations found in s3://%s/%s", s.Bucket, s.Prefix)
	}
	return nil
}

func (s *S3Source) String() string {
	return fmt.Sprintf("s3://%s/%s", s.Bucket, s.Prefix)
}
