package migrations

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"
)

// Task is a migration run in progress. Done is closed when the run finishes;
// Err and Applied are only meaningful after that.
type Task struct {
	done    chan struct{}
	err     error
	applied []int64
}

// Done is closed when the migration run finishes
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Err returns the failure of a finished run
func (t *Task) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Applied lists the versions applied by a finished run
func (t *Task) Applied() []int64 {
	select {
	case <-t.done:
		return t.applied
	default:
		return nil
	}
}

// Wait blocks until the run finishes or ctx is done
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start applies every pending migration from source on its own goroutine.
// The task owns db and closes it when the run finishes.
func Start(ctx context.Context, db *sql.DB, source Source, logger *logrus.Logger) *Task {
	task := &Task{done: make(chan struct{})}

	go func() {
		defer close(task.done)
		defer db.Close()

		startTime := time.Now()
		task.applied, task.err = up(ctx, db, source, logger)

		entry := logger.WithFields(logrus.Fields{
			"operation":  "Migrate",
			"source":     source.String(),
			"applied":    task.applied,
			"elapsed_ms": time.Since(startTime).Milliseconds(),
		})
		if task.err != nil {
			entry.WithError(task.err).Error("Migration run failed")
			return
		}
		entry.Info("Migration run completed")
	}()

	return task
}

func up(ctx context.Context, db *sql.DB, source Source, logger *logrus.Logger) ([]int64, error) {
	fsys, cleanup, err := source.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open migration source %s: %w", source, err)
	}
	defer func() {
		if err := cleanup(); err != nil {
			logger.WithFields(logrus.Fields{
				"operation": "Migrate",
				"source":    source.String(),
			}).WithError(err).Warn("Failed to clean up migration source")
		}
	}()

	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration provider: %w", err)
	}

	results, err := provider.Up(ctx)

	var applied []int64
	for _, result := range results {
		if result.Source == nil {
			continue
		}
		logger.WithFields(logrus.Fields{
			"operation":   "Migrate",
			"version":     result.Source.Version,
			"path":        result.Source.Path,
			"duration_ms": result.Duration.Milliseconds(),
		}).Debug("Applied migration")
		if result.Error == nil {
			applied = append(applied, result.Source.Version)
		}
	}

	if err != nil {
		return applied, fmt.Errorf("failed to apply migrations: %w", err)
	}
	return applied, nil
}
