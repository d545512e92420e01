package clients

import (
	"context"
	"fmt"
	"time"

	"traininglog/lib/constants"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// NewPostgresSQLClient creates a new PostgreSQL client with connection pooling optimized for Lambda
func NewPostgresSQLClient(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open(constants.DRIVER_NAME, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	// Lambda-optimized connection settings
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(1)
	db.SetConnMaxIdleTime(5 * time.Minute)

	// Validate connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
