package provisioning

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"traininglog/lib/migrations"
	"traininglog/lib/models"
	"traininglog/lib/util"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// Settings names the schema and the application role to create
type Settings struct {
	AppName       string
	SchemaName    string
	AdminUsername string
	AppUsername   string
	AppPassword   string
}

// Validate rejects identifiers and credentials that cannot be embedded in DDL
func (s Settings) Validate() error {
	switch {
	case strings.TrimSpace(s.SchemaName) == "":
		return &models.ValidationError{Field: "schema name", Message: "is required"}
	case strings.Contains(s.SchemaName, `"`):
		return &models.ValidationError{Field: "schema name", Message: fmt.Sprintf("invalid characters for app %q", s.AppName)}
	case strings.TrimSpace(s.AdminUsername) == "":
		return &models.ValidationError{Field: "admin username", Message: "is required"}
	case strings.TrimSpace(s.AppUsername) == "":
		return &models.ValidationError{Field: "app username", Message: "is required"}
	case strings.Contains(s.AppUsername, `"`):
		return &models.ValidationError{Field: "app username", Message: fmt.Sprintf("invalid characters for app %q", s.AppName)}
	case s.AppPassword == "":
		return &models.ValidationError{Field: "app password", Message: "is required"}
	case strings.Contains(s.AppPassword, `'`):
		return &models.ValidationError{Field: "app password", Message: fmt.Sprintf("invalid characters for app %q", s.AppName)}
	}
	return nil
}

// Opener opens a database handle
type Opener func(ctx context.Context) (*sql.DB, error)

// Provisioner creates the application schema, its role and grants, then optionally migrates the schema
type Provisioner struct {
	Open   Opener // admin connection
	Logger *logrus.Logger

	// Migrations are skipped when OpenMigrations is nil
	OpenMigrations Opener
	Source         migrations.Source
	MigrationWait  time.Duration
}

// Result lists the failures of the steps that did not abort the run
type Result struct {
	Errors    []string
	Migration *migrations.Task
}

type step struct {
	name       string
	message    string
	statements []string
}

// Run validates settings before touching the database. A validation or connection failure aborts
// the run; every later step failure is logged and collected without stopping the next steps.
func (p *Provisioner) Run(ctx context.Context, settings Settings) (*Result, error) {
	startTime := time.Now()
	log := p.Logger.WithFields(logrus.Fields{
		"operation": "Provision",
		"app_name":  settings.AppName,
		"schema":    settings.SchemaName,
	})

	if err := settings.Validate(); err != nil {
		log.WithError(err).Error("Invalid provisioning settings")
		return nil, err
	}

	db, err := p.Open(ctx)
	if err != nil {
		return nil, models.Upstream("failed to connect to database", err)
	}
	defer db.Close()

	result := &Result{Errors: []string{}}
	for _, s := range steps(settings) {
		log.WithFields(logrus.Fields{
			"step":       s.name,
			"elapsed_ms": util.ElapsedMs(startTime),
		}).Info("Running provisioning step")

		if err := execStep(ctx, db, s); err != nil {
			log.WithFields(logrus.Fields{
				"step":       s.name,
				"elapsed_ms": util.ElapsedMs(startTime),
			}).WithError(err).Error("Provisioning step failed")
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", s.message, err))
		}
	}

	if p.OpenMigrations != nil {
		p.migrate(ctx, log, result)
	}

	log.WithFields(logrus.Fields{
		"errors":     len(result.Errors),
		"elapsed_ms": util.ElapsedMs(startTime),
	}).Info("Provisioning completed")

	return result, nil
}

func steps(settings Settings) []step {
	schema := pq.QuoteIdentifier(settings.SchemaName)
	app := pq.QuoteIdentifier(settings.AppUsername)
	admin := pq.QuoteIdentifier(settings.AdminUsername)

	return []step{
		{
			name:       "create_schema",
			message:    "failed to create app schema",
			statements: []string{fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schema)},
		},
		{
			name:       "create_user",
			message:    "failed to create app user",
			statements: []string{fmt.Sprintf("CREATE USER %s WITH ENCRYPTED PASSWORD %s", app, pq.QuoteLiteral(settings.AppPassword))},
		},
		{
			name:    "grant_privileges",
			message: "failed to grant privileges to app user",
			statements: []string{
				fmt.Sprintf("GRANT USAGE ON SCHEMA %s TO %s", schema, app),
				fmt.Sprintf("ALTER DEFAULT PRIVILEGES FOR USER %s IN SCHEMA %s GRANT SELECT, INSERT, UPDATE, DELETE ON TABLES TO %s", admin, schema, app),
				fmt.Sprintf("ALTER DEFAULT PRIVILEGES FOR USER %s IN SCHEMA %s GRANT USAGE ON SEQUENCES TO %s", admin, schema, app),
			},
		},
	}
}

// execStep stops at the first failing statement of the step
func execStep(ctx context.Context, db *sql.DB, s step) error {
	for _, statement := range s.statements {
		if _, err := db.ExecContext(ctx, statement); err != nil {
			return err
		}
	}
	return nil
}

func (p *Provisioner) migrate(ctx context.Context, log *logrus.Entry, result *Result) {
	db, err := p.OpenMigrations(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to connect for migrations")
		result.Errors = append(result.Errors, fmt.Sprintf("failed to connect for migrations: %v", err))
		return
	}

	source := p.Source
	if source == nil {
		source = migrations.EmbeddedSource{}
	}

	// The run outlives this invocation unless MigrationWait is set
	result.Migration = migrations.Start(context.WithoutCancel(ctx), db, source, p.Logger)
	if p.MigrationWait <= 0 {
		log.WithField("source", source.String()).Info("Migrations started in background")
		return
	}

	waitCtx, cancel := context.WithTimeout(ctx, p.MigrationWait)
	defer cancel()

	err = result.Migration.Wait(waitCtx)
	switch {
	case err == nil:
	case errors.Is(err, context.DeadlineExceeded) && result.Migration.Err() == nil:
		log.WithField("wait", p.MigrationWait.String()).Warn("Migrations still running after wait")
	default:
		result.Errors = append(result.Errors, fmt.Sprintf("failed to run migrations: %v", err))
	}
}
