// Package main implements the one-time provisioning Lambda. It creates the application
// schema and its database role with the admin credentials of the connection secret, then
// optionally applies the goose migrations to the new schema.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"traininglog/lib/clients"
	"traininglog/lib/config"
	"traininglog/lib/constants"
	"traininglog/lib/data"
	"traininglog/lib/migrations"
	"traininglog/lib/provisioning"
	"traininglog/lib/util"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/sirupsen/logrus"
)

// Handler runs the one-time creation of the application schema and its role
type Handler struct {
	Getenv  config.Getenv
	Secrets data.SecretsRepository
	Logger  *logrus.Logger

	// OpenDB connects with the given settings
	OpenDB func(ctx context.Context, db config.DatabaseConfig) (*sql.DB, error)

	// NewS3Client is used when migrations are read from a bucket
	NewS3Client func(bucket string) clients.S3ClientInterface
}

// LambdaHandler ignores its input and returns the messages of the failed steps
func (h *Handler) LambdaHandler(ctx context.Context, event json.RawMessage) ([]string, error) {
	startTime := time.Now()
	log := h.Logger.WithField("operation", "InitialCreation")
	log.Info("Starting initial creation of the app schema and users")

	cfg, err := config.LoadProvisioning(ctx, h.Getenv, h.Secrets)
	if err != nil {
		log.WithError(err).Error("Error while loading configuration")
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"app_name": cfg.AppName,
		"dsn":      cfg.Admin.DSNForLog(),
	}).Info("Connecting to RDS PostgreSQL")

	provisioner := &provisioning.Provisioner{
		Open: func(ctx context.Context) (*sql.DB, error) {
			return h.OpenDB(ctx, cfg.Admin)
		},
		Logger:        h.Logger,
		MigrationWait: cfg.MigrationWait,
	}

	if cfg.RunMigrations {
		provisioner.OpenMigrations = func(ctx context.Context) (*sql.DB, error) {
			return h.OpenDB(ctx, cfg.Admin.WithSearchPath(cfg.SchemaName))
		}
		provisioner.Source = migrations.EmbeddedSource{}
		if cfg.MigrationsBucket != "" {
			provisioner.Source = &migrations.S3Source{
				Client: h.NewS3Client(cfg.MigrationsBucket),
				Bucket: cfg.MigrationsBucket,
				Prefix: cfg.MigrationsPrefix,
			}
		}
	}

	result, err := provisioner.Run(ctx, provisioning.Settings{
		AppName:       cfg.AppName,
		SchemaName:    cfg.SchemaName,
		AdminUsername: cfg.Admin.User,
		AppUsername:   cfg.AppUsername,
		AppPassword:   cfg.AppPassword,
	})
	if err != nil {
		log.WithError(err).Error("Initial creation aborted")
		return nil, fmt.Errorf("initial creation for app %q failed: %w", cfg.AppName, err)
	}

	log.WithFields(logrus.Fields{
		"errors":     len(result.Errors),
		"elapsed_ms": util.ElapsedMs(startTime),
	}).Info("Finished initial creation of the app schema and users")

	return result.Errors, nil
}

func openPostgres(ctx context.Context, db config.DatabaseConfig) (*sql.DB, error) {
	client, err := clients.NewPostgresSQLClient(ctx, db.DSN())
	if err != nil {
		return nil, err
	}
	return client.DB, nil
}

// main is the Lambda function entry point
func main() {
	config.LoadDotEnv()

	isLocal := config.ParseIsLocal(os.Getenv)
	logger := util.NewLogger(isLocal, os.Getenv(constants.LOG_LEVEL))

	handler := &Handler{
		Getenv: os.Getenv,
		Secrets: &data.SecretsManagerDao{
			Client: clients.NewSecretsManagerClient(isLocal),
			Logger: logger,
		},
		Logger: logger,
		OpenDB: openPostgres,
		NewS3Client: func(bucket string) clients.S3ClientInterface {
			return clients.NewS3Client(isLocal, bucket)
		},
	}

	lambda.Start(handler.LambdaHandler)
}
