// Package main implements the training log API Lambda behind API Gateway.
//
// Every route except CORS preflight requires a caller identity, taken from the claims of the
// Cognito authorizer or, on local runs, from a bearer token validated by Cognito. Sessions are
// stored in the application schema of the RDS PostgreSQL database and are only visible to
// their owner.
package main

import (
	"context"
	"os"

	"traininglog/lib/api"
	"traininglog/lib/auth"
	"traininglog/lib/clients"
	"traininglog/lib/config"
	"traininglog/lib/constants"
	"traininglog/lib/data"
	"traininglog/lib/util"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/sirupsen/logrus"
)

// main is the Lambda function entry point. Dependencies are built once per cold start.
func main() {
	lambda.Start(newHandler(context.Background()).LambdaHandler)
}

func newHandler(ctx context.Context) *Handler {
	config.LoadDotEnv()

	isLocal := config.ParseIsLocal(os.Getenv)
	logger := util.NewLogger(isLocal, os.Getenv(constants.LOG_LEVEL))

	secretsRepository := &data.SecretsManagerDao{
		Client: clients.NewSecretsManagerClient(isLocal),
		Logger: logger,
	}
	ssmRepository := &data.SSMDao{
		SSM:    clients.NewSSMClient(isLocal),
		Logger: logger,
	}

	cfg, err := config.LoadAPI(ctx, os.Getenv, secretsRepository, ssmRepository)
	if err != nil {
		logger.WithFields(logrus.Fields{
			"operation": "init",
			"error":     err.Error(),
		}).Fatal("Error while loading configuration")
	}
	util.SetLogLevel(logger, cfg.LogLevel)

	db, err := clients.NewPostgresSQLClient(ctx, cfg.Database.DSN())
	if err != nil {
		logger.WithFields(logrus.Fields{
			"operation": "init",
			"dsn":       cfg.Database.DSNForLog(),
			"error":     err.Error(),
		}).Fatal("Error setting up PostgreSQL client")
	}

	authenticator := &auth.Authenticator{
		ClientIDs: cfg.Cognito.ClientIDs,
		Logger:    logger,
	}
	if cfg.IsLocal {
		// No API Gateway authorizer in front of local runs
		authenticator.Verifier = &auth.CognitoVerifier{
			Client: clients.NewCognitoIdentityProviderClient(cfg.IsLocal, cfg.Cognito.Region),
		}
	}

	handler := &Handler{
		Repository: &data.TrainingSessionDao{
			DB:     db,
			Schema: cfg.SchemaName,
			Logger: logger,
		},
		Auth:   authenticator,
		CORS:   &api.CORSPolicy{AllowedOrigins: cfg.AllowedDomains},
		Logger: logger,
	}

	logger.WithFields(logrus.Fields{
		"operation":       "init",
		"app_name":        cfg.AppName,
		"schema":          cfg.SchemaName,
		"issuer":          cfg.Cognito.Issuer(),
		"discovery_url":   cfg.Cognito.DiscoveryURL(),
		"client_ids":      cfg.Cognito.ClientIDs,
		"allowed_domains": cfg.AllowedDomains,
	}).Info("Training log API initialization completed successfully")

	return handler
}
