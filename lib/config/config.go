package config

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"traininglog/lib/constants"
	"traininglog/lib/data"
	"traininglog/lib/util"

	"github.com/joho/godotenv"
)

// Getenv looks up an environment variable; os.Getenv in production
type Getenv func(key string) string

// DatabaseConfig holds the connection settings read from the connection secret
type DatabaseConfig struct {
	Host       string
	Port       string
	Name       string
	User       string
	Password   string
	SSLMode    string
	SearchPath string
}

// DSN builds a lib/pq key/value connection string
func (d DatabaseConfig) DSN() string {
	return d.dsn(d.Password)
}

// DSNForLog is DSN with the password masked
func (d DatabaseConfig) DSNForLog() string {
	return d.dsn("***")
}

func (d DatabaseConfig) dsn(password string) string {
	parts := []string{
		"host=" + quoteValue(d.Host),
		"port=" + quoteValue(d.Port),
		"user=" + quoteValue(d.User),
		"password=" + quoteValue(password),
		"dbname=" + quoteValue(d.Name),
		"sslmode=" + quoteValue(d.SSLMode),
	}
	if d.SearchPath != "" {
		parts = append(parts, "search_path="+quoteValue(d.SearchPath))
	}
	return strings.Join(parts, " ")
}

// WithSearchPath returns a copy whose sessions resolve unqualified names in schema
func (d DatabaseConfig) WithSearchPath(schema string) DatabaseConfig {
	d.SearchPath = schema
	return d
}

func quoteValue(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// CognitoConfig identifies the user pool issuing the API's tokens
type CognitoConfig struct {
	Region     string
	UserPoolID string
	ClientIDs  []string
}

// Issuer is the token issuer (authority) of the user pool
func (c CognitoConfig) Issuer() string {
	return fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s", c.Region, c.UserPoolID)
}

// DiscoveryURL is the OpenID discovery document of the user pool
func (c CognitoConfig) DiscoveryURL() string {
	return c.Issuer() + "/.well-known/openid-configuration"
}

// Config is the API Lambda configuration, built once at cold start
type Config struct {
	AppName        string
	SchemaName     string
	IsLocal        bool
	LogLevel       string
	Database       DatabaseConfig
	Cognito        CognitoConfig
	AllowedDomains []string
}

// ProvisioningConfig is the configuration of the initial creation Lambda
type ProvisioningConfig struct {
	AppName          string
	SchemaName       string
	Admin            DatabaseConfig
	AppUsername      string
	AppPassword      string
	RunMigrations    bool
	MigrationWait    time.Duration
	MigrationsBucket string
	MigrationsPrefix string
}

// LoadDotEnv loads a .env file when one exists. Variables already set are never overridden.
func LoadDotEnv(files ...string) bool {
	return godotenv.Load(files...) == nil
}

// ParseIsLocal reads the IS_LOCAL flag
func ParseIsLocal(getenv Getenv) bool {
	isLocal, _ := strconv.ParseBool(getenv(constants.IS_LOCAL))
	return isLocal
}

// LoadAPI resolves the API configuration from the environment, the connection secret and SSM
func LoadAPI(ctx context.Context, getenv Getenv, secrets data.SecretsRepository, params data.SSMRepository) (*Config, error) {
	env, err := requireEnv(getenv,
		constants.SECRET_ARN_CONNECTION_STRING,
		constants.PARAMETER_ARN_COGNITO_REGION,
		constants.PARAMETER_ARN_COGNITO_USER_POOL_ID,
		constants.PARAMETER_ARN_COGNITO_USER_POOL_CLIENT_ID,
		constants.PARAMETER_ARN_API_ALLOWED_DOMAINS,
		constants.APP_NAME,
		constants.APP_SCHEMA_NAME,
	)
	if err != nil {
		return nil, err
	}

	appName := env[constants.APP_NAME]
	secret, err := secrets.GetSecret(ctx, env[constants.SECRET_ARN_CONNECTION_STRING])
	if err != nil {
		return nil, fmt.Errorf("error getting connection secret: %w", err)
	}

	database, err := databaseFromSecret(secret, appName, constants.SECRET_USERNAME, constants.SECRET_PASSWORD, getenv)
	if err != nil {
		return nil, err
	}

	regionArn := env[constants.PARAMETER_ARN_COGNITO_REGION]
	poolArn := env[constants.PARAMETER_ARN_COGNITO_USER_POOL_ID]
	clientArn := env[constants.PARAMETER_ARN_COGNITO_USER_POOL_CLIENT_ID]
	domainsArn := env[constants.PARAMETER_ARN_API_ALLOWED_DOMAINS]

	values, err := params.GetParameters(ctx, regionArn, poolArn, clientArn, domainsArn)
	if err != nil {
		return nil, fmt.Errorf("error getting SSM parameters: %w", err)
	}

	return &Config{
		AppName:    appName,
		SchemaName: env[constants.APP_SCHEMA_NAME],
		IsLocal:    ParseIsLocal(getenv),
		LogLevel:   getenv(constants.LOG_LEVEL),
		Database:   database,
		Cognito: CognitoConfig{
			Region:     strings.TrimSpace(values[regionArn]),
			UserPoolID: strings.TrimSpace(values[poolArn]),
			ClientIDs:  util.SplitList(values[clientArn]),
		},
		AllowedDomains: util.SplitList(values[domainsArn]),
	}, nil
}

// LoadProvisioning resolves the initial creation configuration. Identifier validation is left
// to the provisioning routine so that it happens right before any database work.
func LoadProvisioning(ctx context.Context, getenv Getenv, secrets data.SecretsRepository) (*ProvisioningConfig, error) {
	env, err := requireEnv(getenv,
		constants.SECRET_ARN_CONNECTION_STRING,
		constants.APP_NAME,
		constants.APP_SCHEMA_NAME,
	)
	if err != nil {
		return nil, err
	}

	appName := env[constants.APP_NAME]
	secret, err := secrets.GetSecret(ctx, env[constants.SECRET_ARN_CONNECTION_STRING])
	if err != nil {
		return nil, fmt.Errorf("error getting connection secret: %w", err)
	}

	admin, err := databaseFromSecret(secret, appName, constants.SECRET_ADM_USERNAME, constants.SECRET_ADM_PASSWORD, getenv)
	if err != nil {
		return nil, err
	}

	appCredentials, err := requireSecret(secret,
		constants.SecretKey(appName, constants.SECRET_APP_USERNAME),
		constants.SecretKey(appName, constants.SECRET_APP_PASSWORD),
	)
	if err != nil {
		return nil, err
	}

	runMigrations, _ := strconv.ParseBool(getenv(constants.RUN_MIGRATIONS))

	var migrationWait time.Duration
	if raw := getenv(constants.MIGRATION_WAIT); raw != "" {
		if migrationWait, err = time.ParseDuration(raw); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", constants.MIGRATION_WAIT, err)
		}
	}

	return &ProvisioningConfig{
		AppName:          appName,
		SchemaName:       env[constants.APP_SCHEMA_NAME],
		Admin:            admin,
		AppUsername:      appCredentials[constants.SecretKey(appName, constants.SECRET_APP_USERNAME)],
		AppPassword:      appCredentials[constants.SecretKey(appName, constants.SECRET_APP_PASSWORD)],
		RunMigrations:    runMigrations,
		MigrationWait:    migrationWait,
		MigrationsBucket: getenv(constants.MIGRATIONS_BUCKET),
		MigrationsPrefix: getenv(constants.MIGRATIONS_PREFIX),
	}, nil
}

func databaseFromSecret(secret map[string]string, appName, userKey, passwordKey string, getenv Getenv) (DatabaseConfig, error) {
	databaseKey := constants.SecretKey(appName, constants.SECRET_DATABASE)
	userKey = constants.SecretKey(appName, userKey)
	passwordKey = constants.SecretKey(appName, passwordKey)

	values, err := requireSecret(secret, constants.SECRET_HOST, constants.SECRET_PORT, databaseKey, userKey, passwordKey)
	if err != nil {
		return DatabaseConfig{}, err
	}

	sslMode, err := parseSSLMode(getenv(constants.SSL_MODE))
	if err != nil {
		return DatabaseConfig{}, err
	}

	return DatabaseConfig{
		Host:     values[constants.SECRET_HOST],
		Port:     values[constants.SECRET_PORT],
		Name:     values[databaseKey],
		User:     values[userKey],
		Password: values[passwordKey],
		SSLMode:  sslMode,
	}, nil
}

// parseSSLMode maps SSL_MODE onto the modes lib/pq supports. prefer and allow have no lib/pq
// counterpart and connect with require.
func parseSSLMode(value string) (string, error) {
	switch mode := strings.ToLower(strings.TrimSpace(value)); mode {
	case "":
		return constants.DEFAULT_SSL_MODE, nil
	case "prefer", "allow":
		return "require", nil
	case "disable", "require", "verify-ca", "verify-full":
		return mode, nil
	default:
		return "", fmt.Errorf("invalid %s %q: supported values are disable, require, verify-ca and verify-full", constants.SSL_MODE, value)
	}
}

func requireEnv(getenv Getenv, keys ...string) (map[string]string, error) {
	values := make(map[string]string, len(keys))
	for _, key := range keys {
		value := strings.TrimSpace(getenv(key))
		if value == "" {
			return nil, fmt.Errorf("environment variable %s is required", key)
		}
		values[key] = value
	}
	return values, nil
}

func requireSecret(secret map[string]string, keys ...string) (map[string]string, error) {
	values := make(map[string]string, len(keys))
	for _, key := range keys {
		value, ok := secret[key]
		if !ok || value == "" {
			return nil, fmt.Errorf("connection secret is missing key %s", key)
		}
		values[key] = value
	}
	return values, nil
}
