package constants

// Environment variables read by the Lambdas at cold start
const (
	SECRET_ARN_CONNECTION_STRING              = "SECRET_ARN_CONNECTION_STRING"
	PARAMETER_ARN_COGNITO_REGION              = "PARAMETER_ARN_COGNITO_REGION"
	PARAMETER_ARN_COGNITO_USER_POOL_ID        = "PARAMETER_ARN_COGNITO_USER_POOL_ID"
	PARAMETER_ARN_COGNITO_USER_POOL_CLIENT_ID = "PARAMETER_ARN_COGNITO_USER_POOL_CLIENT_ID"
	PARAMETER_ARN_API_ALLOWED_DOMAINS         = "PARAMETER_ARN_API_ALLOWED_DOMAINS"
	APP_NAME                                  = "APP_NAME"
	APP_SCHEMA_NAME                           = "APP_SCHEMA_NAME"
	LOG_LEVEL                                 = "LOG_LEVEL"
	IS_LOCAL                                  = "IS_LOCAL"
	SSL_MODE                                  = "SSL_MODE"
	AWS_REGION                                = "AWS_REGION"
	RUN_MIGRATIONS                            = "RUN_MIGRATIONS"
	MIGRATION_WAIT                            = "MIGRATION_WAIT"
	MIGRATIONS_BUCKET                         = "MIGRATIONS_BUCKET"
	MIGRATIONS_PREFIX                         = "MIGRATIONS_PREFIX"
)

// Keys of the connection secret stored in Secrets Manager.
// Keys prefixed with the app name are built with SecretKey.
const (
	SECRET_HOST         = "Host"
	SECRET_PORT         = "Port"
	SECRET_DATABASE     = "Database"
	SECRET_USERNAME     = "Username"
	SECRET_PASSWORD     = "Password"
	SECRET_ADM_USERNAME = "AdmUsername"
	SECRET_ADM_PASSWORD = "AdmPassword"
	SECRET_APP_USERNAME = "AppUsername"
	SECRET_APP_PASSWORD = "AppPassword"
)

const (
	DRIVER_NAME       = "postgres"
	DEFAULT_SSL_MODE  = "require"
	DEFAULT_REGION    = "us-east-1"
	LOCALSTACK_URL    = "http://docker.for.mac.host.internal:4566"
	SESSIONS_TABLE    = "training_session"
	DEFAULT_PAGE      = 1
	DEFAULT_PAGE_SIZE = 25
	MAX_PAGE_SIZE     = 100
)

// SecretKey returns the app-scoped key of the connection secret, e.g. "MateoDatabase"
func SecretKey(appName, key string) string {
	return appName + key
}
