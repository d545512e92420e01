package clients

import (
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// NewSecretsManagerClient creates the client used to read the database connection secret
func NewSecretsManagerClient(isLocal bool) *secretsmanager.Client {
	return secretsmanager.NewFromConfig(loadAWSConfig(isLocal, ""))
}
