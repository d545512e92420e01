package data

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"traininglog/lib/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/sirupsen/logrus"
)

// SecretsRepository reads JSON key/value secrets
type SecretsRepository interface {
	GetSecret(ctx context.Context, secretID string) (map[string]string, error)
}

type SecretsManagerClientInterface interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

type SecretsManagerDao struct {
	Client SecretsManagerClientInterface
	Logger *logrus.Logger
}

// GetSecret fetches a secret whose SecretString is a flat JSON object. Non-string values
// (RDS stores the port as a number) are returned in their JSON text form.
func (dao *SecretsManagerDao) GetSecret(ctx context.Context, secretID string) (map[string]string, error) {
	output, err := dao.Client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretID),
	})
	if err != nil {
		dao.Logger.WithFields(logrus.Fields{
			"operation": "GetSecret",
			"error":     err.Error(),
		}).Error("Failed to get secret value")
		return nil, models.Upstream("failed to get secret value", err)
	}

	if output.SecretString == nil {
		return nil, models.Upstream("failed to get secret value", fmt.Errorf("secret has no string value"))
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(*output.SecretString), &raw); err != nil {
		return nil, models.Upstream("failed to decode secret value", err)
	}

	secret := make(map[string]string, len(raw))
	for key, value := range raw {
		var s string
		if err := json.Unmarshal(value, &s); err == nil {
			secret[key] = s
			continue
		}
		secret[key] = strings.TrimSpace(string(value))
	}

	dao.Logger.WithFields(logrus.Fields{
		"operation": "GetSecret",
		"keys":      len(secret),
	}).Debug("Retrieved secret value")

	return secret, nil
}
