package data

import (
	"context"
	"fmt"
	"strings"

	"traininglog/lib/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/sirupsen/logrus"
)

// SSM accepts at most ten names per GetParameters call
const maxParametersPerCall = 10

type SSMRepository interface {
	GetParameters(ctx context.Context, names ...string) (map[string]string, error)
}

type SSMClientInterface interface {
	GetParameters(ctx context.Context, params *ssm.GetParametersInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersOutput, error)
}

type SSMDao struct {
	SSM    SSMClientInterface
	Logger *logrus.Logger
}

// GetParameters resolves parameters by name or ARN. The result is keyed by the identifier
// the caller asked for; any parameter SSM cannot resolve fails the whole call.
func (client *SSMDao) GetParameters(ctx context.Context, names ...string) (map[string]string, error) {
	params := map[string]string{}

	for start := 0; start < len(names); start += maxParametersPerCall {
		end := min(start+maxParametersPerCall, len(names))
		batch := names[start:end]

		output, err := client.SSM.GetParameters(ctx, &ssm.GetParametersInput{
			Names:          batch,
			WithDecryption: aws.Bool(true),
		})
		if err != nil {
			client.Logger.WithFields(logrus.Fields{
				"operation": "GetParameters",
				"error":     err.Error(),
			}).Error("Failed to get SSM parameters")
			return nil, models.Upstream("failed to get SSM parameters", err)
		}

		if len(output.InvalidParameters) > 0 {
			return nil, models.Upstream("failed to get SSM parameters",
				fmt.Errorf("invalid parameters: %s", strings.Join(output.InvalidParameters, ",")))
		}

		for _, param := range output.Parameters {
			key := aws.ToString(param.Name)
			for _, requested := range batch {
				if requested == aws.ToString(param.ARN) {
					key = requested
					break
				}
			}
			params[key] = aws.ToString(param.Value)
		}
	}

	client.Logger.WithFields(logrus.Fields{
		"operation":    "GetParameters",
		"params_count": len(params),
	}).Debug("Retrieved SSM parameters")

	return params, nil
}
