package clients

import (
	"context"
	"os"

	"traininglog/lib/constants"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
)

// loadAWSConfig loads the default SDK configuration. Local runs are pointed at LocalStack.
func loadAWSConfig(isLocal bool, region string) aws.Config {
	if region == "" {
		region = os.Getenv(constants.AWS_REGION)
	}
	if region == "" {
		region = constants.DEFAULT_REGION
	}

	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion(region),
	)
	if err != nil {
		panic("failed to load AWS configuration: " + err.Error())
	}

	if isLocal {
		cfg.BaseEndpoint = aws.String(constants.LOCALSTACK_URL)
	}

	return cfg
}
