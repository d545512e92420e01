package clients

import (
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
)

// NewCognitoIdentityProviderClient creates a Cognito client for the user pool's region
func NewCognitoIdentityProviderClient(isLocal bool, region string) *cognitoidentityprovider.Client {
	return cognitoidentityprovider.NewFromConfig(loadAWSConfig(isLocal, region))
}
