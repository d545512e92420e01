package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"

	"traininglog/lib/models"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/sirupsen/logrus"
)

// ErrUnauthenticated is returned when a request carries no usable identity
var ErrUnauthenticated = errors.New("unauthenticated")

// ClaimPair is one claim of the caller's token
type ClaimPair struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// CallerIdentity is the validated caller of a request
type CallerIdentity struct {
	Subject string      // Stable user identifier ('sub' claim); owner of training sessions
	Claims  []ClaimPair // Every claim of the token, sorted by key
}

// ToJSON converts the identity to JSON string for logging
func (c *CallerIdentity) ToJSON() string {
	data, _ := json.Marshal(c)
	return string(data)
}

// subject claims in order of preference
var subjectClaims = []string{"sub", "username", "cognito:username"}

// ExtractClaimsFromRequest reads the claims the API Gateway Cognito authorizer placed in the request context
func ExtractClaimsFromRequest(request events.APIGatewayProxyRequest) (*CallerIdentity, error) {
	var claimsMap map[string]interface{}
	var ok bool

	if authClaims, exists := request.RequestContext.Authorizer["claims"]; exists {
		claimsMap, ok = authClaims.(map[string]interface{})
	}

	// Lambda authorizers put their context directly under the authorizer
	if !ok {
		claimsMap = request.RequestContext.Authorizer
	}

	if len(claimsMap) == 0 {
		return nil, fmt.Errorf("%w: claims not found in authorizer context", ErrUnauthenticated)
	}

	claims := make(map[string]string, len(claimsMap))
	for key, value := range claimsMap {
		switch v := value.(type) {
		case string:
			claims[key] = v
		case float64:
			claims[key] = strconv.FormatFloat(v, 'f', -1, 64)
		case nil:
			continue
		default:
			claims[key] = fmt.Sprint(v)
		}
	}

	return newIdentity(claims)
}

func newIdentity(claims map[string]string) (*CallerIdentity, error) {
	identity := &CallerIdentity{}
	for _, key := range subjectClaims {
		if value := strings.TrimSpace(claims[key]); value != "" {
			identity.Subject = value
			break
		}
	}
	if identity.Subject == "" {
		return nil, fmt.Errorf("%w: sub not found or invalid in claims", ErrUnauthenticated)
	}

	keys := make([]string, 0, len(claims))
	for key := range claims {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	identity.Claims = make([]ClaimPair, 0, len(keys))
	for _, key := range keys {
		identity.Claims = append(identity.Claims, ClaimPair{Key: key, Value: claims[key]})
	}

	return identity, nil
}

// BearerToken returns the token of the Authorization header
func BearerToken(request events.APIGatewayProxyRequest) string {
	header := headerValue(request, "Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

func headerValue(request events.APIGatewayProxyRequest, name string) string {
	for key, value := range request.Headers {
		if strings.EqualFold(key, name) {
			return value
		}
	}
	for key, values := range request.MultiValueHeaders {
		if strings.EqualFold(key, name) && len(values) > 0 {
			return values[0]
		}
	}
	return ""
}

// TokenVerifier validates a bearer token with the identity provider
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*CallerIdentity, error)
}

type CognitoClientInterface interface {
	GetUser(ctx context.Context, params *cognitoidentityprovider.GetUserInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.GetUserOutput, error)
}

// CognitoVerifier lets Cognito validate an access token through GetUser. It serves requests
// that did not pass through the API Gateway authorizer, e.g. local runs.
type CognitoVerifier struct {
	Client CognitoClientInterface
}

func (v *CognitoVerifier) Verify(ctx context.Context, token string) (*CallerIdentity, error) {
	output, err := v.Client.GetUser(ctx, &cognitoidentityprovider.GetUserInput{
		AccessToken: aws.String(token),
	})
	if err != nil {
		var notAuthorized *types.NotAuthorizedException
		var userNotFound *types.UserNotFoundException
		if errors.As(err, &notAuthorized) || errors.As(err, &userNotFound) {
			return nil, fmt.Errorf("%w: cognito rejected token: %v", ErrUnauthenticated, err)
		}
		return nil, err
	}

	claims := map[string]string{"username": aws.ToString(output.Username)}
	for _, attribute := range output.UserAttributes {
		claims[aws.ToString(attribute.Name)] = aws.ToString(attribute.Value)
	}

	// GetUser does not report the app client of the token
	if clientID := tokenClientID(token); clientID != "" {
		claims["client_id"] = clientID
	}

	return newIdentity(claims)
}

// tokenClientID returns the client_id claim of a Cognito access token, or "" when it cannot be read
func tokenClientID(token string) string {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return ""
	}

	payload, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[1], "="))
	if err != nil {
		return ""
	}

	var claims struct {
		ClientID string `json:"client_id"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return ""
	}
	return claims.ClientID
}

// Authenticator resolves the caller of every request before it reaches the store
type Authenticator struct {
	Verifier  TokenVerifier // optional
	ClientIDs []string      // app clients allowed to call the API; empty allows every client
	Logger    *logrus.Logger
}

// audienceClaims carry the app client: client_id in access tokens, aud in ID tokens
var audienceClaims = []string{"client_id", "aud"}

// checkAudience rejects tokens issued to an app client outside ClientIDs
func (a *Authenticator) checkAudience(identity *CallerIdentity) error {
	if len(a.ClientIDs) == 0 {
		return nil
	}

	for _, claim := range identity.Claims {
		if !slices.Contains(audienceClaims, claim.Key) {
			continue
		}
		if slices.Contains(a.ClientIDs, claim.Value) {
			return nil
		}
	}

	return fmt.Errorf("%w: token was not issued to an allowed app client", ErrUnauthenticated)
}

// Identify returns the caller identity or an error wrapping ErrUnauthenticated.
// Upstream failures of the verifier are reported as models.ErrUpstream.
func (a *Authenticator) Identify(ctx context.Context, request events.APIGatewayProxyRequest) (*CallerIdentity, error) {
	source := "authorizer"
	identity, err := ExtractClaimsFromRequest(request)
	if err != nil {
		if a.Verifier == nil {
			return nil, err
		}

		token := BearerToken(request)
		if token == "" {
			return nil, fmt.Errorf("%w: bearer token not found", ErrUnauthenticated)
		}

		identity, err = a.Verifier.Verify(ctx, token)
		if err != nil {
			if !errors.Is(err, ErrUnauthenticated) {
				return nil, models.Upstream("failed to verify token", err)
			}
			return nil, err
		}
		source = "cognito"
	}

	if err := a.checkAudience(identity); err != nil {
		return nil, err
	}

	if a.Logger.IsLevelEnabled(logrus.DebugLevel) {
		a.Logger.WithFields(logrus.Fields{
			"operation": "Identify",
			"source":    source,
			"identity":  identity.ToJSON(),
		}).Debug("Caller identified")
	}

	return identity, nil
}
