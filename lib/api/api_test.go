package api

import (
	"encoding/json"
	"math"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuccessResponse(t *testing.T) {
	response := SuccessResponse(http.StatusOK, map[string]int{"id": 7}, logrus.New())

	assert.Equal(t, http.StatusOK, response.StatusCode)
	assert.JSONEq(t, `{"id":7}`, response.Body)
	assert.Equal(t, "application/json", response.Headers["Content-Type"])
}

func TestSuccessResponse_MarshalFailure(t *testing.T) {
	response := SuccessResponse(http.StatusOK, math.NaN(), logrus.New())

	assert.Equal(t, http.StatusInternalServerError, response.StatusCode)
}

func TestEmptyResponse(t *testing.T) {
	response := EmptyResponse(http.StatusOK)

	assert.Equal(t, http.StatusOK, response.StatusCode)
	assert.Empty(t, response.Body)
}

func TestErrorResponse(t *testing.T) {
	response := ErrorResponse(http.StatusUnauthorized, "Authentication failed", logrus.New())

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(response.Body), &body))
	assert.Equal(t, http.StatusUnauthorized, response.StatusCode)
	assert.Equal(t, true, body["error"])
	assert.Equal(t, "Authentication failed", body["message"])
	assert.Equal(t, float64(401), body["status"])
}

func TestValidationErrorResponse(t *testing.T) {
	response := ValidationErrorResponse("Invalid request", []string{"invalid id: must be a positive integer"}, logrus.New())

	assert.Equal(t, http.StatusBadRequest, response.StatusCode)
	assert.Contains(t, response.Body, "must be a positive integer")
}

func TestCORSPolicy(t *testing.T) {
	policy := &CORSPolicy{AllowedOrigins: []string{"https://app.example.com/", "http://localhost:3000"}}

	assert.True(t, policy.IsAllowed("https://app.example.com"))
	assert.True(t, policy.IsAllowed("http://localhost:3000"))
	assert.False(t, policy.IsAllowed("https://evil.example.com"))
	assert.False(t, policy.IsAllowed(""))
	assert.True(t, (&CORSPolicy{AllowedOrigins: []string{"*"}}).IsAllowed("https://any.example.com"))
}

func TestCORSPolicy_Apply(t *testing.T) {
	policy := &CORSPolicy{AllowedOrigins: []string{"https://app.example.com"}}
	request := events.APIGatewayProxyRequest{Headers: map[string]string{"origin": "https://app.example.com"}}

	response := policy.Apply(request, SuccessResponse(http.StatusOK, "ok", logrus.New()))

	assert.Equal(t, "https://app.example.com", response.Headers["Access-Control-Allow-Origin"])
	assert.Equal(t, "application/json", response.Headers["Content-Type"])

	other := events.APIGatewayProxyRequest{Headers: map[string]string{"Origin": "https://evil.example.com"}}
	response = policy.Apply(other, SuccessResponse(http.StatusOK, "ok", logrus.New()))
	assert.NotContains(t, response.Headers, "Access-Control-Allow-Origin")
}

func TestCORSPolicy_Preflight(t *testing.T) {
	policy := &CORSPolicy{AllowedOrigins: []string{"https://app.example.com"}}

	allowed := policy.Preflight(events.APIGatewayProxyRequest{
		MultiValueHeaders: map[string][]string{"Origin": {"https://app.example.com"}},
	})
	assert.Equal(t, http.StatusOK, allowed.StatusCode)
	assert.Equal(t, allowMethods, allowed.Headers["Access-Control-Allow-Methods"])

	denied := policy.Preflight(events.APIGatewayProxyRequest{Headers: map[string]string{"origin": "https://evil.example.com"}})
	assert.Equal(t, http.StatusBadRequest, denied.StatusCode)
	assert.Empty(t, denied.Headers["Access-Control-Allow-Origin"])
}
