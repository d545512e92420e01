package api

import (
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
)

const (
	allowHeaders = "Content-Type,X-Amz-Date,Authorization,X-Api-Key,X-Amz-Security-Token"
	allowMethods = "GET,POST,PUT,DELETE,OPTIONS"
)

// CORSPolicy allows browser calls from the configured origins only
type CORSPolicy struct {
	AllowedOrigins []string
}

// IsAllowed reports whether origin may call the API. "*" allows every origin.
func (p *CORSPolicy) IsAllowed(origin string) bool {
	if origin == "" {
		return false
	}
	for _, allowed := range p.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(strings.TrimSuffix(allowed, "/"), origin) {
			return true
		}
	}
	return false
}

// Apply adds the CORS headers to response when the request origin is allowed
func (p *CORSPolicy) Apply(request events.APIGatewayProxyRequest, response events.APIGatewayProxyResponse) events.APIGatewayProxyResponse {
	origin := Origin(request)
	if !p.IsAllowed(origin) {
		return response
	}

	if response.Headers == nil {
		response.Headers = map[string]string{}
	}
	response.Headers["Access-Control-Allow-Origin"] = origin
	response.Headers["Access-Control-Allow-Headers"] = allowHeaders
	response.Headers["Access-Control-Allow-Methods"] = allowMethods
	response.Headers["Vary"] = "Origin"
	return response
}

// Preflight answers an OPTIONS request
func (p *CORSPolicy) Preflight(request events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	if !p.IsAllowed(Origin(request)) {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusBadRequest}
	}
	return p.Apply(request, events.APIGatewayProxyResponse{StatusCode: http.StatusOK})
}

// Origin returns the Origin header of the request
func Origin(request events.APIGatewayProxyRequest) string {
	for key, value := range request.Headers {
		if strings.EqualFold(key, "origin") {
			return value
		}
	}
	for key, values := range request.MultiValueHeaders {
		if strings.EqualFold(key, "origin") && len(values) > 0 {
			return values[0]
		}
	}
	return ""
}
