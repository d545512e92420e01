package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"traininglog/lib/api"
	"traininglog/lib/auth"
	"traininglog/lib/data"
	"traininglog/lib/models"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Identifier resolves the caller of a request
type Identifier interface {
	Identify(ctx context.Context, request events.APIGatewayProxyRequest) (*auth.CallerIdentity, error)
}

// Handler serves the training log API behind API Gateway
type Handler struct {
	Repository data.TrainingSessionRepository
	Auth       Identifier
	CORS       *api.CORSPolicy
	Logger     *logrus.Logger
}

type handlerFunc func(ctx context.Context, caller *auth.CallerIdentity, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error)

type route struct {
	method    string
	operation string
	handle    handlerFunc
}

func (h *Handler) routes() map[string]route {
	return map[string]route{
		"entrenamiento/listar":     {http.MethodGet, "Listar", h.handleList},
		"entrenamiento/obtener":    {http.MethodGet, "Obtener", h.handleGet},
		"entrenamiento/crear":      {http.MethodPost, "Crear", h.handleCreate},
		"entrenamiento/actualizar": {http.MethodPut, "Actualizar", h.handleUpdate},
		"entrenamiento/eliminar":   {http.MethodDelete, "Eliminar", h.handleDelete},
		"profile":                  {http.MethodGet, "Profile", h.handleProfile},
	}
}

// routeKey matches on the trailing path segments so that stage prefixes are ignored
func routeKey(path string) string {
	segments := strings.Split(strings.ToLower(strings.Trim(path, "/")), "/")
	last := segments[len(segments)-1]
	if last == "profile" {
		return last
	}
	if len(segments) >= 2 {
		return segments[len(segments)-2] + "/" + last
	}
	return last
}

// LambdaHandler is the API Gateway proxy entry point
func (h *Handler) LambdaHandler(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if request.HTTPMethod == http.MethodOptions {
		return h.CORS.Preflight(request), nil
	}

	startTime := time.Now()
	requestID := request.RequestContext.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}

	fields := logrus.Fields{
		"method":     request.HTTPMethod,
		"path":       request.Path,
		"request_id": requestID,
	}

	response, err := h.dispatch(ctx, request, fields)
	fields["status"] = response.StatusCode
	fields["elapsed_ms"] = time.Since(startTime).Milliseconds()
	log := h.Logger.WithFields(fields)

	switch {
	case response.StatusCode >= http.StatusInternalServerError:
		log.WithError(err).Error("Request failed")
	case response.StatusCode >= http.StatusBadRequest:
		if err != nil {
			log = log.WithField("reason", err.Error())
		}
		log.Warn("Request rejected")
	default:
		log.Info("Request completed")
	}

	return h.CORS.Apply(request, response), nil
}

// dispatch adds the operation and caller to fields as they become known
func (h *Handler) dispatch(ctx context.Context, request events.APIGatewayProxyRequest, fields logrus.Fields) (events.APIGatewayProxyResponse, error) {
	r, found := h.routes()[routeKey(request.Path)]
	fields["operation"] = "Unknown"
	if found {
		fields["operation"] = r.operation
	}

	// Unknown routes and methods are only revealed to authenticated callers
	caller, err := h.Auth.Identify(ctx, request)
	if err != nil {
		if errors.Is(err, auth.ErrUnauthenticated) {
			return api.ErrorResponse(http.StatusUnauthorized, "Authentication failed", h.Logger), err
		}
		return api.ErrorResponse(http.StatusInternalServerError, "Internal server error", h.Logger), err
	}
	fields["caller"] = caller.Subject

	if !found {
		return api.ErrorResponse(http.StatusNotFound, "Not found", h.Logger), nil
	}
	if !strings.EqualFold(request.HTTPMethod, r.method) {
		return api.ErrorResponse(http.StatusMethodNotAllowed, "Method not allowed", h.Logger), nil
	}

	return r.handle(ctx, caller, request)
}

// handleList handles GET /Entrenamiento/Listar
func (h *Handler) handleList(ctx context.Context, caller *auth.CallerIdentity, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	from, err := parseTimeParam(request, "desde", false)
	if err != nil {
		return api.ValidationErrorResponse("Invalid request", []string{err.Error()}, h.Logger), err
	}
	to, err := parseTimeParam(request, "hasta", true)
	if err != nil {
		return api.ValidationErrorResponse("Invalid request", []string{err.Error()}, h.Logger), err
	}
	page, err := parsePositiveIntParam(request, "numPagina")
	if err != nil {
		return api.ValidationErrorResponse("Invalid request", []string{err.Error()}, h.Logger), err
	}
	pageSize, err := parsePositiveIntParam(request, "cantElemPagina")
	if err != nil {
		return api.ValidationErrorResponse("Invalid request", []string{err.Error()}, h.Logger), err
	}

	result, err := h.Repository.ListTrainingSessions(ctx, caller.Subject, from, to, models.NewPageRequest(page, pageSize))
	if err != nil {
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to list training sessions", h.Logger), err
	}

	return api.SuccessResponse(http.StatusOK, result, h.Logger), nil
}

// handleGet handles GET /Entrenamiento/Obtener?id=
func (h *Handler) handleGet(ctx context.Context, caller *auth.CallerIdentity, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	id, err := parseID(request)
	if err != nil {
		return api.ValidationErrorResponse("Invalid request", []string{err.Error()}, h.Logger), err
	}

	session, err := h.Repository.GetTrainingSession(ctx, id, caller.Subject)
	if errors.Is(err, models.ErrNotFound) {
		return api.ErrorResponse(http.StatusNotFound, "Training session not found", h.Logger), err
	}
	if err != nil {
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to get training session", h.Logger), err
	}

	return api.SuccessResponse(http.StatusOK, session, h.Logger), nil
}

// handleCreate handles POST /Entrenamiento/Crear
func (h *Handler) handleCreate(ctx context.Context, caller *auth.CallerIdentity, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	req, err := parseBody(request.Body)
	if err != nil {
		return api.ValidationErrorResponse("Invalid request body", []string{err.Error()}, h.Logger), err
	}

	h.Logger.WithFields(logrus.Fields{
		"operation": "Crear",
		"caller":    caller.Subject,
		"session":   req.String(),
	}).Debug("Creating training session")

	session, err := h.Repository.CreateTrainingSession(ctx, caller.Subject, req)
	if errors.Is(err, models.ErrForbidden) {
		return api.ErrorResponse(http.StatusUnauthorized, "Request id belongs to another user", h.Logger), err
	}
	if err != nil {
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to create training session", h.Logger), err
	}

	return api.SuccessResponse(http.StatusOK, session, h.Logger), nil
}

// handleUpdate handles PUT /Entrenamiento/Actualizar?id=
func (h *Handler) handleUpdate(ctx context.Context, caller *auth.CallerIdentity, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	id, err := parseID(request)
	if err != nil {
		return api.ValidationErrorResponse("Invalid request", []string{err.Error()}, h.Logger), err
	}

	req, err := parseBody(request.Body)
	if err != nil {
		return api.ValidationErrorResponse("Invalid request body", []string{err.Error()}, h.Logger), err
	}

	session, err := h.Repository.UpdateTrainingSession(ctx, id, caller.Subject, req)
	switch {
	case errors.Is(err, models.ErrNotFound):
		return api.ErrorResponse(http.StatusBadRequest, "Training session not found", h.Logger), err
	case errors.Is(err, models.ErrForbidden):
		return api.ErrorResponse(http.StatusUnauthorized, "Training session belongs to another user", h.Logger), err
	case err != nil:
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to update training session", h.Logger), err
	}

	return api.SuccessResponse(http.StatusOK, session, h.Logger), nil
}

// handleDelete handles DELETE /Entrenamiento/Eliminar?id=
func (h *Handler) handleDelete(ctx context.Context, caller *auth.CallerIdentity, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	id, err := parseID(request)
	if err != nil {
		return api.ValidationErrorResponse("Invalid request", []string{err.Error()}, h.Logger), err
	}

	err = h.Repository.DeleteTrainingSession(ctx, id, caller.Subject)
	if errors.Is(err, models.ErrForbidden) {
		return api.ErrorResponse(http.StatusUnauthorized, "Training session belongs to another user", h.Logger), err
	}
	if err != nil {
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to delete training session", h.Logger), err
	}

	return api.EmptyResponse(http.StatusOK), nil
}

// handleProfile handles GET /Profile
func (h *Handler) handleProfile(ctx context.Context, caller *auth.CallerIdentity, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return api.SuccessResponse(http.StatusOK, caller.Claims, h.Logger), nil
}

func queryParam(request events.APIGatewayProxyRequest, name string) string {
	for key, value := range request.QueryStringParameters {
		if strings.EqualFold(key, name) {
			return strings.TrimSpace(value)
		}
	}
	for key, values := range request.MultiValueQueryStringParameters {
		if strings.EqualFold(key, name) && len(values) > 0 {
			return strings.TrimSpace(values[0])
		}
	}
	return ""
}

func parseID(request events.APIGatewayProxyRequest) (int64, error) {
	raw := queryParam(request, "id")
	if raw == "" {
		return 0, &models.ValidationError{Field: "id", Message: "is required"}
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, &models.ValidationError{Field: "id", Message: "must be a positive integer"}
	}
	return id, nil
}

// parsePositiveIntParam returns 0 for an absent parameter so that the page defaults apply
func parsePositiveIntParam(request events.APIGatewayProxyRequest, name string) (int, error) {
	raw := queryParam(request, name)
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return 0, &models.ValidationError{Field: name, Message: "must be a positive integer"}
	}
	return value, nil
}

var timeLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05"}

const dateLayout = "2006-01-02"

// parseTimeParam accepts RFC 3339, a zoneless timestamp (UTC) or a date. A date used as the
// upper bound covers the whole day.
func parseTimeParam(request events.APIGatewayProxyRequest, name string, endOfDay bool) (time.Time, error) {
	raw := queryParam(request, name)
	if raw == "" {
		return time.Time{}, &models.ValidationError{Field: name, Message: "is required"}
	}

	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}

	if t, err := time.Parse(dateLayout, raw); err == nil {
		if endOfDay {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		return t, nil
	}

	return time.Time{}, &models.ValidationError{Field: name, Message: fmt.Sprintf("%q is not a valid date", raw)}
}

func parseBody(body string) (*models.TrainingSessionRequest, error) {
	var req models.TrainingSessionRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		return nil, &models.ValidationError{Field: "body", Message: err.Error()}
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return &req, nil
}
