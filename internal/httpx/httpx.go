// Package httpx provides helper functions for creating HTTP responses.
package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kylejryan/claims-manager/internal/models"

	"github.com/aws/aws-lambda-go/events"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error           string             `json:"error"`
	Kind            models.ErrorKind   `json:"kind,omitempty"`
	Field           string             `json:"field,omitempty"`
	CurrentStatus   models.ClaimStatus `json:"current_status,omitempty"`
	RequestedStatus models.ClaimStatus `json:"requested_status,omitempty"`
}

// JSON creates a JSON HTTP response with the given status code and value.
func JSON(status int, v any) (events.APIGatewayV2HTTPResponse, error) {
	b, _ := json.Marshal(v)
	return events.APIGatewayV2HTTPResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
		Body: string(b),
	}, nil
}

// NoContent creates an empty 204 response.
func NoContent() (events.APIGatewayV2HTTPResponse, error) {
	return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusNoContent}, nil
}

// Error creates a JSON HTTP error response with the given status code and message.
func Error(status int, msg string) (events.APIGatewayV2HTTPResponse, error) {
	return JSON(status, ErrorBody{Error: msg})
}

// FromError renders a domain error. Errors without a kind become a bare 500.
func FromError(err error) (events.APIGatewayV2HTTPResponse, error) {
	var me *models.Error
	if !errors.As(err, &me) {
		return Error(http.StatusInternalServerError, "internal error")
	}
	body := ErrorBody{
		Error:           me.Error(),
		Kind:            me.Kind,
		Field:           me.Field,
		CurrentStatus:   me.Current,
		RequestedStatus: me.Target,
	}
	if me.Kind == models.KindStorageFailure {
		// the cause may carry driver details
		body.Error = "storage failure"
	}
	return JSON(Status(err), body)
}

// Status maps an error kind onto an HTTP status code.
func Status(err error) int {
	switch models.KindOf(err) {
	case models.KindNotFound:
		return http.StatusNotFound
	case models.KindInvalidField, models.KindInvalidPrice, models.KindInvalidScore, models.KindInvalidURL:
		return http.StatusUnprocessableEntity
	case models.KindIllegalTransition, models.KindFinalizationRequirementNotMet, models.KindClaimNotEditable:
		return http.StatusConflict
	case models.KindStorageFailure:
		if errors.Is(err, context.DeadlineExceeded) {
			return http.StatusGatewayTimeout
		}
	}
	return http.StatusInternalServerError
}
