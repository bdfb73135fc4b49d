package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/AnTengye/contractdesk/model"
	"github.com/gin-gonic/gin"
)

func TestRespondError(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedError  string
	}{
		{name: "validation", err: model.NewValidationError("name", "is required"), expectedStatus: http.StatusBadRequest, expectedError: "Validation failed"},
		{name: "credentials", err: model.ErrInvalidCredentials, expectedStatus: http.StatusUnauthorized, expectedError: "Invalid email or password"},
		{name: "authorization", err: &model.AuthorizationError{Action: "create templates", Required: []model.Role{model.RoleAdmin}}, expectedStatus: http.StatusForbidden},
		{name: "wrapped not found", err: fmt.Errorf("contracts %q: %w", "ctr-1", model.ErrNotFound), expectedStatus: http.StatusNotFound, expectedError: "Not found"},
		{name: "conflict", err: model.ErrConflict, expectedStatus: http.StatusConflict},
		{name: "loading session", err: model.ErrSessionLoading, expectedStatus: http.StatusServiceUnavailable},
		{name: "closed store", err: model.ErrStoreClosed, expectedStatus: http.StatusServiceUnavailable},
		{name: "external", err: &model.ExternalServiceError{Service: "storage", Err: errors.New("timeout")}, expectedStatus: http.StatusBadGateway, expectedError: "storage service unavailable"},
		{name: "deadline", err: context.DeadlineExceeded, expectedStatus: http.StatusGatewayTimeout},
		{name: "unknown", err: errors.New("boom"), expectedStatus: http.StatusInternalServerError, expectedError: "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest("GET", "/", nil)

			respondError(c, tt.err)

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
			if !c.IsAborted() {
				t.Error("Expected context to be aborted")
			}
			if len(c.Errors) != 1 {
				t.Errorf("Expected error to be recorded on the context, got %d", len(c.Errors))
			}
			body := decode[errorBody](t, w)
			if tt.expectedError != "" && body.Error != tt.expectedError {
				t.Errorf("Expected error %q, got %q", tt.expectedError, body.Error)
			}
			if tt.name == "validation" && body.Fields["name"] != "is required" {
				t.Errorf("Expected field message, got %v", body.Fields)
			}
		})
	}
}
