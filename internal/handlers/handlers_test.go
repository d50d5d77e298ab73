package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"charles-backend/internal/models"
	"charles-backend/internal/services"
)

// ─── Error Mapping Tests ───

func TestHandleServiceErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", &services.ValidationError{Fields: map[string]string{"title": "required"}}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"conflict", &services.ConflictError{Message: "taken"}, http.StatusConflict, "CONFLICT"},
		{"not found", &services.NotFoundError{Message: "gone"}, http.StatusNotFound, "NOT_FOUND"},
		{"unauthorized", &services.UnauthorizedError{Message: "no"}, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"forbidden", &services.ForbiddenError{Message: "nope"}, http.StatusForbidden, "FORBIDDEN"},
		{"rate limited", &services.RateLimitError{Message: "slow down"}, http.StatusTooManyRequests, "RATE_LIMITED"},
		{"upstream", &services.UpstreamError{Provider: "gemini", Message: "overloaded"}, http.StatusBadGateway, "UPSTREAM_ERROR"},
		{"unknown", http.ErrBodyNotAllowed, http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", nil)

			handleServiceError(rr, req, tc.err)

			if rr.Code != tc.wantStatus {
				t.Errorf("expected status %d, got %d", tc.wantStatus, rr.Code)
			}

			var resp models.ErrorResponse
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode error body: %v", err)
			}
			if resp.Error.Code != tc.wantCode {
				t.Errorf("expected code %q, got %q", tc.wantCode, resp.Error.Code)
			}
		})
	}
}

func TestErrorRespCarriesRequestID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-123")

	resp := errorResp("NOT_FOUND", "Task not found", req)
	if resp.Error.RequestID != "req-123" {
		t.Errorf("expected request ID to be echoed, got %q", resp.Error.RequestID)
	}
}

func TestValidationFieldsInResponse(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", nil)

	handleServiceError(rr, req, &services.ValidationError{Fields: map[string]string{
		"email":    "Invalid email format",
		"password": "Password must be at least 8 characters",
	}})

	var resp models.ErrorResponse
	json.NewDecoder(rr.Body).Decode(&resp)
	if resp.Error.Fields["email"] != "Invalid email format" {
		t.Errorf("field errors not carried through: %v", resp.Error.Fields)
	}
}

// ─── Task Form Validation Tests ───

// Validation runs before any repository access, so a handler with nil
// dependencies exercises the reject paths safely.

func postTask(t *testing.T, body map[string]interface{}) *httptest.ResponseRecorder {
	t.Helper()

	h := NewTaskHandler(nil, nil, nil)
	jsonBody, _ := json.Marshal(body)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks", bytes.NewReader(jsonBody))
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	h.Create(rr, req)
	return rr
}

func taskFieldErrors(t *testing.T, rr *httptest.ResponseRecorder) map[string]string {
	t.Helper()

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp models.ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return resp.Error.Fields
}

func TestTaskCreateRejectsUnknownKind(t *testing.T) {
	fields := taskFieldErrors(t, postTask(t, map[string]interface{}{
		"kind":          "essay-writing",
		"output_format": "qna",
		"query":         "help me",
	}))
	if _, ok := fields["kind"]; !ok {
		t.Errorf("expected kind error, got %v", fields)
	}
}

func TestTaskCreateRejectsUnknownFormat(t *testing.T) {
	fields := taskFieldErrors(t, postTask(t, map[string]interface{}{
		"kind":          models.TaskKindHelp,
		"output_format": "haiku",
		"query":         "help me",
	}))
	if _, ok := fields["output_format"]; !ok {
		t.Errorf("expected output_format error, got %v", fields)
	}
}

func TestTaskCreateRequiresSomeInput(t *testing.T) {
	fields := taskFieldErrors(t, postTask(t, map[string]interface{}{
		"kind":          models.TaskKindSummary,
		"output_format": "summary",
	}))
	if _, ok := fields["query"]; !ok {
		t.Errorf("expected an input-required error, got %v", fields)
	}
}

func TestTaskCreateRejectsMalformedDataURI(t *testing.T) {
	fields := taskFieldErrors(t, postTask(t, map[string]interface{}{
		"kind":          models.TaskKindHelp,
		"output_format": "qna",
		"file_data_uri": "not-a-data-uri",
	}))
	if _, ok := fields["file_data_uri"]; !ok {
		t.Errorf("expected file_data_uri error, got %v", fields)
	}
}

func TestTaskCreateRejectsNonYouTubeURL(t *testing.T) {
	fields := taskFieldErrors(t, postTask(t, map[string]interface{}{
		"kind":          models.TaskKindSummary,
		"output_format": "summary",
		"source_url":    "https://vimeo.com/12345",
	}))
	if _, ok := fields["source_url"]; !ok {
		t.Errorf("expected source_url error, got %v", fields)
	}
}
