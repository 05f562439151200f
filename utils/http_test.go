package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, WriteJSON(rec, http.StatusTeapot, map[string]string{"k": "v"}))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"k":"v"}`, rec.Body.String())
}

func TestWriteJSONNilBody(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, WriteJSON(rec, http.StatusOK, nil))
	assert.Empty(t, rec.Body.String())
}

func TestErrorWriters(t *testing.T) {
	tests := []struct {
		name      string
		write     func(w http.ResponseWriter) error
		status    int
		errorCode string
	}{
		{"bad request", func(w http.ResponseWriter) error { return WriteBadRequest(w, "nope", nil) }, http.StatusBadRequest, "bad_request"},
		{"not found", func(w http.ResponseWriter) error { return WriteNotFound(w, "") }, http.StatusNotFound, "not_found"},
		{"too many requests", func(w http.ResponseWriter) error { return WriteTooManyRequests(w, "", nil) }, http.StatusTooManyRequests, "rate_limit_exceeded"},
		{"bad gateway", func(w http.ResponseWriter) error { return WriteBadGateway(w, "", nil) }, http.StatusBadGateway, "bad_gateway"},
		{"service unavailable", func(w http.ResponseWriter) error { return WriteServiceUnavailable(w, "") }, http.StatusServiceUnavailable, "service_unavailable"},
		{"internal", func(w http.ResponseWriter) error { return WriteInternalServerError(w, "") }, http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			require.NoError(t, tt.write(rec))

			assert.Equal(t, tt.status, rec.Code)
			resp := decodeError(t, rec)
			assert.Equal(t, tt.errorCode, resp.Error)
			assert.NotEmpty(t, resp.Message)
		})
	}
}

func TestWriteOK(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, WriteOK(rec, map[string]int{"count": 3}))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":{"count":3}}`, rec.Body.String())
}
