package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/Priya8975/socialproof-pipeline/internal/adapter"
	"github.com/Priya8975/socialproof-pipeline/internal/domain"
	"github.com/Priya8975/socialproof-pipeline/internal/ingest"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body, err := readBody(w, r)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading request body: %w", err)
	}
	return body, nil
}

// statusFor maps pipeline errors onto HTTP status codes.
func statusFor(err error) int {
	var (
		unknownProvider *adapter.UnknownProviderError
		normalization   *adapter.NormalizationError
	)
	switch {
	case errors.Is(err, ingest.ErrUnknownConnector), errors.As(err, &unknownProvider):
		return http.StatusNotFound
	case errors.Is(err, ingest.ErrProviderMismatch), errors.Is(err, ingest.ErrSyncInProgress):
		return http.StatusConflict
	case errors.Is(err, ingest.ErrSyncTooSoon):
		return http.StatusTooManyRequests
	case errors.As(err, &normalization):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ingest.ErrInvalidConnector),
		errors.Is(err, ingest.ErrPollingUnsupported),
		errors.Is(err, domain.ErrReservedField):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// errorMessage hides internal failures from API clients.
func errorMessage(status int, err error, fallback string) string {
	if status >= http.StatusInternalServerError {
		return fallback
	}
	return err.Error()
}
