package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	commonerrors "teamhub-notifications/internal/common/errors"
	"teamhub-notifications/internal/notifications"
	"teamhub-notifications/internal/search"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	stdErr := toStandardError(err)
	writeJSON(w, commonerrors.HTTPStatus(stdErr.Code), errorResponse{
		Error:   string(stdErr.Code),
		Message: stdErr.Message,
	})
}

func toStandardError(err error) *commonerrors.StandardError {
	if errors.Is(err, search.ErrSearchFailed) {
		return commonerrors.NewSearchIndexFailedError(err)
	}
	return notifications.AsStandardError(err)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: request body is empty", notifications.ErrInvalidInput)
		}
		return fmt.Errorf("%w: malformed JSON: %v", notifications.ErrInvalidInput, err)
	}
	return nil
}
