package server

import (
	"encoding/json"
	"net/http"

	"github.com/desertthunder/sentisounds/internal/shared"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
	Kind   string `json:"kind"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError reports err with its kind. A zero status derives the code from the error.
func writeError(w http.ResponseWriter, err error, status int) {
	if status == 0 {
		status = shared.HTTPStatus(err)
	}
	writeJSON(w, status, ErrorResponse{
		Status: statusError,
		Error:  err.Error(),
		Kind:   shared.Kind(err),
	})
}
