package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/jihoonkang/ptbook/services/scheduling-service/internal/faults"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// writeFault maps the error taxonomy onto HTTP statuses. Unknown errors are
// logged with detail and reported as a bare 500; fault messages are written
// for the caller because they describe the caller's own input.
func writeFault(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := faults.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		logger.Error("internal error", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
