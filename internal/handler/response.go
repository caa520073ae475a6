package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/polite-conquest/pkg/conquest"
)

// maxBodyBytes bounds request bodies. The largest legitimate body is a
// decision batch, a few hundred bytes per decision.
const maxBodyBytes = 64 << 10

var errTrailingData = errors.New("unexpected data after JSON body")

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Error encoding response")
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeRejection writes err along with the engine's machine-readable
// rejection code so clients can react without parsing the message.
func writeRejection(w http.ResponseWriter, status int, err error, verr *conquest.ValidationError) {
	writeJSON(w, status, map[string]string{
		"error":    err.Error(),
		"code":     string(verr.Code),
		"decision": verr.Decision,
	})
}

// decodeJSON reads a single JSON value from a bounded request body.
func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errTrailingData
	}
	return nil
}
