package router

import (
	"encoding/json"
	"net/http"

	"github.com/melosso/portway/internal/gwerr"
)

// QueryResult is the standard SQL/Proxy GET response envelope from §6.
type QueryResult struct {
	Count    int    `json:"Count"`
	Value    []any  `json:"Value"`
	NextLink string `json:"NextLink,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError renders err through the gateway's error taxonomy, never
// leaking SQL text, connection strings, or stack traces to the client.
func writeError(w http.ResponseWriter, err error) {
	status, env := gwerr.ToEnvelope(err)
	writeJSON(w, status, env)
}
