package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/ariefcatur/tableorder/internal/apperr"
)

type errorBody struct {
	Error problem `json:"error"`
}

type problem struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, code int, kind, msg string) {
	writeJSON(w, code, errorBody{Error: problem{Kind: kind, Message: msg}})
}

// writeError maps a service error to its status code. Internal causes are
// never written to the client.
func writeError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	code := http.StatusInternalServerError
	switch kind {
	case apperr.KindBadRequest:
		code = http.StatusBadRequest
	case apperr.KindNotFound:
		code = http.StatusNotFound
	}
	writeProblem(w, code, string(kind), apperr.Message(err))
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperr.BadRequest("invalid json: %v", err)
	}
	return nil
}
