package httpkit

import (
	"encoding/json"
	"net/http"

	"kino/internal/pkg/errors"
)

type ErrorEnvelope struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details,omitempty"`
	} `json:"error"`
}

func DecodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func WriteErr(w http.ResponseWriter, status int, code, msg string, details map[string]any) {
	var env ErrorEnvelope
	env.Error.Code = code
	env.Error.Message = msg
	env.Error.Details = details

	WriteJSON(w, status, env)
}

// WriteError maps a coded error to its envelope and status. Unrecognized
// errors become opaque 500s so internals never leak to clients.
func WriteError(w http.ResponseWriter, err error) {
	status := errors.GetHTTPStatus(err)
	code := errors.GetCode(err)

	msg := "internal server error"
	var kerr *errors.Error
	if errors.As(err, &kerr) && status < 500 {
		msg = kerr.Message
	}

	WriteErr(w, status, string(code), msg, errors.GetFields(err))
}
