// Package json reads request bodies and writes the dashboard's uniform
// response envelope. Every response is either {ok:true, data:...} or
// {ok:false, error:{message}}; callers of the dashboard API check the ok
// flag before touching data.
package json

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// Data is never omitted on success: an empty listing still serializes as
// data:[] so browser callers can index into it unconditionally.
type Envelope struct {
	OK    bool       `json:"ok"`
	Data  any        `json:"data"`
	Error *ErrorBody `json:"error,omitempty"`
}

type ErrorBody struct {
	Message string `json:"message"`
}

const maxBodyBytes = 1 << 20

// Read decodes a JSON request body into dst, rejecting unknown fields and
// oversized bodies.
func Read(r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		switch {
		case errors.Is(err, io.EOF):
			return fmt.Errorf("request body must not be empty")
		default:
			return fmt.Errorf("invalid request body: %w", err)
		}
	}
	return nil
}

// Write sends a success envelope.
func Write(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Envelope{OK: true, Data: data})
}

// WriteError sends a failure envelope with a single normalized message.
func WriteError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Envelope{OK: false, Error: &ErrorBody{Message: msg}})
}

func WriteValidationError(w http.ResponseWriter, err error) {
	WriteError(w, http.StatusBadRequest, err.Error())
}

func WriteInternalError(w http.ResponseWriter, err error) {
	WriteError(w, http.StatusInternalServerError, err.Error())
}
