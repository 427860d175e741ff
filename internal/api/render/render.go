// Package render writes the JSON envelopes shared by every API handler:
// {"data": ...} on success and {"error": {"code","message"}} on failure.
package render

import (
	"encoding/json"
	"log"
	"net/http"
)

// MaxBodyBytes caps request bodies read by Decode.
const MaxBodyBytes = 1 << 16

// Response is a standard API response wrapper.
type Response struct {
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// Raw writes v as JSON with the given status code, without an envelope.
func Raw(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("json encode error: %v", err)
	}
}

// JSON writes data in the success envelope.
func JSON(w http.ResponseWriter, status int, data any) {
	Raw(w, status, Response{Data: data})
}

// Fail writes err in the error envelope with err.Status.
func Fail(w http.ResponseWriter, err *Error) {
	Raw(w, err.Status, Response{Error: err})
}

// Internal logs cause under op and writes a detail-free 500.
func Internal(w http.ResponseWriter, op string, cause error) {
	log.Printf("%s: %v", op, cause)
	Fail(w, ErrInternalServer)
}

// OK writes a 200 OK response.
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, data)
}

// Created writes a 201 Created response.
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, data)
}

// NoContent writes a 204 No Content response.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Decode reads a JSON body into v. On failure it writes a 400 and
// returns false.
func Decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes)).Decode(v); err != nil {
		Fail(w, ErrInvalidBody)
		return false
	}
	return true
}
