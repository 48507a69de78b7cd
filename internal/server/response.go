package server

import (
	"encoding/json"
	"net/http"
)

// DataResponse wraps a successful response body
type DataResponse struct {
	Data interface{} `json:"data"`
}

// ErrorResponse is the error body for the operational API
type ErrorResponse struct {
	Status int    `json:"status"`
	Error  string `json:"error"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// WriteData writes a successful data response
func WriteData(w http.ResponseWriter, status int, data interface{}) {
	WriteJSON(w, status, DataResponse{Data: data})
}

// WriteError writes an error response
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorResponse{Status: status, Error: message})
}
