package utils

import (
	"encoding/json"
	"net/http"
	"time"
)

type APIResponse struct {
	Success   bool                `json:"success"`
	Message   string              `json:"message"`
	Data      interface{}         `json:"data,omitempty"`
	Error     string              `json:"error,omitempty"`
	Fields    map[string][]string `json:"fields,omitempty"`
	Timestamp time.Time           `json:"timestamp"`
}

func SuccessResponse(message string, data interface{}) APIResponse {
	return APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}

func ErrorResponse(message, code string) APIResponse {
	return APIResponse{
		Success:   false,
		Message:   message,
		Error:     code,
		Timestamp: time.Now().UTC(),
	}
}

// FieldErrorResponse is an ErrorResponse carrying per-field messages.
func FieldErrorResponse(message, code string, fields map[string][]string) APIResponse {
	resp := ErrorResponse(message, code)
	resp.Fields = fields
	return resp
}

func WriteJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
