// Package models defines API response envelopes for Wednesday.
package models

// WebhookResponse is the structured 200 body returned for every webhook call.
// The gateway only needs acknowledgement, so failures are reported in Status
// rather than as HTTP errors.
type WebhookResponse struct {
	Status           string `json:"status"`
	Reason           string `json:"reason,omitempty"`
	Reply            string `json:"reply,omitempty"`
	ProcessingTimeMs int64  `json:"processing_time_ms"`
}

// APIResponse is the standard envelope for the management endpoints.
type APIResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// Error builds an error APIResponse with the given message.
func Error(message string) APIResponse {
	return APIResponse{Status: "error", Message: message}
}

// Success builds a success APIResponse with optional data.
func Success(data any) APIResponse {
	return APIResponse{Status: "success", Data: data}
}

// SuccessWithMessage builds a success APIResponse with a message and optional data.
func SuccessWithMessage(message string, data any) APIResponse {
	return APIResponse{Status: "success", Message: message, Data: data}
}
