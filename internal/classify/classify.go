// Package classify decides what a raw assistant-service response means.
//
// Classification order is fixed: HTTP success/failure first, JSON
// parseability second, field presence third. A failure status with a
// JSON body must take the structured-error path rather than be shown as
// generic text, and a success status with an unparseable body is a
// local malformed-payload fault, never silently dropped.
package classify

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// previewLimit caps how much of an unusable body is surfaced to the user.
const previewLimit = 100

// Kind identifies one of the four classification outcomes.
type Kind int

const (
	// KindOK is a success status with a usable payload.
	KindOK Kind = iota
	// KindStructuredError is a failure status with a parseable JSON body.
	KindStructuredError
	// KindUnstructuredError is a failure status with a non-JSON body.
	KindUnstructuredError
	// KindMalformed is a success status with an empty, unparseable, or
	// response-less body.
	KindMalformed
)

// Payload is the usable content of a successful chat response.
type Payload struct {
	Response    string `json:"response"`
	OrderFound  *bool  `json:"order_found,omitempty"`
	OrderID     string `json:"order_id,omitempty"`
	OrderStatus string `json:"order_status,omitempty"`
	NeedsPhone  bool   `json:"needs_phone,omitempty"`
}

// errorBody is the structured error shape the service may return.
type errorBody struct {
	Error      string `json:"error"`
	Suggestion string `json:"suggestion"`
	ErrorType  string `json:"error_type"`
}

// Result is the outcome of classifying one response.
type Result struct {
	Kind Kind

	// Payload is set when Kind is KindOK.
	Payload *Payload

	// Message, Suggestion and ErrorType are set for the two error kinds.
	// Suggestion and ErrorType are only present when the service sent
	// them in a structured body.
	Message    string
	Suggestion string
	ErrorType  string

	// RawPreview is set when Kind is KindMalformed: the first 100
	// characters of the body, or a note for an empty response.
	RawPreview string
}

// Classify maps a raw status and body text to one of the four outcomes.
func Classify(status int, body string) Result {
	if status >= 200 && status < 300 {
		return classifySuccess(body)
	}
	return classifyFailure(status, body)
}

func classifySuccess(body string) Result {
	if strings.TrimSpace(body) == "" {
		return Result{Kind: KindMalformed, RawPreview: "empty response from server"}
	}

	var payload Payload
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return Result{Kind: KindMalformed, RawPreview: preview(body)}
	}
	if payload.Response == "" {
		return Result{Kind: KindMalformed, RawPreview: preview(body)}
	}

	return Result{Kind: KindOK, Payload: &payload}
}

func classifyFailure(status int, body string) Result {
	fallback := statusFallback(status)

	var parsed errorBody
	if err := json.Unmarshal([]byte(body), &parsed); err == nil {
		message := parsed.Error
		if message == "" {
			message = fallback
		}
		return Result{
			Kind:       KindStructuredError,
			Message:    message,
			Suggestion: parsed.Suggestion,
			ErrorType:  parsed.ErrorType,
		}
	}

	message := body
	if strings.TrimSpace(message) == "" {
		message = fallback
	}
	return Result{Kind: KindUnstructuredError, Message: message}
}

func statusFallback(status int) string {
	text := http.StatusText(status)
	if text == "" {
		text = "Unknown Status"
	}
	return fmt.Sprintf("HTTP %d: %s", status, text)
}

func preview(body string) string {
	if len(body) > previewLimit {
		return body[:previewLimit]
	}
	return body
}
