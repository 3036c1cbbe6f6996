package models

import (
	"encoding/json"
	"math"
	"strings"
)

// Envelope is the uniform response wrapper used by every backend endpoint.
// Errors may arrive as a flat string array or as a field->messages map; the
// shape is inspected exactly once here and never downstream.
type Envelope struct {
	Succeeded bool            `json:"succeeded"`
	Message   string          `json:"message,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Errors    json.RawMessage `json:"errors,omitempty"`
}

// DecodeEnvelope parses a backend response body. A non-2xx status or
// succeeded:false is always an error regardless of HTTP status. On success it
// returns the raw data payload for the caller to decode.
func DecodeEnvelope(httpStatus int, body []byte) (json.RawMessage, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &BusinessRuleError{
			Title:   "Unexpected response from the server",
			Details: []string{err.Error()},
		}
	}
	if env.Succeeded && httpStatus >= 200 && httpStatus < 300 {
		return env.Data, nil
	}
	return nil, classifyEnvelopeErrors(&env)
}

// classifyEnvelopeErrors converts the raw errors payload into the typed
// taxonomy: a field map becomes a ValidationError, anything else a
// BusinessRuleError.
func classifyEnvelopeErrors(env *Envelope) error {
	title := env.Message
	if title == "" {
		title = "The server rejected the request"
	}
	if len(env.Errors) > 0 {
		var fields map[string][]string
		if err := json.Unmarshal(env.Errors, &fields); err == nil && len(fields) > 0 {
			return &ValidationError{Message: title, Fields: fields}
		}
		var list []string
		if err := json.Unmarshal(env.Errors, &list); err == nil {
			return &BusinessRuleError{Title: title, Details: list}
		}
		// Last resort: a bare string.
		var single string
		if err := json.Unmarshal(env.Errors, &single); err == nil && single != "" {
			return &BusinessRuleError{Title: title, Details: []string{single}}
		}
	}
	return &BusinessRuleError{Title: title}
}

// ClearanceState is the tri-state answer of the authority status check.
type ClearanceState string

const (
	ClearancePending   ClearanceState = "PendingValidation"
	ClearanceValidated ClearanceState = "Validated"
	ClearanceRejected  ClearanceState = "Rejected"
)

// ClearanceError is one structured error item returned by the authority.
type ClearanceError struct {
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

// ClearancePayload is the body of the clearance-status endpoint.
type ClearancePayload struct {
	Status ClearanceState   `json:"status"`
	Errors []ClearanceError `json:"errors,omitempty"`
}

// RejectionReason joins the authority error messages for modal display,
// falling back to a generic string when the authority returned nothing.
func (p ClearancePayload) RejectionReason() string {
	msgs := make([]string, 0, len(p.Errors))
	for _, e := range p.Errors {
		if e.ErrorMessage != "" {
			msgs = append(msgs, e.ErrorMessage)
		}
	}
	if len(msgs) == 0 {
		return "no reason provided"
	}
	return strings.Join(msgs, "; ")
}

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalItems int `json:"total_items"`
	TotalPages int `json:"total_pages"`
}

// NewPagination computes pagination metadata.
func NewPagination(page, pageSize, totalItems int) Pagination {
	if pageSize <= 0 {
		pageSize = 20
	}
	if page <= 0 {
		page = 1
	}
	totalPages := int(math.Ceil(float64(totalItems) / float64(pageSize)))
	return Pagination{Page: page, PageSize: pageSize, TotalItems: totalItems, TotalPages: totalPages}
}
