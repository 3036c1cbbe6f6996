package models

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors used for flow control by the coordinator and agent client.
var (
	// ErrTransitionInFlight is returned when a second status-changing
	// operation is attempted on a document whose previous one is unresolved.
	ErrTransitionInFlight = errors.New("a status change is already in flight for this document")
	// ErrSignInFlight is returned when a signing round is requested while one
	// is pending for the same document. Requests are rejected, never queued.
	ErrSignInFlight = errors.New("a signing request is already in flight for this document")
	// ErrNotPermitted is returned when the permission guard rejects an action
	// for the current role and document status.
	ErrNotPermitted = errors.New("action not permitted for this role and status")
)

// ValidationError carries field-level errors from the backend errors map or
// from local struct validation. It never blocks other fields.
type ValidationError struct {
	Message string
	Fields  map[string][]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	parts := make([]string, 0, len(e.Fields))
	for field, issues := range e.Fields {
		parts = append(parts, field+": "+strings.Join(issues, ", "))
	}
	return e.Message + " (" + strings.Join(parts, "; ") + ")"
}

// BusinessRuleError is a backend rejection without a field map, e.g. a stale
// status or a missing document.
type BusinessRuleError struct {
	Title   string
	Details []string
}

func (e *BusinessRuleError) Error() string {
	if len(e.Details) == 0 {
		return e.Title
	}
	return e.Title + ": " + strings.Join(e.Details, "; ")
}

// NetworkError is a transport-level failure where no response was received.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network failure during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// AgentErrorKind distinguishes signing agent failures.
type AgentErrorKind string

const (
	// AgentUnavailable means the probe failed or the connection could not be
	// established, or it closed uncleanly before any response.
	AgentUnavailable AgentErrorKind = "agent_unavailable"
	// AgentTimeout means no response arrived within the signing deadline.
	AgentTimeout AgentErrorKind = "agent_timeout"
	// AgentRejected means the agent answered with an explicit failure payload.
	AgentRejected AgentErrorKind = "agent_rejected"
	// SignatureVerificationFailed means the server refused the produced
	// signature on submission.
	SignatureVerificationFailed AgentErrorKind = "signature_verification_failed"
)

// AgentError is a failure of the signing workflow. None of these are retried
// automatically; the caller must re-invoke explicitly.
type AgentError struct {
	Kind    AgentErrorKind
	Message string
	Err     error
}

func (e *AgentError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("signing agent: %s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("signing agent: %s", e.Kind)
}

func (e *AgentError) Unwrap() error { return e.Err }

// ClearancePollError is an unrecoverable clearance status-check failure. The
// document status is left unchanged and no retry is scheduled.
type ClearancePollError struct {
	Message string
	Err     error
}

func (e *ClearancePollError) Error() string {
	return "clearance poll failed: " + e.Message
}

func (e *ClearancePollError) Unwrap() error { return e.Err }

// Notification is the user-facing rendering of a surfaced error: a title and
// an optional itemized body.
type Notification struct {
	Title string
	Items []string
}

// Notify maps any error of the taxonomy onto its user-facing notification.
// Signing failures get a dedicated explanatory message per failure kind.
func Notify(err error) Notification {
	var (
		vErr *ValidationError
		bErr *BusinessRuleError
		nErr *NetworkError
		aErr *AgentError
		cErr *ClearancePollError
	)
	switch {
	case errors.As(err, &vErr):
		items := make([]string, 0, len(vErr.Fields))
		for field, issues := range vErr.Fields {
			items = append(items, field+": "+strings.Join(issues, ", "))
		}
		return Notification{Title: vErr.Message, Items: items}
	case errors.As(err, &bErr):
		return Notification{Title: bErr.Title, Items: bErr.Details}
	case errors.As(err, &aErr):
		return Notification{Title: agentNotificationTitle(aErr.Kind), Items: itemize(aErr.Message)}
	case errors.As(err, &cErr):
		return Notification{Title: "Clearance check failed", Items: itemize(cErr.Message)}
	case errors.As(err, &nErr):
		return Notification{Title: "Connection to the server failed", Items: itemize(nErr.Err.Error())}
	case errors.Is(err, ErrTransitionInFlight), errors.Is(err, ErrSignInFlight):
		return Notification{Title: "Operation already in progress"}
	case errors.Is(err, ErrNotPermitted):
		return Notification{Title: "You are not allowed to perform this action"}
	default:
		return Notification{Title: "Unexpected error", Items: itemize(err.Error())}
	}
}

func agentNotificationTitle(kind AgentErrorKind) string {
	switch kind {
	case AgentUnavailable:
		return "Signing agent is not reachable. Check that it is running on this machine."
	case AgentTimeout:
		return "Signing agent did not answer in time."
	case AgentRejected:
		return "Signing agent refused to sign the document."
	case SignatureVerificationFailed:
		return "The server rejected the produced signature."
	default:
		return "Signing failed."
	}
}

func itemize(msg string) []string {
	if msg == "" {
		return nil
	}
	return []string{msg}
}
