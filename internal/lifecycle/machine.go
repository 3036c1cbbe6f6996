// Package lifecycle validates status transitions of fiscal documents
// independent of roles and transport. Each edge corresponds to exactly one
// backend call; local state is updated only after that call succeeds, except
// for the coordinator's optimistic-apply contract which may flip the status
// provisionally and roll it back on failure.
package lifecycle

import (
	"fmt"

	"github.com/hypernova-labs/dgi-console/internal/models"
)

// Call names the backend call that performs a transition.
type Call string

const (
	CallSetReady  Call = "set-ready"
	CallSubmit    Call = "submit"
	CallSetDraft  Call = "set-draft"
	CallClearance Call = "clearance-status"
)

type edge struct {
	from, to models.Status
}

// edges lists every legal transition with its backend call. The clearance
// edges are system-driven: they are applied only when a poll reconciles the
// document, never by direct user action.
var edges = map[edge]Call{
	{models.StatusDraft, models.StatusReady}:                 CallSetReady,
	{models.StatusReady, models.StatusDraft}:                 CallSetDraft,
	{models.StatusReady, models.StatusAwaitingClearance}:     CallSubmit,
	{models.StatusRejected, models.StatusDraft}:              CallSetDraft,
	{models.StatusAwaitingClearance, models.StatusValidated}: CallClearance,
	{models.StatusAwaitingClearance, models.StatusRejected}:  CallClearance,
}

// CallFor returns the backend call that performs the transition, or an error
// when the edge does not exist in the lifecycle.
func CallFor(from, to models.Status) (Call, error) {
	call, ok := edges[edge{from, to}]
	if !ok {
		return "", fmt.Errorf("no transition from %s to %s", from, to)
	}
	return call, nil
}

// IsValid reports whether the transition exists in the lifecycle.
func IsValid(from, to models.Status) bool {
	_, ok := edges[edge{from, to}]
	return ok
}

// IsTerminal reports whether no transition leaves the status. VALIDATED is
// the only terminal status.
func IsTerminal(status models.Status) bool {
	for e := range edges {
		if e.from == status {
			return false
		}
	}
	return true
}

// IsSystemDriven reports whether the status is exited only by an external
// clearance outcome rather than a user action.
func IsSystemDriven(status models.Status) bool {
	return status == models.StatusAwaitingClearance
}

// RequiresSignature reports whether the transition must be preceded by a
// completed signing round with the local agent.
func RequiresSignature(from, to models.Status) bool {
	return from == models.StatusDraft && to == models.StatusReady
}

// Apply validates the transition and returns the new status. It does not
// mutate anything; callers own their document copies.
func Apply(current, target models.Status) (models.Status, error) {
	if !IsValid(current, target) {
		return current, fmt.Errorf("no transition from %s to %s", current, target)
	}
	return target, nil
}
