// Package guard maps (role, status) pairs onto the actions the operator may
// trigger. Every predicate is pure; the coordinator re-derives these checks
// before any mutating call even when the caller already filtered its actions,
// so a stale screen can never push a forbidden transition to the server.
package guard

import (
	"github.com/hypernova-labs/dgi-console/internal/models"
)

// transitions is the authoritative role-gated transition table. Statuses not
// listed for a role have no user-driven transitions: AWAITING_CLEARANCE is
// exited only by a clearance poll outcome and VALIDATED is terminal.
var transitions = map[models.Role]map[models.Status][]models.Status{
	models.RoleClerk: {},
	models.RoleManager: {
		models.StatusDraft: {models.StatusReady},
		models.StatusReady: {models.StatusDraft},
	},
	models.RoleAdmin: {
		models.StatusDraft:    {models.StatusReady},
		models.StatusReady:    {models.StatusDraft, models.StatusAwaitingClearance},
		models.StatusRejected: {models.StatusDraft},
	},
}

// ValidStatusTransitions returns the statuses the role may move a document to
// from the given status.
func ValidStatusTransitions(role models.Role, status models.Status) []models.Status {
	targets := transitions[role][status]
	out := make([]models.Status, len(targets))
	copy(out, targets)
	return out
}

// CanChangeStatus reports whether the role has any transition from status.
func CanChangeStatus(role models.Role, status models.Status) bool {
	return len(transitions[role][status]) > 0
}

// CanTransition reports whether the role may move a document from one status
// to another.
func CanTransition(role models.Role, from, to models.Status) bool {
	for _, target := range transitions[role][from] {
		if target == to {
			return true
		}
	}
	return false
}

// CanEdit reports whether document fields may be edited. Only drafts are
// editable, by admins and managers.
func CanEdit(role models.Role, status models.Status) bool {
	if status != models.StatusDraft {
		return false
	}
	return role == models.RoleAdmin || role == models.RoleManager
}

// CanCreate reports whether the role may create documents of the given kind.
func CanCreate(role models.Role, kind models.Kind) bool {
	if kind == models.KindCreditNote {
		return role == models.RoleAdmin
	}
	return role == models.RoleAdmin || role == models.RoleManager
}

// CanDelete reports whether the document may be deleted. Only drafts may be
// deleted; credit notes only by admins.
func CanDelete(role models.Role, status models.Status, kind models.Kind) bool {
	if status != models.StatusDraft {
		return false
	}
	if kind == models.KindCreditNote {
		return role == models.RoleAdmin
	}
	return role == models.RoleAdmin || role == models.RoleManager
}

// CanSubmit reports whether the document may be submitted for clearance.
// Submission requires the admin role and a READY document.
func CanSubmit(role models.Role, status models.Status) bool {
	return role == models.RoleAdmin && status == models.StatusReady
}

// CanCheckClearance reports whether a clearance poll may be triggered. The
// poll is a read against the authority, so it is not role-gated, but it only
// makes sense while the document awaits clearance.
func CanCheckClearance(role models.Role, status models.Status) bool {
	return status == models.StatusAwaitingClearance
}

// CanViewRejectionReason reports whether the rejection reason may be shown.
// Any role may see it once the authority has rejected the document.
func CanViewRejectionReason(role models.Role, status models.Status) bool {
	return status == models.StatusRejected
}
