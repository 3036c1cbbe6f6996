package guard

import (
	"testing"

	"github.com/hypernova-labs/dgi-console/internal/models"
	"github.com/stretchr/testify/require"
)

var allStatuses = []models.Status{
	models.StatusDraft,
	models.StatusReady,
	models.StatusAwaitingClearance,
	models.StatusValidated,
	models.StatusRejected,
}

func TestClerkHasNoTransitions(t *testing.T) {
	for _, from := range allStatuses {
		require.False(t, CanChangeStatus(models.RoleClerk, from), "clerk should not move from %s", from)
		for _, to := range allStatuses {
			require.False(t, CanTransition(models.RoleClerk, from, to))
		}
	}
}

func TestManagerTransitions(t *testing.T) {
	cases := []struct {
		from, to models.Status
		allowed  bool
	}{
		{models.StatusDraft, models.StatusReady, true},
		{models.StatusReady, models.StatusDraft, true},
		{models.StatusReady, models.StatusAwaitingClearance, false},
		{models.StatusRejected, models.StatusDraft, false},
		{models.StatusAwaitingClearance, models.StatusValidated, false},
		{models.StatusValidated, models.StatusDraft, false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.allowed, CanTransition(models.RoleManager, tc.from, tc.to),
			"manager %s -> %s", tc.from, tc.to)
	}
}

func TestAdminTransitions(t *testing.T) {
	cases := []struct {
		from, to models.Status
		allowed  bool
	}{
		{models.StatusDraft, models.StatusReady, true},
		{models.StatusReady, models.StatusDraft, true},
		{models.StatusReady, models.StatusAwaitingClearance, true},
		{models.StatusRejected, models.StatusDraft, true},
		{models.StatusAwaitingClearance, models.StatusValidated, false},
		{models.StatusAwaitingClearance, models.StatusRejected, false},
		{models.StatusValidated, models.StatusDraft, false},
		{models.StatusDraft, models.StatusAwaitingClearance, false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.allowed, CanTransition(models.RoleAdmin, tc.from, tc.to),
			"admin %s -> %s", tc.from, tc.to)
	}
}

func TestValidStatusTransitionsReturnsCopy(t *testing.T) {
	targets := ValidStatusTransitions(models.RoleAdmin, models.StatusReady)
	require.ElementsMatch(t,
		[]models.Status{models.StatusDraft, models.StatusAwaitingClearance}, targets)

	// Mutating the returned slice must not corrupt the table.
	targets[0] = models.StatusValidated
	require.ElementsMatch(t,
		[]models.Status{models.StatusDraft, models.StatusAwaitingClearance},
		ValidStatusTransitions(models.RoleAdmin, models.StatusReady))
}

func TestCanEdit(t *testing.T) {
	require.True(t, CanEdit(models.RoleAdmin, models.StatusDraft))
	require.True(t, CanEdit(models.RoleManager, models.StatusDraft))
	require.False(t, CanEdit(models.RoleClerk, models.StatusDraft))

	for _, status := range allStatuses[1:] {
		require.False(t, CanEdit(models.RoleAdmin, status), "no edits in %s", status)
	}
}

func TestCanCreate(t *testing.T) {
	require.True(t, CanCreate(models.RoleAdmin, models.KindInvoice))
	require.True(t, CanCreate(models.RoleManager, models.KindInvoice))
	require.False(t, CanCreate(models.RoleClerk, models.KindInvoice))

	require.True(t, CanCreate(models.RoleAdmin, models.KindCreditNote))
	require.False(t, CanCreate(models.RoleManager, models.KindCreditNote))
	require.False(t, CanCreate(models.RoleClerk, models.KindCreditNote))
}

func TestCanDelete(t *testing.T) {
	require.True(t, CanDelete(models.RoleAdmin, models.StatusDraft, models.KindInvoice))
	require.True(t, CanDelete(models.RoleManager, models.StatusDraft, models.KindInvoice))
	require.False(t, CanDelete(models.RoleClerk, models.StatusDraft, models.KindInvoice))

	require.True(t, CanDelete(models.RoleAdmin, models.StatusDraft, models.KindCreditNote))
	require.False(t, CanDelete(models.RoleManager, models.StatusDraft, models.KindCreditNote))

	for _, status := range allStatuses[1:] {
		require.False(t, CanDelete(models.RoleAdmin, status, models.KindInvoice))
	}
}

func TestCanSubmit(t *testing.T) {
	require.True(t, CanSubmit(models.RoleAdmin, models.StatusReady))
	require.False(t, CanSubmit(models.RoleManager, models.StatusReady))
	require.False(t, CanSubmit(models.RoleClerk, models.StatusReady))
	require.False(t, CanSubmit(models.RoleAdmin, models.StatusDraft))
	require.False(t, CanSubmit(models.RoleAdmin, models.StatusAwaitingClearance))
}

func TestCanCheckClearance(t *testing.T) {
	for _, role := range []models.Role{models.RoleAdmin, models.RoleManager, models.RoleClerk} {
		require.True(t, CanCheckClearance(role, models.StatusAwaitingClearance))
		require.False(t, CanCheckClearance(role, models.StatusReady))
	}
}

func TestCanViewRejectionReason(t *testing.T) {
	require.True(t, CanViewRejectionReason(models.RoleClerk, models.StatusRejected))
	require.False(t, CanViewRejectionReason(models.RoleAdmin, models.StatusDraft))
}
