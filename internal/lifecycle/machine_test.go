package lifecycle

import (
	"testing"

	"github.com/hypernova-labs/dgi-console/internal/models"
	"github.com/stretchr/testify/require"
)

func TestCallForMapsEdgesToCalls(t *testing.T) {
	cases := []struct {
		from, to models.Status
		call     Call
	}{
		{models.StatusDraft, models.StatusReady, CallSetReady},
		{models.StatusReady, models.StatusDraft, CallSetDraft},
		{models.StatusReady, models.StatusAwaitingClearance, CallSubmit},
		{models.StatusRejected, models.StatusDraft, CallSetDraft},
		{models.StatusAwaitingClearance, models.StatusValidated, CallClearance},
		{models.StatusAwaitingClearance, models.StatusRejected, CallClearance},
	}
	for _, tc := range cases {
		call, err := CallFor(tc.from, tc.to)
		require.NoError(t, err, "%s -> %s", tc.from, tc.to)
		require.Equal(t, tc.call, call)
	}
}

func TestCallForRejectsUnknownEdges(t *testing.T) {
	_, err := CallFor(models.StatusDraft, models.StatusAwaitingClearance)
	require.Error(t, err)

	_, err = CallFor(models.StatusValidated, models.StatusDraft)
	require.Error(t, err)
}

func TestIsTerminal(t *testing.T) {
	require.True(t, IsTerminal(models.StatusValidated))
	require.False(t, IsTerminal(models.StatusDraft))
	require.False(t, IsTerminal(models.StatusReady))
	require.False(t, IsTerminal(models.StatusAwaitingClearance))
	require.False(t, IsTerminal(models.StatusRejected))
}

func TestIsSystemDriven(t *testing.T) {
	require.True(t, IsSystemDriven(models.StatusAwaitingClearance))
	require.False(t, IsSystemDriven(models.StatusReady))
}

func TestRequiresSignature(t *testing.T) {
	require.True(t, RequiresSignature(models.StatusDraft, models.StatusReady))
	require.False(t, RequiresSignature(models.StatusReady, models.StatusDraft))
	require.False(t, RequiresSignature(models.StatusReady, models.StatusAwaitingClearance))
}

func TestApply(t *testing.T) {
	status, err := Apply(models.StatusDraft, models.StatusReady)
	require.NoError(t, err)
	require.Equal(t, models.StatusReady, status)

	status, err = Apply(models.StatusDraft, models.StatusValidated)
	require.Error(t, err)
	require.Equal(t, models.StatusDraft, status)
}
