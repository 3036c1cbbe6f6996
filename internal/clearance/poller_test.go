package clearance

import (
	"context"
	"testing"

	"github.com/hypernova-labs/dgi-console/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type stubBackend struct {
	payload *models.ClearancePayload
	err     error
	calls   int
}

func (s *stubBackend) ClearanceStatus(ctx context.Context, kind models.Kind, id int64) (*models.ClearancePayload, error) {
	s.calls++
	return s.payload, s.err
}

func newTestPoller(be Backend) *Poller {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewPoller(be, logger)
}

func TestCheckPendingLeavesStatusOpen(t *testing.T) {
	be := &stubBackend{payload: &models.ClearancePayload{Status: models.ClearancePending}}
	poller := newTestPoller(be)

	outcome, err := poller.Check(context.Background(), models.KindInvoice, 1, models.StatusAwaitingClearance)
	require.NoError(t, err)
	require.Equal(t, models.ClearancePending, outcome.State)
	require.Nil(t, outcome.NewStatus)
	require.NotEmpty(t, outcome.Message)
}

func TestCheckValidated(t *testing.T) {
	be := &stubBackend{payload: &models.ClearancePayload{Status: models.ClearanceValidated}}
	poller := newTestPoller(be)

	outcome, err := poller.Check(context.Background(), models.KindInvoice, 1, models.StatusAwaitingClearance)
	require.NoError(t, err)
	require.Equal(t, models.ClearanceValidated, outcome.State)
	require.NotNil(t, outcome.NewStatus)
	require.Equal(t, models.StatusValidated, *outcome.NewStatus)
}

func TestCheckRejectedCarriesJoinedReason(t *testing.T) {
	be := &stubBackend{payload: &models.ClearancePayload{
		Status: models.ClearanceRejected,
		Errors: []models.ClearanceError{
			{ErrorCode: "E1", ErrorMessage: "invalid ICE"},
		},
	}}
	poller := newTestPoller(be)

	outcome, err := poller.Check(context.Background(), models.KindInvoice, 1, models.StatusAwaitingClearance)
	require.NoError(t, err)
	require.Equal(t, models.ClearanceRejected, outcome.State)
	require.Equal(t, models.StatusRejected, *outcome.NewStatus)
	require.Equal(t, "invalid ICE", outcome.RejectionReason)
}

func TestCheckRejectedWithoutReasonFallsBack(t *testing.T) {
	be := &stubBackend{payload: &models.ClearancePayload{Status: models.ClearanceRejected}}
	poller := newTestPoller(be)

	outcome, err := poller.Check(context.Background(), models.KindInvoice, 1, models.StatusAwaitingClearance)
	require.NoError(t, err)
	require.Equal(t, "no reason provided", outcome.RejectionReason)
}

func TestCheckUnknownStateIsPollError(t *testing.T) {
	be := &stubBackend{payload: &models.ClearancePayload{Status: "Exploding"}}
	poller := newTestPoller(be)

	_, err := poller.Check(context.Background(), models.KindInvoice, 1, models.StatusAwaitingClearance)

	var pErr *models.ClearancePollError
	require.ErrorAs(t, err, &pErr)
}

func TestCheckRefusesWrongStatusWithoutCallingBackend(t *testing.T) {
	be := &stubBackend{}
	poller := newTestPoller(be)

	_, err := poller.Check(context.Background(), models.KindInvoice, 1, models.StatusDraft)

	var pErr *models.ClearancePollError
	require.ErrorAs(t, err, &pErr)
	require.Zero(t, be.calls)
}

func TestCheckPropagatesBackendError(t *testing.T) {
	be := &stubBackend{err: &models.NetworkError{Op: "clearance-status", Err: context.DeadlineExceeded}}
	poller := newTestPoller(be)

	_, err := poller.Check(context.Background(), models.KindInvoice, 1, models.StatusAwaitingClearance)

	var nErr *models.NetworkError
	require.ErrorAs(t, err, &nErr)
}
