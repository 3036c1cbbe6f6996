// Package clearance interprets the authority status check for a submitted
// document. Polling is strictly user-triggered; there is deliberately no
// background scheduler so the request volume against the authority stays
// under the operator's control.
package clearance

import (
	"context"
	"fmt"

	"github.com/hypernova-labs/dgi-console/internal/models"
	"github.com/sirupsen/logrus"
)

// Backend is the slice of the backend client the poller needs.
type Backend interface {
	ClearanceStatus(ctx context.Context, kind models.Kind, id int64) (*models.ClearancePayload, error)
}

// Outcome is the interpreted result of one poll.
type Outcome struct {
	State models.ClearanceState
	// NewStatus is set when the poll resolves the document; nil while the
	// authority is still validating.
	NewStatus *models.Status
	// RejectionReason is set when the authority rejected the document.
	RejectionReason string
	// Message is an informational note for the operator.
	Message string
}

// Poller runs manual clearance checks.
type Poller struct {
	backend Backend
	logger  *logrus.Logger
}

// NewPoller builds a poller.
func NewPoller(backend Backend, logger *logrus.Logger) *Poller {
	return &Poller{backend: backend, logger: logger}
}

// Check polls the authority state of a document awaiting clearance and maps
// the tri-state answer onto the lifecycle. Any other state leaves the status
// untouched and surfaces an unrecoverable poll error; re-triggering is manual.
func (p *Poller) Check(ctx context.Context, kind models.Kind, id int64, status models.Status) (*Outcome, error) {
	if status != models.StatusAwaitingClearance {
		return nil, &models.ClearancePollError{
			Message: fmt.Sprintf("document is %s, not awaiting clearance", status),
		}
	}

	payload, err := p.backend.ClearanceStatus(ctx, kind, id)
	if err != nil {
		return nil, err
	}

	switch payload.Status {
	case models.ClearancePending:
		return &Outcome{
			State:   models.ClearancePending,
			Message: "The authority is still validating this document.",
		}, nil
	case models.ClearanceValidated:
		validated := models.StatusValidated
		p.logger.WithField("document_id", id).Info("Document validated by the authority")
		return &Outcome{State: models.ClearanceValidated, NewStatus: &validated}, nil
	case models.ClearanceRejected:
		rejected := models.StatusRejected
		reason := payload.RejectionReason()
		p.logger.WithFields(logrus.Fields{
			"document_id": id,
			"reason":      reason,
		}).Warn("Document rejected by the authority")
		return &Outcome{
			State:           models.ClearanceRejected,
			NewStatus:       &rejected,
			RejectionReason: reason,
		}, nil
	default:
		return nil, &models.ClearancePollError{
			Message: fmt.Sprintf("authority answered with unknown state %q", payload.Status),
		}
	}
}
