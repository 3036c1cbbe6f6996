package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hypernova-labs/dgi-console/internal/agent"
	"github.com/hypernova-labs/dgi-console/internal/backend"
	"github.com/hypernova-labs/dgi-console/internal/clearance"
	"github.com/hypernova-labs/dgi-console/internal/guard"
	"github.com/hypernova-labs/dgi-console/internal/lifecycle"
	"github.com/hypernova-labs/dgi-console/internal/models"
	"github.com/sirupsen/logrus"
)

// Refresh rebuilds the list cache wholesale from the backend and remembers
// the applied filter, sort and page for later server-driven refreshes.
func (s *Session) Refresh(ctx context.Context, q backend.ListQuery) error {
	if q.PageSize <= 0 {
		q.PageSize = 20
	}
	if q.Page <= 0 {
		q.Page = 1
	}
	result, err := s.backend.List(ctx, s.kind, q)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.list = ListView{Items: result.Items, Pagination: result.Pagination}
	s.query = q
	return nil
}

// Open loads a document into the detail cache.
func (s *Session) Open(ctx context.Context, id int64) (*models.Document, error) {
	doc, err := s.backend.Get(ctx, s.kind, id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detail = doc
	return doc.Clone(), nil
}

// Create inserts a placeholder document into both caches, issues the backend
// call and replaces the placeholder with the authoritative server copy, or
// rolls both caches back on failure.
func (s *Session) Create(ctx context.Context, doc *models.Document) (*models.Document, error) {
	if !guard.CanCreate(s.role, s.kind) {
		return nil, models.ErrNotPermitted
	}
	doc = doc.Clone()
	doc.Kind = s.kind
	doc.Status = models.StatusDraft
	doc.ApplyTotals()
	if err := doc.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	snap := s.takeSnapshot()

	pending := doc.Clone()
	pending.Ref = models.NewPendingRef()
	pending.Number = pending.Ref.PlaceholderNumber()
	pendingKey := pending.Ref.Key()

	s.list.Items = append([]models.Summary{pending.Summarize()}, s.list.Items...)
	if len(s.list.Items) > s.list.Pagination.PageSize && s.list.Pagination.PageSize > 0 {
		s.list.Items = s.list.Items[:s.list.Pagination.PageSize]
	}
	s.list.Pagination = models.NewPagination(
		s.list.Pagination.Page, s.list.Pagination.PageSize, s.list.Pagination.TotalItems+1)
	s.detail = pending.Clone()
	s.mu.Unlock()

	server, err := s.backend.Create(ctx, doc)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.restore(snap)
		return nil, err
	}
	s.applyServer(pendingKey, server)
	s.logger.WithFields(logrus.Fields{
		"document_id": server.Ref.ID,
		"number":      server.Number,
		"total":       server.Total,
	}).Info("Document created")
	return server.Clone(), nil
}

// UpdateFields patches a draft's fields in both caches, issues the backend
// update and reconciles with the server copy, or rolls back on failure.
func (s *Session) UpdateFields(ctx context.Context, doc *models.Document) (*models.Document, error) {
	s.mu.Lock()
	status, known := s.statusOf(doc.Ref)
	s.mu.Unlock()
	if !known {
		return nil, &models.BusinessRuleError{Title: "document not found in this session"}
	}
	if !guard.CanEdit(s.role, status) {
		return nil, models.ErrNotPermitted
	}
	doc = doc.Clone()
	doc.ApplyTotals()
	if err := doc.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	snap := s.takeSnapshot()
	if i := s.indexOf(doc.Ref.Key()); i >= 0 {
		s.list.Items[i] = doc.Summarize()
	}
	if s.detail != nil && s.detail.Ref.Key() == doc.Ref.Key() {
		s.detail = doc.Clone()
	}
	s.mu.Unlock()

	server, err := s.backend.Update(ctx, doc)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.restore(snap)
		return nil, err
	}
	s.applyServer(doc.Ref.Key(), server)
	return server.Clone(), nil
}

// Delete removes a draft from both caches and the backend. When the deletion
// leaves the current page short while a later page still exists, the page is
// transparently re-fetched with the last applied filter and sort so the view
// never shows a visibly incomplete page.
func (s *Session) Delete(ctx context.Context, ref models.Ref) error {
	s.mu.Lock()
	status, known := s.statusOf(ref)
	s.mu.Unlock()
	if !known {
		return &models.BusinessRuleError{Title: "document not found in this session"}
	}
	if !guard.CanDelete(s.role, status, s.kind) {
		return models.ErrNotPermitted
	}

	s.mu.Lock()
	snap := s.takeSnapshot()
	if i := s.indexOf(ref.Key()); i >= 0 {
		s.list.Items = append(s.list.Items[:i], s.list.Items[i+1:]...)
	}
	page := s.list.Pagination.Page
	pageSize := s.list.Pagination.PageSize
	s.list.Pagination = models.NewPagination(page, pageSize, s.list.Pagination.TotalItems-1)
	if s.list.Pagination.TotalPages > 0 && page > s.list.Pagination.TotalPages {
		s.list.Pagination.Page = s.list.Pagination.TotalPages
	}
	if s.detail != nil && s.detail.Ref.Key() == ref.Key() {
		s.detail = nil
	}
	// A refetch is owed when the current page vanished entirely, or when it
	// came up short and a later page still exists to fill it from. A short
	// last page stays short.
	clamped := s.list.Pagination.Page != page
	needBackfill := clamped ||
		(len(s.list.Items) < pageSize && s.list.Pagination.TotalPages > s.list.Pagination.Page)
	targetPage := s.list.Pagination.Page
	lastQuery := s.query
	s.mu.Unlock()

	if err := s.backend.Delete(ctx, s.kind, ref.ID); err != nil {
		s.mu.Lock()
		s.restore(snap)
		s.mu.Unlock()
		return err
	}

	if needBackfill {
		// Server-driven refresh: reuse the last applied filter and sort, only
		// the page may have been clamped.
		q := lastQuery
		q.Page = targetPage
		if err := s.Refresh(ctx, q); err != nil {
			s.logger.WithError(err).Warn("Page backfill after delete failed")
			return err
		}
	}
	s.logger.WithField("document", ref.Key()).Info("Document deleted")
	return nil
}

// ChangeStatus performs one role-gated lifecycle transition. The status is
// flipped optimistically, the backend call named by the lifecycle edge is
// issued, and the caches are reconciled with the authoritative copy or rolled
// back. A second transition on the same document while one is unresolved is
// rejected with ErrTransitionInFlight, never interleaved.
func (s *Session) ChangeStatus(ctx context.Context, ref models.Ref, target models.Status) (*models.Document, error) {
	if err := s.acquireTransition(ref); err != nil {
		return nil, err
	}
	defer s.releaseTransition(ref)

	s.mu.Lock()
	current, known := s.statusOf(ref)
	s.mu.Unlock()
	if !known {
		return nil, &models.BusinessRuleError{Title: "document not found in this session"}
	}
	if !guard.CanTransition(s.role, current, target) {
		return nil, models.ErrNotPermitted
	}
	call, err := lifecycle.CallFor(current, target)
	if err != nil {
		return nil, &models.BusinessRuleError{Title: err.Error()}
	}
	if call == lifecycle.CallClearance {
		// Clearance edges are system-driven; see CheckClearance.
		return nil, models.ErrNotPermitted
	}

	s.mu.Lock()
	snap := s.takeSnapshot()
	s.setStatus(ref, target)
	s.mu.Unlock()

	server, err := s.dispatchTransition(ctx, ref, call)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.restore(snap)
		return nil, err
	}
	s.applyServer(ref.Key(), server)
	s.logger.WithFields(logrus.Fields{
		"document": ref.Key(),
		"from":     current,
		"to":       server.Status,
	}).Info("Status changed")
	return server.Clone(), nil
}

// dispatchTransition issues the backend call for a lifecycle edge. The
// set-ready edge first runs a full signing round with the local agent.
func (s *Session) dispatchTransition(ctx context.Context, ref models.Ref, call lifecycle.Call) (*models.Document, error) {
	switch call {
	case lifecycle.CallSetReady:
		dataToSign, err := s.backend.DataToSign(ctx, s.kind, ref.ID)
		if err != nil {
			return nil, err
		}
		signature, err := s.agent.Sign(ctx, ref, dataToSign, s.culture)
		if err != nil {
			return nil, err
		}
		server, err := s.backend.SetReady(ctx, s.kind, ref.ID, signature)
		if err != nil {
			return nil, classifySetReadyError(err)
		}
		return server, nil
	case lifecycle.CallSubmit:
		return s.backend.Submit(ctx, s.kind, ref.ID)
	case lifecycle.CallSetDraft:
		return s.backend.SetDraft(ctx, s.kind, ref.ID)
	default:
		return nil, fmt.Errorf("unsupported transition call: %s", call)
	}
}

// classifySetReadyError maps a backend rejection of the produced signature
// onto the signing taxonomy so the operator gets the dedicated message.
func classifySetReadyError(err error) error {
	var bErr *models.BusinessRuleError
	if errors.As(err, &bErr) {
		text := strings.ToLower(bErr.Error())
		if strings.Contains(text, "signature") {
			return &models.AgentError{
				Kind:    models.SignatureVerificationFailed,
				Message: bErr.Title,
				Err:     err,
			}
		}
	}
	return err
}

// CheckClearance runs one manual clearance poll and applies its outcome. A
// pending answer changes nothing; validated and rejected outcomes are
// authoritative and land directly in both caches.
func (s *Session) CheckClearance(ctx context.Context, ref models.Ref) (*clearance.Outcome, error) {
	if err := s.acquireTransition(ref); err != nil {
		return nil, err
	}
	defer s.releaseTransition(ref)

	s.mu.Lock()
	status, known := s.statusOf(ref)
	s.mu.Unlock()
	if !known {
		return nil, &models.BusinessRuleError{Title: "document not found in this session"}
	}
	if !guard.CanCheckClearance(s.role, status) {
		return nil, models.ErrNotPermitted
	}

	outcome, err := s.poller.Check(ctx, s.kind, ref.ID, status)
	if err != nil {
		return nil, err
	}
	if outcome.NewStatus == nil {
		return outcome, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.setStatus(ref, *outcome.NewStatus)
	if s.detail != nil && s.detail.Ref.Key() == ref.Key() && *outcome.NewStatus == models.StatusRejected {
		s.detail.DGIRejectionReason = outcome.RejectionReason
	}
	return outcome, nil
}

// CheckAgent probes signing agent availability for the open document. The
// cached availability reads as checking while the probe is in flight; the
// probe is bounded and abandoned when the session closes.
func (s *Session) CheckAgent(ctx context.Context) agent.Availability {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return agent.AvailabilityNotApplicable
	}
	status := models.Status("")
	if s.detail != nil {
		status = s.detail.Status
	}
	if status != models.StatusDraft {
		s.availability = agent.AvailabilityNotApplicable
		s.mu.Unlock()
		return agent.AvailabilityNotApplicable
	}
	s.availability = agent.AvailabilityChecking
	ctx, cancel := context.WithCancel(ctx)
	s.probeCancel = cancel
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.probeCancel = nil
		s.mu.Unlock()
		cancel()
	}()

	avail := s.agent.Probe(ctx, status)
	s.mu.Lock()
	s.availability = avail
	s.mu.Unlock()
	return avail
}

// Export resolves the download URL of a rendered document.
func (s *Session) Export(ctx context.Context, ref models.Ref, format string) (string, error) {
	if format != "pdf" && format != "json" {
		return "", &models.BusinessRuleError{Title: fmt.Sprintf("unsupported export format: %s", format)}
	}
	return s.backend.ExportURL(ctx, s.kind, ref.ID, format)
}
