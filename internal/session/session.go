// Package session owns the per-view state of a document management screen:
// the paginated list cache, the detail cache and the last applied filter,
// sort and page. All cache writes go through the coordinator in this package;
// no other component mutates them. Nothing is persisted; a new session
// re-derives everything from the backend.
package session

import (
	"context"
	"sync"

	"github.com/hypernova-labs/dgi-console/internal/agent"
	"github.com/hypernova-labs/dgi-console/internal/backend"
	"github.com/hypernova-labs/dgi-console/internal/clearance"
	"github.com/hypernova-labs/dgi-console/internal/models"
	"github.com/sirupsen/logrus"
)

// Backend is the slice of the backend client the coordinator drives.
type Backend interface {
	List(ctx context.Context, kind models.Kind, q backend.ListQuery) (*backend.ListResult, error)
	Get(ctx context.Context, kind models.Kind, id int64) (*models.Document, error)
	Create(ctx context.Context, doc *models.Document) (*models.Document, error)
	Update(ctx context.Context, doc *models.Document) (*models.Document, error)
	Delete(ctx context.Context, kind models.Kind, id int64) error
	Submit(ctx context.Context, kind models.Kind, id int64) (*models.Document, error)
	SetDraft(ctx context.Context, kind models.Kind, id int64) (*models.Document, error)
	SetReady(ctx context.Context, kind models.Kind, id int64, signature string) (*models.Document, error)
	DataToSign(ctx context.Context, kind models.Kind, id int64) (string, error)
	ClearanceStatus(ctx context.Context, kind models.Kind, id int64) (*models.ClearancePayload, error)
	ExportURL(ctx context.Context, kind models.Kind, id int64, format string) (string, error)
}

// Agent is the slice of the signing agent client the coordinator drives.
type Agent interface {
	Sign(ctx context.Context, ref models.Ref, dataToSign, culture string) (string, error)
	Probe(ctx context.Context, status models.Status) agent.Availability
}

// ListView is the list cache of the session.
type ListView struct {
	Items      []models.Summary
	Pagination models.Pagination
}

// clone deep-copies the list view for snapshots.
func (v ListView) clone() ListView {
	return ListView{
		Items:      append([]models.Summary(nil), v.Items...),
		Pagination: v.Pagination,
	}
}

// Session coordinates optimistic mutations over one document kind for one
// operator role.
type Session struct {
	role    models.Role
	kind    models.Kind
	culture string

	backend Backend
	agent   Agent
	poller  *clearance.Poller
	logger  *logrus.Logger

	mu       sync.Mutex
	list     ListView
	query    backend.ListQuery
	detail   *models.Document
	inflight map[string]struct{}

	availability agent.Availability
	probeCancel  context.CancelFunc
	closed       bool
}

// Option customizes a session.
type Option func(*Session)

// WithCulture sets the locale forwarded to the signing agent.
func WithCulture(culture string) Option {
	return func(s *Session) { s.culture = culture }
}

// New builds a session for one document kind and operator role.
func New(role models.Role, kind models.Kind, be Backend, ag Agent, logger *logrus.Logger, opts ...Option) *Session {
	s := &Session{
		role:         role,
		kind:         kind,
		culture:      "fr-MA",
		backend:      be,
		agent:        ag,
		poller:       clearance.NewPoller(be, logger),
		logger:       logger,
		inflight:     make(map[string]struct{}),
		availability: agent.AvailabilityNotApplicable,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Role returns the operator role of the session.
func (s *Session) Role() models.Role { return s.role }

// Kind returns the document kind the session manages.
func (s *Session) Kind() models.Kind { return s.kind }

// List returns a copy of the current list cache.
func (s *Session) List() ListView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list.clone()
}

// Query returns the last applied filter, sort and page parameters.
func (s *Session) Query() backend.ListQuery {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.query
}

// Detail returns a copy of the detail cache, or nil when no document is open.
func (s *Session) Detail() *models.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.detail.Clone()
}

// AgentAvailability returns the last probed agent state. It reads as checking
// while a probe is in flight.
func (s *Session) AgentAvailability() agent.Availability {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.availability
}

// Close abandons the session. An in-flight availability probe is abandoned
// with it; optimistic state is simply discarded.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.probeCancel != nil {
		s.probeCancel()
		s.probeCancel = nil
	}
}

// snapshot captures every cache region a mutation may touch.
type snapshot struct {
	list   ListView
	query  backend.ListQuery
	detail *models.Document
}

// takeSnapshot must be called with the lock held.
func (s *Session) takeSnapshot() snapshot {
	return snapshot{
		list:   s.list.clone(),
		query:  s.query,
		detail: s.detail.Clone(),
	}
}

// restore must be called with the lock held. It puts every touched cache
// region back to its pre-mutation state; no partial patches survive.
func (s *Session) restore(snap snapshot) {
	s.list = snap.list.clone()
	s.query = snap.query
	s.detail = snap.detail.Clone()
}

// acquireTransition serializes status-changing operations per document.
func (s *Session) acquireTransition(ref models.Ref) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[ref.Key()]; busy {
		return models.ErrTransitionInFlight
	}
	s.inflight[ref.Key()] = struct{}{}
	return nil
}

func (s *Session) releaseTransition(ref models.Ref) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, ref.Key())
}

// statusOf resolves the current status of a document from the caches. The
// detail cache wins when it holds the same document.
func (s *Session) statusOf(ref models.Ref) (models.Status, bool) {
	if s.detail != nil && s.detail.Ref.Key() == ref.Key() {
		return s.detail.Status, true
	}
	for _, item := range s.list.Items {
		if item.Ref.Key() == ref.Key() {
			return item.Status, true
		}
	}
	return "", false
}

// indexOf finds a list item by reference key. Returns -1 when absent.
func (s *Session) indexOf(key string) int {
	for i, item := range s.list.Items {
		if item.Ref.Key() == key {
			return i
		}
	}
	return -1
}

// applyServer reconciles the caches with an authoritative server document.
// previousKey is the cache key the document was stored under before the call
// (a pending token for creates, the committed key otherwise). Applying the
// same server document twice yields the same cache state as applying it once.
func (s *Session) applyServer(previousKey string, doc *models.Document) {
	summary := doc.Summarize()
	if i := s.indexOf(previousKey); i >= 0 {
		s.list.Items[i] = summary
	} else if i := s.indexOf(doc.Ref.Key()); i >= 0 {
		s.list.Items[i] = summary
	}
	if s.detail != nil {
		key := s.detail.Ref.Key()
		if key == previousKey || key == doc.Ref.Key() {
			s.detail = doc.Clone()
		}
	}
}

// setStatus flips the cached status of a document in both caches.
func (s *Session) setStatus(ref models.Ref, status models.Status) {
	if i := s.indexOf(ref.Key()); i >= 0 {
		s.list.Items[i].Status = status
	}
	if s.detail != nil && s.detail.Ref.Key() == ref.Key() {
		s.detail.Status = status
	}
}
