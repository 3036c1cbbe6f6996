package models

import (
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Kind identifies the fiscal document variant.
type Kind string

const (
	KindInvoice    Kind = "invoice"
	KindCreditNote Kind = "credit_note"
)

// Status is the lifecycle status of a fiscal document.
type Status string

const (
	StatusDraft             Status = "DRAFT"
	StatusReady             Status = "READY"
	StatusAwaitingClearance Status = "AWAITING_CLEARANCE"
	StatusValidated         Status = "VALIDATED"
	StatusRejected          Status = "REJECTED"
)

// Role identifies the operator role of the session.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleClerk   Role = "clerk"
)

// ParseRole normalizes a role string.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAdmin, RoleManager, RoleClerk:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown role: %q", s)
}

// ParseKind normalizes a document kind string.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindInvoice, KindCreditNote:
		return Kind(s), nil
	}
	return "", fmt.Errorf("unknown document kind: %q", s)
}

// Ref identifies a document either by its server-assigned id (committed) or
// by a client-generated local token (pending, not yet confirmed by the server).
type Ref struct {
	ID         int64     `json:"id,omitempty"`
	LocalToken uuid.UUID `json:"local_token,omitempty"`
	CreatedAt  time.Time `json:"-"`
}

// CommittedRef builds a reference to a server-confirmed document.
func CommittedRef(id int64) Ref {
	return Ref{ID: id}
}

// NewPendingRef builds a reference for an optimistic insert.
func NewPendingRef() Ref {
	return Ref{LocalToken: uuid.New(), CreatedAt: time.Now()}
}

// IsPending reports whether the document has not been confirmed by the server.
func (r Ref) IsPending() bool {
	return r.ID == 0
}

// Key returns a stable map key for the reference.
func (r Ref) Key() string {
	if r.IsPending() {
		return "tmp:" + r.LocalToken.String()
	}
	return fmt.Sprintf("doc:%d", r.ID)
}

// PlaceholderNumber renders the display number used while the insert is pending.
func (r Ref) PlaceholderNumber() string {
	return fmt.Sprintf("TEMP-%d", r.CreatedAt.UnixMilli())
}

func (r Ref) String() string {
	return r.Key()
}

// CustomerSnapshot is the denormalized customer copy taken at creation time.
// It is not a live foreign key; display never re-resolves it.
type CustomerSnapshot struct {
	ID        int64  `json:"id"`
	LegalName string `json:"legal_name" validate:"required"`
	TaxID     string `json:"tax_id"`
	ICE       string `json:"ice"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
}

// Line is one position of a fiscal document.
type Line struct {
	Description string  `json:"description" validate:"required"`
	Quantity    float64 `json:"quantity" validate:"gt=0"`
	UnitPrice   float64 `json:"unit_price" validate:"gt=0"`
	TaxRate     float64 `json:"tax_rate" validate:"gte=0,lte=100"`
	LineTotal   float64 `json:"line_total"`
}

// Document is a fiscal document (invoice or credit note) under lifecycle
// management. Monetary aggregates are authoritative only once the server has
// confirmed them; client-side recomputation is advisory for pending inserts.
type Document struct {
	Ref      Ref              `json:"ref"`
	Kind     Kind             `json:"kind"`
	Number   string           `json:"number"`
	Date     time.Time        `json:"date"`
	Customer CustomerSnapshot `json:"customer" validate:"required"`
	Lines    []Line           `json:"lines" validate:"required,min=1,dive"`

	SubTotal float64 `json:"sub_total"`
	VAT      float64 `json:"vat"`
	Total    float64 `json:"total"`

	Status             Status   `json:"status"`
	DGISubmissionID    string   `json:"dgi_submission_id,omitempty"`
	DGIRejectionReason string   `json:"dgi_rejection_reason,omitempty"`
	Warnings           []string `json:"warnings,omitempty"`

	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`

	// Invoice only.
	AmountPaid       float64 `json:"amount_paid,omitempty"`
	PaymentMethod    string  `json:"payment_method,omitempty"`
	PaymentReference string  `json:"payment_reference,omitempty"`

	// Credit note only: the invoice being corrected.
	OriginalDocumentID int64 `json:"original_document_id,omitempty"`
}

// Summary is the list-view projection of a document.
type Summary struct {
	Ref          Ref       `json:"ref"`
	Kind         Kind      `json:"kind"`
	Number       string    `json:"number"`
	Date         time.Time `json:"date"`
	CustomerName string    `json:"customer_name"`
	Total        float64   `json:"total"`
	Status       Status    `json:"status"`
}

// Summarize projects a document onto its list-view shape.
func (d *Document) Summarize() Summary {
	return Summary{
		Ref:          d.Ref,
		Kind:         d.Kind,
		Number:       d.Number,
		Date:         d.Date,
		CustomerName: d.Customer.LegalName,
		Total:        d.Total,
		Status:       d.Status,
	}
}

// Clone returns a deep copy of the document, suitable for cache snapshots.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	dup := *d
	dup.Lines = append([]Line(nil), d.Lines...)
	dup.Warnings = append([]string(nil), d.Warnings...)
	return &dup
}

var validate = validator.New()

// Validate checks field-level constraints before a create or update call.
func (d *Document) Validate() error {
	if err := validate.Struct(d); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			fields := make(map[string][]string)
			for _, fe := range verrs {
				fields[fe.Namespace()] = append(fields[fe.Namespace()], fe.Tag())
			}
			return &ValidationError{Message: "document validation failed", Fields: fields}
		}
		return err
	}
	return nil
}

// round2 rounds a monetary amount to 2 decimal places.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// RecomputeTotals computes the monetary aggregates from the given lines. Each
// aggregate is rounded to 2 decimals independently, never as the sum of
// per-line rounded values. Tax is computed separately and never compounded
// into line totals.
func RecomputeTotals(lines []Line) (subTotal, vat, total float64) {
	var rawSub, rawVAT float64
	for _, line := range lines {
		lineTotal := line.Quantity * line.UnitPrice
		rawSub += lineTotal
		rawVAT += lineTotal * line.TaxRate / 100
	}
	return round2(rawSub), round2(rawVAT), round2(rawSub + rawVAT)
}

// ApplyTotals recomputes and stores the aggregates and per-line totals.
func (d *Document) ApplyTotals() {
	for i := range d.Lines {
		d.Lines[i].LineTotal = d.Lines[i].Quantity * d.Lines[i].UnitPrice
	}
	d.SubTotal, d.VAT, d.Total = RecomputeTotals(d.Lines)
}
