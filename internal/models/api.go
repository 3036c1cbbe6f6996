package models

import "time"

// DocumentPayload is the wire representation of a document exchanged with the
// backend. Server documents always carry a positive id; the pending local
// token never crosses the wire.
type DocumentPayload struct {
	ID       int64            `json:"id"`
	Kind     Kind             `json:"kind"`
	Number   string           `json:"number"`
	Date     time.Time        `json:"date"`
	Customer CustomerSnapshot `json:"customer"`
	Lines    []Line           `json:"lines"`

	SubTotal float64 `json:"sub_total"`
	VAT      float64 `json:"vat"`
	Total    float64 `json:"total"`

	Status             Status   `json:"status"`
	DGISubmissionID    string   `json:"dgi_submission_id,omitempty"`
	DGIRejectionReason string   `json:"dgi_rejection_reason,omitempty"`
	Warnings           []string `json:"warnings,omitempty"`

	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`

	AmountPaid       float64 `json:"amount_paid,omitempty"`
	PaymentMethod    string  `json:"payment_method,omitempty"`
	PaymentReference string  `json:"payment_reference,omitempty"`

	OriginalDocumentID int64 `json:"original_document_id,omitempty"`
}

// ToDocument converts the wire payload to the in-memory model.
func (p DocumentPayload) ToDocument() *Document {
	return &Document{
		Ref:                CommittedRef(p.ID),
		Kind:               p.Kind,
		Number:             p.Number,
		Date:               p.Date,
		Customer:           p.Customer,
		Lines:              append([]Line(nil), p.Lines...),
		SubTotal:           p.SubTotal,
		VAT:                p.VAT,
		Total:              p.Total,
		Status:             p.Status,
		DGISubmissionID:    p.DGISubmissionID,
		DGIRejectionReason: p.DGIRejectionReason,
		Warnings:           append([]string(nil), p.Warnings...),
		CreatedBy:          p.CreatedBy,
		CreatedAt:          p.CreatedAt,
		AmountPaid:         p.AmountPaid,
		PaymentMethod:      p.PaymentMethod,
		PaymentReference:   p.PaymentReference,
		OriginalDocumentID: p.OriginalDocumentID,
	}
}

// PayloadFromDocument converts the in-memory model to its wire shape.
func PayloadFromDocument(d *Document) DocumentPayload {
	return DocumentPayload{
		ID:                 d.Ref.ID,
		Kind:               d.Kind,
		Number:             d.Number,
		Date:               d.Date,
		Customer:           d.Customer,
		Lines:              append([]Line(nil), d.Lines...),
		SubTotal:           d.SubTotal,
		VAT:                d.VAT,
		Total:              d.Total,
		Status:             d.Status,
		DGISubmissionID:    d.DGISubmissionID,
		DGIRejectionReason: d.DGIRejectionReason,
		Warnings:           append([]string(nil), d.Warnings...),
		CreatedBy:          d.CreatedBy,
		CreatedAt:          d.CreatedAt,
		AmountPaid:         d.AmountPaid,
		PaymentMethod:      d.PaymentMethod,
		PaymentReference:   d.PaymentReference,
		OriginalDocumentID: d.OriginalDocumentID,
	}
}

// SummaryPayload is the wire representation of a list item.
type SummaryPayload struct {
	ID           int64     `json:"id"`
	Kind         Kind      `json:"kind"`
	Number       string    `json:"number"`
	Date         time.Time `json:"date"`
	CustomerName string    `json:"customer_name"`
	Total        float64   `json:"total"`
	Status       Status    `json:"status"`
}

// ToSummary converts the wire payload to the list-view model.
func (p SummaryPayload) ToSummary() Summary {
	return Summary{
		Ref:          CommittedRef(p.ID),
		Kind:         p.Kind,
		Number:       p.Number,
		Date:         p.Date,
		CustomerName: p.CustomerName,
		Total:        p.Total,
		Status:       p.Status,
	}
}

// PayloadFromSummary converts a list item to its wire shape.
func PayloadFromSummary(s Summary) SummaryPayload {
	return SummaryPayload{
		ID:           s.Ref.ID,
		Kind:         s.Kind,
		Number:       s.Number,
		Date:         s.Date,
		CustomerName: s.CustomerName,
		Total:        s.Total,
		Status:       s.Status,
	}
}

// ListPayload is the wire representation of a paginated listing.
type ListPayload struct {
	Items      []SummaryPayload `json:"items"`
	Pagination Pagination       `json:"pagination"`
}

// DataToSignPayload is the body of the data-to-sign endpoint.
type DataToSignPayload struct {
	DataToSign string `json:"data_to_sign"`
}

// SetReadyRequest carries the agent signature to the set-ready endpoint.
type SetReadyRequest struct {
	Signature string `json:"signature"`
}

// ExportPayload is the body of the export endpoint.
type ExportPayload struct {
	URL string `json:"url"`
}
