// Package backend implements the HTTP client for the clearance backend. Every
// response travels in the uniform {succeeded, message, data, errors} envelope;
// the raw error shape is classified into the typed taxonomy at this boundary
// and never re-inspected downstream.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hypernova-labs/dgi-console/internal/config"
	"github.com/hypernova-labs/dgi-console/internal/models"
	"github.com/sirupsen/logrus"
)

// SortDirection orders a listing.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// ListQuery carries the filter, sort and pagination parameters of a listing.
// The zero value lists the first page with default page size and no filters.
type ListQuery struct {
	DateFrom  *time.Time
	DateTo    *time.Time
	Search    string
	Status    models.Status
	AmountMin *float64
	AmountMax *float64

	SortField     string
	SortDirection SortDirection

	Page     int
	PageSize int
}

// Values encodes the query as backend query parameters.
func (q ListQuery) Values() url.Values {
	v := url.Values{}
	if q.DateFrom != nil {
		v.Set("dateFrom", q.DateFrom.Format("2006-01-02"))
	}
	if q.DateTo != nil {
		v.Set("dateTo", q.DateTo.Format("2006-01-02"))
	}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.Status != "" {
		v.Set("status", string(q.Status))
	}
	if q.AmountMin != nil {
		v.Set("amountMin", strconv.FormatFloat(*q.AmountMin, 'f', 2, 64))
	}
	if q.AmountMax != nil {
		v.Set("amountMax", strconv.FormatFloat(*q.AmountMax, 'f', 2, 64))
	}
	if q.SortField != "" {
		v.Set("sortField", q.SortField)
		dir := q.SortDirection
		if dir == "" {
			dir = SortAsc
		}
		v.Set("sortDirection", string(dir))
	}
	page := q.Page
	if page <= 0 {
		page = 1
	}
	pageSize := q.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	v.Set("page", strconv.Itoa(page))
	v.Set("pageSize", strconv.Itoa(pageSize))
	return v
}

// ListResult is a decoded page of document summaries.
type ListResult struct {
	Items      []models.Summary
	Pagination models.Pagination
}

// Client talks to the clearance backend.
type Client struct {
	baseURL string
	role    models.Role
	http    *http.Client
	logger  *logrus.Logger
}

// NewClient builds a backend client. The role is forwarded on every request
// so the server can enforce its own gate.
func NewClient(cfg config.BackendConfig, role models.Role, logger *logrus.Logger) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		role:    role,
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
	}
}

// collection returns the URL path segment of a document kind.
func collection(kind models.Kind) string {
	if kind == models.KindCreditNote {
		return "credit-notes"
	}
	return "invoices"
}

// do performs one backend call and returns the envelope data payload.
// Transport failures where no response was received map to NetworkError.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) (json.RawMessage, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("error encoding request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("error building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Role", string(c.role))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.WithError(err).WithFields(logrus.Fields{
			"method": method,
			"path":   path,
		}).Warn("Backend request failed before a response was received")
		return nil, &models.NetworkError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &models.NetworkError{Op: method + " " + path, Err: err}
	}

	return models.DecodeEnvelope(resp.StatusCode, payload)
}

// decodeInto unmarshals the envelope data payload.
func decodeInto[T any](data json.RawMessage) (T, error) {
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return out, &models.BusinessRuleError{
			Title:   "Unexpected response from the server",
			Details: []string{err.Error()},
		}
	}
	return out, nil
}

// List fetches one page of documents.
func (c *Client) List(ctx context.Context, kind models.Kind, q ListQuery) (*ListResult, error) {
	data, err := c.do(ctx, http.MethodGet, "/v1/"+collection(kind), q.Values(), nil)
	if err != nil {
		return nil, err
	}
	page, err := decodeInto[models.ListPayload](data)
	if err != nil {
		return nil, err
	}
	items := make([]models.Summary, 0, len(page.Items))
	for _, item := range page.Items {
		items = append(items, item.ToSummary())
	}
	return &ListResult{Items: items, Pagination: page.Pagination}, nil
}

// Get fetches a single document.
func (c *Client) Get(ctx context.Context, kind models.Kind, id int64) (*models.Document, error) {
	data, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/v1/%s/%d", collection(kind), id), nil, nil)
	if err != nil {
		return nil, err
	}
	payload, err := decodeInto[models.DocumentPayload](data)
	if err != nil {
		return nil, err
	}
	return payload.ToDocument(), nil
}

// Create stores a new document and returns the authoritative server copy.
func (c *Client) Create(ctx context.Context, doc *models.Document) (*models.Document, error) {
	data, err := c.do(ctx, http.MethodPost, "/v1/"+collection(doc.Kind), nil, models.PayloadFromDocument(doc))
	if err != nil {
		return nil, err
	}
	payload, err := decodeInto[models.DocumentPayload](data)
	if err != nil {
		return nil, err
	}
	return payload.ToDocument(), nil
}

// Update replaces the full document and returns the authoritative copy.
func (c *Client) Update(ctx context.Context, doc *models.Document) (*models.Document, error) {
	path := fmt.Sprintf("/v1/%s/%d", collection(doc.Kind), doc.Ref.ID)
	data, err := c.do(ctx, http.MethodPut, path, nil, models.PayloadFromDocument(doc))
	if err != nil {
		return nil, err
	}
	payload, err := decodeInto[models.DocumentPayload](data)
	if err != nil {
		return nil, err
	}
	return payload.ToDocument(), nil
}

// Delete removes a draft document.
func (c *Client) Delete(ctx context.Context, kind models.Kind, id int64) error {
	_, err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/v1/%s/%d", collection(kind), id), nil, nil)
	return err
}

// Submit sends a READY document to the clearance authority.
func (c *Client) Submit(ctx context.Context, kind models.Kind, id int64) (*models.Document, error) {
	data, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/v1/%s/%d/submit", collection(kind), id), nil, nil)
	if err != nil {
		return nil, err
	}
	payload, err := decodeInto[models.DocumentPayload](data)
	if err != nil {
		return nil, err
	}
	return payload.ToDocument(), nil
}

// SetDraft moves a document back to DRAFT.
func (c *Client) SetDraft(ctx context.Context, kind models.Kind, id int64) (*models.Document, error) {
	data, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/v1/%s/%d/set-draft", collection(kind), id), nil, nil)
	if err != nil {
		return nil, err
	}
	payload, err := decodeInto[models.DocumentPayload](data)
	if err != nil {
		return nil, err
	}
	return payload.ToDocument(), nil
}

// SetReady promotes a signed draft to READY.
func (c *Client) SetReady(ctx context.Context, kind models.Kind, id int64, signature string) (*models.Document, error) {
	path := fmt.Sprintf("/v1/%s/%d/set-ready", collection(kind), id)
	data, err := c.do(ctx, http.MethodPost, path, nil, models.SetReadyRequest{Signature: signature})
	if err != nil {
		return nil, err
	}
	payload, err := decodeInto[models.DocumentPayload](data)
	if err != nil {
		return nil, err
	}
	return payload.ToDocument(), nil
}

// DataToSign fetches the server-provided payload the agent must sign.
func (c *Client) DataToSign(ctx context.Context, kind models.Kind, id int64) (string, error) {
	data, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/v1/%s/%d/data-to-sign", collection(kind), id), nil, nil)
	if err != nil {
		return "", err
	}
	payload, err := decodeInto[models.DataToSignPayload](data)
	if err != nil {
		return "", err
	}
	return payload.DataToSign, nil
}

// ClearanceStatus polls the authority state of a submitted document.
func (c *Client) ClearanceStatus(ctx context.Context, kind models.Kind, id int64) (*models.ClearancePayload, error) {
	path := fmt.Sprintf("/v1/%s/%d/clearance-status", collection(kind), id)
	data, err := c.do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}
	payload, err := decodeInto[models.ClearancePayload](data)
	if err != nil {
		return nil, err
	}
	return &payload, nil
}

// ExportURL resolves the download URL of a rendered document.
func (c *Client) ExportURL(ctx context.Context, kind models.Kind, id int64, format string) (string, error) {
	q := url.Values{}
	q.Set("format", format)
	data, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/v1/%s/%d/export", collection(kind), id), q, nil)
	if err != nil {
		return "", err
	}
	payload, err := decodeInto[models.ExportPayload](data)
	if err != nil {
		return "", err
	}
	return payload.URL, nil
}
