package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hypernova-labs/dgi-console/internal/config"
	"github.com/hypernova-labs/dgi-console/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func newTestServerClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewClient(config.BackendConfig{
		BaseURL: srv.URL,
		Timeout: 2 * time.Second,
	}, models.RoleManager, logger)
}

func TestListQueryValues(t *testing.T) {
	from := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)
	min := 100.5
	q := ListQuery{
		DateFrom:      &from,
		Search:        "acme",
		Status:        models.StatusDraft,
		AmountMin:     &min,
		SortField:     "total",
		SortDirection: SortDesc,
		Page:          2,
		PageSize:      50,
	}

	v := q.Values()
	require.Equal(t, "2026-01-15", v.Get("dateFrom"))
	require.Equal(t, "acme", v.Get("search"))
	require.Equal(t, "DRAFT", v.Get("status"))
	require.Equal(t, "100.50", v.Get("amountMin"))
	require.Equal(t, "total", v.Get("sortField"))
	require.Equal(t, "desc", v.Get("sortDirection"))
	require.Equal(t, "2", v.Get("page"))
	require.Equal(t, "50", v.Get("pageSize"))
	require.Empty(t, v.Get("dateTo"))
	require.Empty(t, v.Get("amountMax"))
}

func TestListQueryValuesDefaults(t *testing.T) {
	v := ListQuery{}.Values()
	require.Equal(t, "1", v.Get("page"))
	require.Equal(t, "20", v.Get("pageSize"))
	require.Empty(t, v.Get("sortField"))

	// A sort field without a direction defaults to ascending.
	v = ListQuery{SortField: "date"}.Values()
	require.Equal(t, "asc", v.Get("sortDirection"))
}

func TestListDecodesEnvelopeAndForwardsRole(t *testing.T) {
	client := newTestServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/invoices", r.URL.Path)
		require.Equal(t, "manager", r.Header.Get("X-Role"))
		require.Equal(t, "acme", r.URL.Query().Get("search"))

		json.NewEncoder(w).Encode(map[string]any{
			"succeeded": true,
			"data": models.ListPayload{
				Items: []models.SummaryPayload{
					{ID: 1, Kind: models.KindInvoice, Number: "INV-2026-000001", CustomerName: "ACME SARL", Total: 120, Status: models.StatusDraft},
				},
				Pagination: models.NewPagination(1, 20, 1),
			},
		})
	})

	result, err := client.List(context.Background(), models.KindInvoice, ListQuery{Search: "acme"})
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	require.Equal(t, models.CommittedRef(1), result.Items[0].Ref)
	require.Equal(t, "INV-2026-000001", result.Items[0].Number)
	require.Equal(t, 1, result.Pagination.TotalItems)
}

func TestGetUsesCreditNotePath(t *testing.T) {
	client := newTestServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/credit-notes/7", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"succeeded": true,
			"data": models.DocumentPayload{
				ID: 7, Kind: models.KindCreditNote, Number: "CN-2026-000007", Status: models.StatusDraft,
			},
		})
	})

	doc, err := client.Get(context.Background(), models.KindCreditNote, 7)
	require.NoError(t, err)
	require.Equal(t, models.CommittedRef(7), doc.Ref)
	require.Equal(t, models.KindCreditNote, doc.Kind)
}

func TestSetReadySendsSignature(t *testing.T) {
	client := newTestServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/invoices/3/set-ready", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)

		var req models.SetReadyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "SIG-abc", req.Signature)

		json.NewEncoder(w).Encode(map[string]any{
			"succeeded": true,
			"data":      models.DocumentPayload{ID: 3, Status: models.StatusReady},
		})
	})

	doc, err := client.SetReady(context.Background(), models.KindInvoice, 3, "SIG-abc")
	require.NoError(t, err)
	require.Equal(t, models.StatusReady, doc.Status)
}

func TestValidationErrorsSurfaceFromEnvelope(t *testing.T) {
	client := newTestServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"succeeded": false,
			"message":   "Invalid document",
			"errors":    map[string][]string{"lines": {"at least one line required"}},
		})
	})

	_, err := client.Create(context.Background(), &models.Document{Kind: models.KindInvoice})

	var vErr *models.ValidationError
	require.ErrorAs(t, err, &vErr)
	require.Equal(t, []string{"at least one line required"}, vErr.Fields["lines"])
}

func TestTransportFailureIsNetworkError(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	client := NewClient(config.BackendConfig{
		BaseURL: "http://127.0.0.1:1",
		Timeout: 500 * time.Millisecond,
	}, models.RoleAdmin, logger)

	_, err := client.List(context.Background(), models.KindInvoice, ListQuery{})

	var nErr *models.NetworkError
	require.ErrorAs(t, err, &nErr)
}

func TestDataToSign(t *testing.T) {
	client := newTestServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/invoices/5/data-to-sign", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"succeeded": true,
			"data":      models.DataToSignPayload{DataToSign: "INV-5|123|100.00"},
		})
	})

	data, err := client.DataToSign(context.Background(), models.KindInvoice, 5)
	require.NoError(t, err)
	require.Equal(t, "INV-5|123|100.00", data)
}

func TestClearanceStatusDecodesAuthorityErrors(t *testing.T) {
	client := newTestServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"succeeded": true,
			"data": models.ClearancePayload{
				Status: models.ClearanceRejected,
				Errors: []models.ClearanceError{{ErrorCode: "E1", ErrorMessage: "invalid ICE"}},
			},
		})
	})

	payload, err := client.ClearanceStatus(context.Background(), models.KindInvoice, 9)
	require.NoError(t, err)
	require.Equal(t, models.ClearanceRejected, payload.Status)
	require.Equal(t, "invalid ICE", payload.RejectionReason())
}

func TestExportURL(t *testing.T) {
	client := newTestServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "json", r.URL.Query().Get("format"))
		json.NewEncoder(w).Encode(map[string]any{
			"succeeded": true,
			"data":      models.ExportPayload{URL: "/v1/invoices/4/download?format=json"},
		})
	})

	url, err := client.ExportURL(context.Background(), models.KindInvoice, 4, "json")
	require.NoError(t, err)
	require.Equal(t, "/v1/invoices/4/download?format=json", url)
}
