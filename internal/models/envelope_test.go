package models

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeEnvelopeSuccess(t *testing.T) {
	body := []byte(`{"succeeded":true,"message":"ok","data":{"id":5}}`)

	data, err := DecodeEnvelope(http.StatusOK, body)
	require.NoError(t, err)
	require.JSONEq(t, `{"id":5}`, string(data))
}

func TestDecodeEnvelopeFieldMapBecomesValidationError(t *testing.T) {
	body := []byte(`{"succeeded":false,"message":"Invalid document","errors":{"lines[0].quantity":["must be positive"],"customer":["required"]}}`)

	_, err := DecodeEnvelope(http.StatusBadRequest, body)

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	require.Equal(t, "Invalid document", vErr.Message)
	require.Equal(t, []string{"must be positive"}, vErr.Fields["lines[0].quantity"])
	require.Equal(t, []string{"required"}, vErr.Fields["customer"])
}

func TestDecodeEnvelopeStringArrayBecomesBusinessRuleError(t *testing.T) {
	body := []byte(`{"succeeded":false,"message":"Stale document","errors":["document was modified by another user"]}`)

	_, err := DecodeEnvelope(http.StatusConflict, body)

	var bErr *BusinessRuleError
	require.ErrorAs(t, err, &bErr)
	require.Equal(t, "Stale document", bErr.Title)
	require.Equal(t, []string{"document was modified by another user"}, bErr.Details)
}

func TestDecodeEnvelopeBareStringErrors(t *testing.T) {
	body := []byte(`{"succeeded":false,"message":"Rejected","errors":"something went wrong"}`)

	var bErr *BusinessRuleError
	_, err := DecodeEnvelope(http.StatusBadRequest, body)
	require.ErrorAs(t, err, &bErr)
	require.Equal(t, []string{"something went wrong"}, bErr.Details)
}

func TestDecodeEnvelopeSucceededFalseTrumpsHTTPStatus(t *testing.T) {
	body := []byte(`{"succeeded":false,"message":"Not allowed"}`)

	_, err := DecodeEnvelope(http.StatusOK, body)

	var bErr *BusinessRuleError
	require.ErrorAs(t, err, &bErr)
	require.Equal(t, "Not allowed", bErr.Title)
}

func TestDecodeEnvelopeNonSuccessStatusTrumpsSucceededTrue(t *testing.T) {
	body := []byte(`{"succeeded":true,"data":{}}`)

	_, err := DecodeEnvelope(http.StatusBadGateway, body)
	require.Error(t, err)
}

func TestDecodeEnvelopeMalformedBody(t *testing.T) {
	_, err := DecodeEnvelope(http.StatusOK, []byte(`<html>bad gateway</html>`))

	var bErr *BusinessRuleError
	require.ErrorAs(t, err, &bErr)
	require.Equal(t, "Unexpected response from the server", bErr.Title)
}

func TestDecodeEnvelopeMissingMessageGetsFallbackTitle(t *testing.T) {
	_, err := DecodeEnvelope(http.StatusBadRequest, []byte(`{"succeeded":false}`))

	var bErr *BusinessRuleError
	require.ErrorAs(t, err, &bErr)
	require.Equal(t, "The server rejected the request", bErr.Title)
}

func TestRejectionReasonJoinsMessages(t *testing.T) {
	payload := ClearancePayload{
		Status: ClearanceRejected,
		Errors: []ClearanceError{
			{ErrorCode: "E1", ErrorMessage: "invalid ICE"},
			{ErrorCode: "E7", ErrorMessage: "duplicate submission"},
		},
	}
	require.Equal(t, "invalid ICE; duplicate submission", payload.RejectionReason())
}

func TestRejectionReasonFallsBackWhenEmpty(t *testing.T) {
	require.Equal(t, "no reason provided", ClearancePayload{Status: ClearanceRejected}.RejectionReason())

	// Items without a message are skipped, not rendered empty.
	payload := ClearancePayload{Errors: []ClearanceError{{ErrorCode: "E1"}}}
	require.Equal(t, "no reason provided", payload.RejectionReason())
}

func TestNewPagination(t *testing.T) {
	p := NewPagination(3, 20, 41)
	require.Equal(t, 3, p.Page)
	require.Equal(t, 20, p.PageSize)
	require.Equal(t, 41, p.TotalItems)
	require.Equal(t, 3, p.TotalPages)

	p = NewPagination(1, 20, 40)
	require.Equal(t, 2, p.TotalPages)

	p = NewPagination(0, 0, 0)
	require.Equal(t, 1, p.Page)
	require.Equal(t, 20, p.PageSize)
	require.Equal(t, 0, p.TotalPages)
}

func TestNotifyMapsTaxonomy(t *testing.T) {
	n := Notify(&ValidationError{Message: "Invalid document", Fields: map[string][]string{"total": {"negative"}}})
	require.Equal(t, "Invalid document", n.Title)
	require.Equal(t, []string{"total: negative"}, n.Items)

	n = Notify(&AgentError{Kind: AgentTimeout})
	require.Equal(t, "Signing agent did not answer in time.", n.Title)

	n = Notify(ErrTransitionInFlight)
	require.Equal(t, "Operation already in progress", n.Title)

	n = Notify(ErrNotPermitted)
	require.Equal(t, "You are not allowed to perform this action", n.Title)
}
