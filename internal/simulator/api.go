package simulator

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hypernova-labs/dgi-console/internal/config"
	"github.com/hypernova-labs/dgi-console/internal/guard"
	"github.com/hypernova-labs/dgi-console/internal/models"
	"github.com/sirupsen/logrus"
)

// API serves the simulated backend endpoints.
type API struct {
	store  *Store
	cfg    config.SimConfig
	logger *logrus.Logger
}

// NewAPI builds the simulator API.
func NewAPI(store *Store, cfg config.SimConfig, logger *logrus.Logger) *API {
	return &API{store: store, cfg: cfg, logger: logger}
}

// Router wires every endpoint of the backend surface.
func (api *API) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	for _, kind := range []models.Kind{models.KindInvoice, models.KindCreditNote} {
		kind := kind
		group := router.Group("/v1/" + collectionPath(kind))
		group.GET("", api.list(kind))
		group.POST("", api.create(kind))
		group.GET("/:id", api.get(kind))
		group.PUT("/:id", api.update(kind))
		group.DELETE("/:id", api.remove(kind))
		group.POST("/:id/submit", api.submit(kind))
		group.POST("/:id/set-draft", api.setDraft(kind))
		group.POST("/:id/set-ready", api.setReady(kind))
		group.GET("/:id/data-to-sign", api.dataToSign(kind))
		group.GET("/:id/clearance-status", api.clearanceStatus(kind))
		group.GET("/:id/export", api.export(kind))
	}
	return router
}

func collectionPath(kind models.Kind) string {
	if kind == models.KindCreditNote {
		return "credit-notes"
	}
	return "invoices"
}

// respond helpers keep every endpoint on the uniform envelope.

func ok(c *gin.Context, status int, data any, message string) {
	c.JSON(status, gin.H{"succeeded": true, "message": message, "data": data})
}

func fail(c *gin.Context, status int, message string, details ...string) {
	body := gin.H{"succeeded": false, "message": message}
	if len(details) > 0 {
		body["errors"] = details
	}
	c.JSON(status, body)
}

func failFields(c *gin.Context, message string, fields map[string][]string) {
	c.JSON(http.StatusBadRequest, gin.H{"succeeded": false, "message": message, "errors": fields})
}

// roleOf reads the operator role forwarded by the client. The simulator
// re-derives every permission server-side; a missing header gets admin so
// ad-hoc curl calls stay convenient.
func roleOf(c *gin.Context) models.Role {
	role, err := models.ParseRole(c.GetHeader("X-Role"))
	if err != nil {
		return models.RoleAdmin
	}
	return role
}

func (api *API) load(c *gin.Context, kind models.Kind) (*record, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		failFields(c, "Invalid document id", map[string][]string{"id": {"must be a positive integer"}})
		return nil, false
	}
	rec, err := api.store.Get(c.Request.Context(), id)
	if err != nil {
		api.logger.WithError(err).Error("Error loading document")
		fail(c, http.StatusInternalServerError, "Error loading document")
		return nil, false
	}
	// Ids are global but each collection only serves its own kind.
	if rec == nil || rec.Doc.Kind != kind {
		fail(c, http.StatusNotFound, "Document not found")
		return nil, false
	}
	return rec, true
}

func (api *API) list(kind models.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		records, err := api.store.ListAll(c.Request.Context(), kind)
		if err != nil {
			api.logger.WithError(err).Error("Error listing documents")
			fail(c, http.StatusInternalServerError, "Error listing documents")
			return
		}

		filtered := filterRecords(records, c)
		sortRecords(filtered, c.Query("sortField"), c.Query("sortDirection"))

		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "20"))
		if page < 1 {
			page = 1
		}
		if pageSize < 1 || pageSize > 100 {
			pageSize = 20
		}

		total := len(filtered)
		start := (page - 1) * pageSize
		if start > total {
			start = total
		}
		end := start + pageSize
		if end > total {
			end = total
		}

		items := make([]models.SummaryPayload, 0, end-start)
		for _, rec := range filtered[start:end] {
			doc := rec.Doc.ToDocument()
			items = append(items, models.PayloadFromSummary(doc.Summarize()))
		}

		ok(c, http.StatusOK, models.ListPayload{
			Items:      items,
			Pagination: models.NewPagination(page, pageSize, total),
		}, "")
	}
}

func filterRecords(records []*record, c *gin.Context) []*record {
	search := strings.ToLower(c.Query("search"))
	status := c.Query("status")
	dateFrom, dateTo := c.Query("dateFrom"), c.Query("dateTo")
	amountMin, amountMax := c.Query("amountMin"), c.Query("amountMax")

	out := make([]*record, 0, len(records))
	for _, rec := range records {
		doc := rec.Doc
		if status != "" && string(doc.Status) != status {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(doc.Number), search) &&
			!strings.Contains(strings.ToLower(doc.Customer.LegalName), search) {
			continue
		}
		if dateFrom != "" {
			if from, err := time.Parse("2006-01-02", dateFrom); err == nil && doc.Date.Before(from) {
				continue
			}
		}
		if dateTo != "" {
			if to, err := time.Parse("2006-01-02", dateTo); err == nil && doc.Date.After(to.Add(24*time.Hour)) {
				continue
			}
		}
		if amountMin != "" {
			if min, err := strconv.ParseFloat(amountMin, 64); err == nil && doc.Total < min {
				continue
			}
		}
		if amountMax != "" {
			if max, err := strconv.ParseFloat(amountMax, 64); err == nil && doc.Total > max {
				continue
			}
		}
		out = append(out, rec)
	}
	return out
}

func sortRecords(records []*record, field, direction string) {
	if field == "" {
		field = "date"
	}
	desc := direction == "desc"
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i].Doc, records[j].Doc
		var less bool
		switch field {
		case "number":
			less = a.Number < b.Number
		case "total":
			less = a.Total < b.Total
		case "status":
			less = a.Status < b.Status
		case "customer":
			less = a.Customer.LegalName < b.Customer.LegalName
		default:
			less = a.Date.Before(b.Date)
		}
		if desc {
			return !less
		}
		return less
	})
}

func (api *API) create(kind models.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !guard.CanCreate(roleOf(c), kind) {
			fail(c, http.StatusForbidden, "Role may not create documents of this kind")
			return
		}
		var payload models.DocumentPayload
		if err := c.ShouldBindJSON(&payload); err != nil {
			failFields(c, "Invalid request format", map[string][]string{"body": {err.Error()}})
			return
		}
		payload.Kind = kind
		doc := payload.ToDocument()
		doc.ApplyTotals()
		if err := doc.Validate(); err != nil {
			var vErr *models.ValidationError
			if errors.As(err, &vErr) {
				failFields(c, vErr.Message, vErr.Fields)
				return
			}
			fail(c, http.StatusBadRequest, err.Error())
			return
		}
		if kind == models.KindCreditNote && payload.OriginalDocumentID == 0 {
			failFields(c, "Credit note requires the corrected invoice", map[string][]string{
				"original_document_id": {"required"},
			})
			return
		}

		ctx := c.Request.Context()
		id, err := api.store.NextID(ctx)
		if err != nil {
			api.logger.WithError(err).Error("Error allocating id")
			fail(c, http.StatusInternalServerError, "Error creating document")
			return
		}

		stored := models.PayloadFromDocument(doc)
		stored.ID = id
		stored.Number = documentNumber(kind, id)
		stored.Status = models.StatusDraft
		stored.CreatedAt = time.Now()
		if stored.Date.IsZero() {
			stored.Date = time.Now()
		}

		rec := &record{Doc: stored}
		if err := api.store.Put(ctx, rec); err != nil {
			api.logger.WithError(err).Error("Error storing document")
			fail(c, http.StatusInternalServerError, "Error creating document")
			return
		}

		api.logger.WithFields(logrus.Fields{
			"document_id": id,
			"number":      stored.Number,
			"total":       stored.Total,
		}).Info("Document created")
		ok(c, http.StatusCreated, stored, "Document created")
	}
}

func documentNumber(kind models.Kind, id int64) string {
	prefix := "INV"
	if kind == models.KindCreditNote {
		prefix = "CN"
	}
	return fmt.Sprintf("%s-%d-%06d", prefix, time.Now().Year(), id)
}

func (api *API) get(kind models.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, found := api.load(c, kind)
		if !found {
			return
		}
		ok(c, http.StatusOK, rec.Doc, "")
	}
}

func (api *API) update(kind models.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, found := api.load(c, kind)
		if !found {
			return
		}
		if !guard.CanEdit(roleOf(c), rec.Doc.Status) {
			fail(c, http.StatusForbidden, "Only drafts may be edited, by managers and admins")
			return
		}
		var payload models.DocumentPayload
		if err := c.ShouldBindJSON(&payload); err != nil {
			failFields(c, "Invalid request format", map[string][]string{"body": {err.Error()}})
			return
		}
		doc := payload.ToDocument()
		doc.ApplyTotals()
		if err := doc.Validate(); err != nil {
			var vErr *models.ValidationError
			if errors.As(err, &vErr) {
				failFields(c, vErr.Message, vErr.Fields)
				return
			}
			fail(c, http.StatusBadRequest, err.Error())
			return
		}

		updated := models.PayloadFromDocument(doc)
		updated.ID = rec.Doc.ID
		updated.Kind = rec.Doc.Kind
		updated.Number = rec.Doc.Number
		updated.Status = rec.Doc.Status
		updated.CreatedBy = rec.Doc.CreatedBy
		updated.CreatedAt = rec.Doc.CreatedAt
		rec.Doc = updated

		if err := api.store.Put(c.Request.Context(), rec); err != nil {
			api.logger.WithError(err).Error("Error storing document")
			fail(c, http.StatusInternalServerError, "Error updating document")
			return
		}
		ok(c, http.StatusOK, rec.Doc, "Document updated")
	}
}

func (api *API) remove(kind models.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, found := api.load(c, kind)
		if !found {
			return
		}
		if !guard.CanDelete(roleOf(c), rec.Doc.Status, kind) {
			fail(c, http.StatusForbidden, "Only drafts may be deleted")
			return
		}
		if err := api.store.Delete(c.Request.Context(), kind, rec.Doc.ID); err != nil {
			api.logger.WithError(err).Error("Error deleting document")
			fail(c, http.StatusInternalServerError, "Error deleting document")
			return
		}
		ok(c, http.StatusOK, nil, "Document deleted")
	}
}

func (api *API) setReady(kind models.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, found := api.load(c, kind)
		if !found {
			return
		}
		if !guard.CanTransition(roleOf(c), rec.Doc.Status, models.StatusReady) {
			fail(c, http.StatusForbidden, "Transition not allowed for this role")
			return
		}
		var req models.SetReadyRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Signature == "" {
			fail(c, http.StatusBadRequest, "A signature is required to mark the document ready")
			return
		}
		if strings.HasPrefix(req.Signature, "tampered") {
			// Scripted hook for exercising the client's signature taxonomy.
			fail(c, http.StatusBadRequest, "Signature verification failed")
			return
		}
		rec.Doc.Status = models.StatusReady
		rec.Signature = req.Signature
		if err := api.store.Put(c.Request.Context(), rec); err != nil {
			fail(c, http.StatusInternalServerError, "Error updating document")
			return
		}
		ok(c, http.StatusOK, rec.Doc, "Document ready")
	}
}

func (api *API) setDraft(kind models.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, found := api.load(c, kind)
		if !found {
			return
		}
		if !guard.CanTransition(roleOf(c), rec.Doc.Status, models.StatusDraft) {
			fail(c, http.StatusForbidden, "Transition not allowed for this role")
			return
		}
		rec.Doc.Status = models.StatusDraft
		rec.Doc.DGIRejectionReason = ""
		rec.Signature = ""
		if err := api.store.Put(c.Request.Context(), rec); err != nil {
			fail(c, http.StatusInternalServerError, "Error updating document")
			return
		}
		ok(c, http.StatusOK, rec.Doc, "Document back to draft")
	}
}

func (api *API) submit(kind models.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, found := api.load(c, kind)
		if !found {
			return
		}
		if !guard.CanSubmit(roleOf(c), rec.Doc.Status) {
			fail(c, http.StatusForbidden, "Submission requires an admin and a ready document")
			return
		}
		rec.Doc.Status = models.StatusAwaitingClearance
		rec.Doc.DGISubmissionID = uuid.NewString()
		rec.PollsRemaining = api.cfg.PollsBeforeResolve
		rec.Outcome, rec.Errors = scriptOutcome(rec.Doc)

		if err := api.store.Put(c.Request.Context(), rec); err != nil {
			fail(c, http.StatusInternalServerError, "Error updating document")
			return
		}
		api.logger.WithFields(logrus.Fields{
			"document_id":   rec.Doc.ID,
			"submission_id": rec.Doc.DGISubmissionID,
		}).Info("Document submitted for clearance")
		ok(c, http.StatusOK, rec.Doc, "Document submitted")
	}
}

// scriptOutcome decides how the simulated authority will eventually answer.
// Documents whose customer carries no ICE identifier are rejected, everything
// else is validated.
func scriptOutcome(doc models.DocumentPayload) (models.ClearanceState, []models.ClearanceError) {
	if doc.Customer.ICE == "" {
		return models.ClearanceRejected, []models.ClearanceError{
			{ErrorCode: "E1", ErrorMessage: "invalid ICE"},
		}
	}
	return models.ClearanceValidated, nil
}

func (api *API) dataToSign(kind models.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, found := api.load(c, kind)
		if !found {
			return
		}
		if rec.Doc.Status != models.StatusDraft {
			fail(c, http.StatusConflict, "Only drafts have data to sign")
			return
		}
		payload := fmt.Sprintf("%s|%s|%.2f|%s",
			rec.Doc.Number, rec.Doc.Customer.TaxID, rec.Doc.Total, rec.Doc.Date.Format("2006-01-02"))
		ok(c, http.StatusOK, models.DataToSignPayload{DataToSign: payload}, "")
	}
}

func (api *API) clearanceStatus(kind models.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, found := api.load(c, kind)
		if !found {
			return
		}
		if rec.Doc.Status != models.StatusAwaitingClearance {
			fail(c, http.StatusConflict, "Document is not awaiting clearance")
			return
		}

		if rec.PollsRemaining > 0 {
			rec.PollsRemaining--
			if err := api.store.Put(c.Request.Context(), rec); err != nil {
				fail(c, http.StatusInternalServerError, "Error updating document")
				return
			}
			ok(c, http.StatusOK, models.ClearancePayload{Status: models.ClearancePending}, "Still validating")
			return
		}

		payload := models.ClearancePayload{Status: rec.Outcome, Errors: rec.Errors}
		switch rec.Outcome {
		case models.ClearanceValidated:
			rec.Doc.Status = models.StatusValidated
		case models.ClearanceRejected:
			rec.Doc.Status = models.StatusRejected
			rec.Doc.DGIRejectionReason = payload.RejectionReason()
		}
		if err := api.store.Put(c.Request.Context(), rec); err != nil {
			fail(c, http.StatusInternalServerError, "Error updating document")
			return
		}
		ok(c, http.StatusOK, payload, "")
	}
}

func (api *API) export(kind models.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, found := api.load(c, kind)
		if !found {
			return
		}
		format := c.DefaultQuery("format", "pdf")
		if format != "pdf" && format != "json" {
			failFields(c, "Invalid export format", map[string][]string{"format": {"must be 'pdf' or 'json'"}})
			return
		}
		url := fmt.Sprintf("/v1/%s/%d/download?format=%s", collectionPath(kind), rec.Doc.ID, format)
		ok(c, http.StatusOK, models.ExportPayload{URL: url}, "")
	}
}
