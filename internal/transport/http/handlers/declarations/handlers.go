package declarationshandler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"paie/internal/domain/auth"
	"paie/internal/domain/declaration"
	"paie/internal/domain/filing"
	"paie/internal/domain/payroll"
	"paie/internal/platform/jobs"
	"paie/internal/transport/http/api"
	payrollhandler "paie/internal/transport/http/handlers/payroll"
	"paie/internal/transport/http/middleware"
	"paie/internal/transport/http/shared"
)

// Filing is the pipeline the handlers drive.
type Filing interface {
	Draft(ctx context.Context, req filing.Request) (filing.Result, error)
	Run(ctx context.Context, req filing.Request) (filing.Result, error)
	Get(ctx context.Context, tenantID, id string) (declaration.Declaration, error)
	Validate(ctx context.Context, tenantID string, actor filing.Actor, id string) (declaration.Declaration, declaration.Report, error)
	Transition(ctx context.Context, tenantID string, actor filing.Actor, id string, event declaration.Event) (declaration.Declaration, error)
	Document(ctx context.Context, tenantID, id string, kind declaration.DocumentKind) ([]byte, error)
}

type Lister interface {
	ListByPeriod(ctx context.Context, tenantID string, year, month int) ([]declaration.Summary, error)
}

type Jobs interface {
	Enqueue(ctx context.Context, jobType, tenantID string, run jobs.RunFunc) (string, error)
	Get(ctx context.Context, tenantID, id string) (jobs.Run, error)
}

type Handler struct {
	Filing      Filing
	List        Lister
	Jobs        Jobs
	Idempotency middleware.IdempotencyKeys
	Perms       middleware.PermissionStore
	Logger      *slog.Logger
}

func NewHandler(svc Filing, list Lister, queue Jobs, keys middleware.IdempotencyKeys, perms middleware.PermissionStore, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{Filing: svc, List: list, Jobs: queue, Idempotency: keys, Perms: perms, Logger: logger}
}

type companyPayload struct {
	Name               string `json:"name" validate:"required"`
	RegistrationNumber string `json:"registrationNumber" validate:"required"`
	TaxIdentifier      string `json:"taxIdentifier" validate:"required"`
}

type draftRequest struct {
	Period   string                        `json:"period" validate:"required,month"`
	Company  *companyPayload               `json:"company,omitempty"`
	Profiles []payroll.CompensationProfile `json:"profiles,omitempty"`
}

type runRequest struct {
	Period string `json:"period" validate:"required,month"`
}

type transitionRequest struct {
	Event string `json:"event" validate:"required,oneof=validate reopen encode transmit reject"`
}

type draftResponse struct {
	Declaration  declaration.Declaration `json:"declaration"`
	Report       declaration.Report      `json:"report"`
	Calculations int                     `json:"calculations"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	idempotent := middleware.Idempotent(h.Idempotency)
	r.Route("/declarations", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermDeclarationsRead, h.Perms)).Get("/", h.handleList)
		r.With(middleware.RequirePermission(auth.PermDeclarationsWrite, h.Perms), idempotent).Post("/", h.handleDraft)
		r.With(middleware.RequirePermission(auth.PermDeclarationsEncode, h.Perms), idempotent).Post("/run", h.handleRun)
		r.With(middleware.RequirePermission(auth.PermDeclarationsRead, h.Perms)).Get("/jobs/{jobID}", h.handleJob)
		r.With(middleware.RequirePermission(auth.PermDeclarationsRead, h.Perms)).Get("/{declarationID}", h.handleGet)
		r.With(middleware.RequirePermission(auth.PermDeclarationsWrite, h.Perms)).Post("/{declarationID}/validate", h.handleValidate)
		r.With(middleware.RequirePermission(auth.PermDeclarationsWrite, h.Perms)).Post("/{declarationID}/transition", h.handleTransition)
		r.With(middleware.RequirePermission(auth.PermDocumentsDownload, h.Perms)).Get("/{declarationID}/bds", h.documentHandler(declaration.DocumentBDS))
		r.With(middleware.RequirePermission(auth.PermDocumentsDownload, h.Perms)).Get("/{declarationID}/csv", h.documentHandler(declaration.DocumentCSV))
		r.With(middleware.RequirePermission(auth.PermDocumentsDownload, h.Perms)).Get("/{declarationID}/summary.pdf", h.documentHandler(declaration.DocumentSummary))
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	reqID := middleware.GetRequestID(r.Context())
	year, month, err := shared.ParseMonth(r.URL.Query().Get("period"))
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_period", "period query parameter must be YYYY-MM", reqID)
		return
	}
	items, err := h.List.ListByPeriod(r.Context(), user.TenantID, year, int(month))
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "declaration_list_failed", "failed to list declarations", reqID)
		return
	}
	if items == nil {
		items = []declaration.Summary{}
	}
	api.Success(w, items, reqID)
}

func (h *Handler) handleDraft(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	reqID := middleware.GetRequestID(r.Context())
	var payload draftRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_json", "invalid JSON body", reqID)
		return
	}
	v := shared.NewValidator()
	v.Struct(payload)
	if v.Reject(w, reqID) {
		return
	}
	year, month, _ := shared.ParseMonth(payload.Period)

	req := filing.Request{
		TenantID: user.TenantID,
		Actor:    actorFrom(r),
		Period:   payroll.NewPeriod(year, month),
		Profiles: payload.Profiles,
	}
	if payload.Company != nil {
		req.Company = declaration.Company{
			Name:               payload.Company.Name,
			RegistrationNumber: payload.Company.RegistrationNumber,
			TaxIdentifier:      payload.Company.TaxIdentifier,
		}
	}
	res, err := h.Filing.Draft(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	api.Created(w, draftResponse{Declaration: res.Declaration, Report: res.Report, Calculations: len(res.Calculations)}, reqID)
}

// handleRun queues the full pipeline for the tenant's stored profiles.
func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	reqID := middleware.GetRequestID(r.Context())
	var payload runRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_json", "invalid JSON body", reqID)
		return
	}
	v := shared.NewValidator()
	v.Struct(payload)
	if v.Reject(w, reqID) {
		return
	}
	year, month, _ := shared.ParseMonth(payload.Period)
	req := filing.Request{
		TenantID: user.TenantID,
		Actor:    actorFrom(r),
		Period:   payroll.NewPeriod(year, month),
	}

	jobID, err := h.Jobs.Enqueue(r.Context(), jobs.JobDeclarationRun, user.TenantID, func(ctx context.Context) (any, error) {
		res, err := h.Filing.Run(ctx, req)
		if err != nil {
			if errors.Is(err, declaration.ErrNotValid) {
				return map[string]any{"report": res.Report}, err
			}
			return nil, err
		}
		return map[string]any{
			"declarationId": res.Declaration.ID,
			"status":        res.Declaration.Status,
			"headcount":     res.Declaration.Totals.Headcount,
			"grandTotal":    res.Declaration.Totals.GrandTotal,
		}, nil
	})
	if errors.Is(err, jobs.ErrQueueFull) {
		api.Fail(w, http.StatusServiceUnavailable, "queue_full", "declaration queue is full, retry later", reqID)
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "job_enqueue_failed", "failed to queue declaration run", reqID)
		return
	}
	api.Accepted(w, map[string]string{"jobId": jobID, "status": jobs.StatusQueued}, reqID)
}

func (h *Handler) handleJob(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	reqID := middleware.GetRequestID(r.Context())
	run, err := h.Jobs.Get(r.Context(), user.TenantID, chi.URLParam(r, "jobID"))
	if errors.Is(err, jobs.ErrRunNotFound) {
		api.Fail(w, http.StatusNotFound, "not_found", "job not found", reqID)
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "job_lookup_failed", "failed to load job", reqID)
		return
	}
	api.Success(w, run, reqID)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	d, err := h.Filing.Get(r.Context(), user.TenantID, chi.URLParam(r, "declarationID"))
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	api.Success(w, d, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	d, report, err := h.Filing.Validate(r.Context(), user.TenantID, actorFrom(r), chi.URLParam(r, "declarationID"))
	if err != nil {
		h.writeError(w, r, err, &report)
		return
	}
	api.Success(w, map[string]any{"declaration": d, "report": report}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	reqID := middleware.GetRequestID(r.Context())
	var payload transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_json", "invalid JSON body", reqID)
		return
	}
	v := shared.NewValidator()
	v.Struct(payload)
	if v.Reject(w, reqID) {
		return
	}
	event := declaration.Event(payload.Event)
	if event == declaration.EventEncode || event == declaration.EventTransmit || event == declaration.EventReject {
		if !middleware.Authorize(w, r, h.Perms, permissionFor(event)) {
			return
		}
	}

	d, err := h.Filing.Transition(r.Context(), user.TenantID, actorFrom(r), chi.URLParam(r, "declarationID"), event)
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	api.Success(w, d, reqID)
}

func (h *Handler) documentHandler(kind declaration.DocumentKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _ := middleware.GetUser(r.Context())
		id := chi.URLParam(r, "declarationID")
		content, err := h.Filing.Document(r.Context(), user.TenantID, id, kind)
		if err != nil {
			h.writeError(w, r, err, nil)
			return
		}
		contentType, ext := "text/plain; charset=us-ascii", "txt"
		switch kind {
		case declaration.DocumentCSV:
			contentType, ext = "text/csv", "csv"
		case declaration.DocumentSummary:
			contentType, ext = "application/pdf", "pdf"
		}
		api.Attachment(w, contentType, fmt.Sprintf("%s-%s.%s", kind, id, ext))
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(content); err != nil {
			h.Logger.Warn("document write failed", "declaration_id", id, "kind", kind, "error", err)
		}
	}
}

// writeError maps domain errors onto the response envelope.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error, report *declaration.Report) {
	reqID := middleware.GetRequestID(r.Context())
	var entryErr *declaration.EntryError
	switch {
	case errors.Is(err, declaration.ErrDeclarationNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "declaration not found", reqID)
	case errors.Is(err, declaration.ErrDocumentNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "document not generated yet", reqID)
	case errors.Is(err, filing.ErrCompanyNotFound):
		api.Fail(w, http.StatusNotFound, "company_not_found", "tenant has no employer registration", reqID)
	case errors.Is(err, filing.ErrNoProfiles):
		api.Fail(w, http.StatusUnprocessableEntity, "no_profiles", err.Error(), reqID)
	case errors.Is(err, filing.ErrInvalidPeriod):
		api.Fail(w, http.StatusBadRequest, "invalid_period", err.Error(), reqID)
	case errors.Is(err, declaration.ErrInvalidTransition), errors.Is(err, declaration.ErrDocumentExists):
		api.Fail(w, http.StatusConflict, "invalid_state", err.Error(), reqID)
	case errors.Is(err, declaration.ErrNotValid):
		var details any
		if report != nil {
			details = report
		}
		api.FailWithDetails(w, http.StatusUnprocessableEntity, "declaration_invalid", err.Error(), details, reqID)
	case errors.As(err, &entryErr):
		api.Fail(w, http.StatusUnprocessableEntity, "entry_rejected", err.Error(), reqID)
	case len(payroll.FieldErrors(err)) > 0:
		payrollhandler.WriteCalculationError(w, err, reqID)
	default:
		h.Logger.Error("declaration request failed", "path", r.URL.Path, "request_id", reqID, "error", err)
		api.Fail(w, http.StatusInternalServerError, "internal_error", "declaration request failed", reqID)
	}
}

func actorFrom(r *http.Request) filing.Actor {
	user, _ := middleware.GetUser(r.Context())
	return filing.Actor{UserID: user.UserID, RequestID: middleware.GetRequestID(r.Context())}
}

func permissionFor(event declaration.Event) string {
	if event == declaration.EventEncode {
		return auth.PermDeclarationsEncode
	}
	return auth.PermDeclarationsSubmit
}
