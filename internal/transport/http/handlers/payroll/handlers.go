package payrollhandler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"paie/internal/domain/auth"
	"paie/internal/domain/payroll"
	"paie/internal/domain/rates"
	"paie/internal/platform/metrics"
	"paie/internal/transport/http/api"
	"paie/internal/transport/http/middleware"
	"paie/internal/transport/http/shared"
)

// ProfileWriter stores the compensation profiles a period run reads.
type ProfileWriter interface {
	UpsertProfile(ctx context.Context, tenantID string, period payroll.Period, profile payroll.CompensationProfile) error
}

type Handler struct {
	Rates    rates.Provider
	Profiles ProfileWriter
	Metrics  *metrics.Collector
	Perms    middleware.PermissionStore
}

func NewHandler(provider rates.Provider, profiles ProfileWriter, collector *metrics.Collector, perms middleware.PermissionStore) *Handler {
	return &Handler{Rates: provider, Profiles: profiles, Metrics: collector, Perms: perms}
}

// calculateRequest may carry its own rate table, e.g. to preview a
// statutory change before it is published in the schedule.
type calculateRequest struct {
	Period  string                      `json:"period" validate:"required,month"`
	Profile payroll.CompensationProfile `json:"profile"`
	Rates   *rates.Table                `json:"rates,omitempty"`
}

type profilesRequest struct {
	Period   string                        `json:"period" validate:"required,month"`
	Profiles []payroll.CompensationProfile `json:"profiles" validate:"min=1"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/payroll", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermPayrollCalculate, h.Perms)).Post("/calculate", h.handleCalculate)
		r.With(middleware.RequirePermission(auth.PermDeclarationsWrite, h.Perms)).Put("/profiles", h.handleStoreProfiles)
		r.With(middleware.RequirePermission(auth.PermPayrollCalculate, h.Perms)).Get("/rates", h.handleRates)
	})
}

func (h *Handler) handleCalculate(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	var payload calculateRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_json", "invalid JSON body", reqID)
		return
	}
	v := shared.NewValidator()
	v.Struct(payload)
	if v.Reject(w, reqID) {
		return
	}
	period, _ := parsePeriod(payload.Period)

	var table rates.Table
	if payload.Rates != nil {
		table = *payload.Rates
	} else {
		var err error
		if table, err = h.Rates.RatesFor(r.Context(), period.End()); err != nil {
			api.Fail(w, http.StatusUnprocessableEntity, "rates_unavailable", err.Error(), reqID)
			return
		}
	}
	calc, err := payroll.Calculate(payload.Profile, period, table)
	if err != nil {
		h.Metrics.CalculationFailed()
		WriteCalculationError(w, err, reqID)
		return
	}
	h.Metrics.CalculationsSucceeded(1)
	api.Success(w, calc, reqID)
}

func (h *Handler) handleStoreProfiles(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	reqID := middleware.GetRequestID(r.Context())
	var payload profilesRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_json", "invalid JSON body", reqID)
		return
	}
	v := shared.NewValidator()
	v.Struct(payload)
	for i, p := range payload.Profiles {
		if p.EmployeeID == "" {
			v.Add(indexed("profiles", i, "employeeId"), "is required")
		}
	}
	if v.Reject(w, reqID) {
		return
	}
	period, _ := parsePeriod(payload.Period)

	for _, p := range payload.Profiles {
		if err := h.Profiles.UpsertProfile(r.Context(), user.TenantID, period, p); err != nil {
			api.Fail(w, http.StatusInternalServerError, "profile_store_failed", "failed to store compensation profiles", reqID)
			return
		}
	}
	api.Success(w, map[string]any{"period": period.String(), "stored": len(payload.Profiles)}, reqID)
}

func (h *Handler) handleRates(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	asOf := time.Now().UTC()
	if raw := r.URL.Query().Get("period"); raw != "" {
		period, err := parsePeriod(raw)
		if err != nil {
			api.Fail(w, http.StatusBadRequest, "invalid_period", "period must be YYYY-MM", reqID)
			return
		}
		asOf = period.End()
	}
	table, err := h.Rates.RatesFor(r.Context(), asOf)
	if errors.Is(err, rates.ErrNoRatesEffective) {
		api.Fail(w, http.StatusNotFound, "rates_not_found", err.Error(), reqID)
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "rates_failed", "failed to load rate table", reqID)
		return
	}
	api.Success(w, table, reqID)
}

// WriteCalculationError reports every rejected input field.
func WriteCalculationError(w http.ResponseWriter, err error, reqID string) {
	fields := payroll.FieldErrors(err)
	if len(fields) == 0 {
		api.Fail(w, http.StatusInternalServerError, "calculation_failed", "payroll calculation failed", reqID)
		return
	}
	issues := make([]shared.ValidationIssue, 0, len(fields))
	for _, f := range fields {
		issues = append(issues, shared.ValidationIssue{Field: f.Field, Reason: f.Reason})
	}
	api.FailWithDetails(w, http.StatusUnprocessableEntity, "calculation_rejected", err.Error(), map[string]any{"fields": issues}, reqID)
}

func parsePeriod(raw string) (payroll.Period, error) {
	year, month, err := shared.ParseMonth(raw)
	if err != nil {
		return payroll.Period{}, err
	}
	return payroll.NewPeriod(year, month), nil
}

func indexed(list string, i int, field string) string {
	return list + "[" + strconv.Itoa(i) + "]." + field
}
