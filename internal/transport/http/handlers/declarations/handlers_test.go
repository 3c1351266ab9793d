package declarationshandler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paie/internal/domain/auth"
	"paie/internal/domain/declaration"
	"paie/internal/domain/filing"
	"paie/internal/platform/jobs"
	"paie/internal/transport/http/middleware"
)

type fakeFiling struct {
	drafts      []filing.Request
	declaration declaration.Declaration
	report      declaration.Report
	err         error
	documents   map[declaration.DocumentKind][]byte
	events      []declaration.Event
}

func (f *fakeFiling) Draft(_ context.Context, req filing.Request) (filing.Result, error) {
	f.drafts = append(f.drafts, req)
	return filing.Result{Declaration: f.declaration, Report: f.report}, f.err
}

func (f *fakeFiling) Run(_ context.Context, req filing.Request) (filing.Result, error) {
	return filing.Result{Declaration: f.declaration, Report: f.report}, f.err
}

func (f *fakeFiling) Get(_ context.Context, _, id string) (declaration.Declaration, error) {
	if id != f.declaration.ID {
		return declaration.Declaration{}, declaration.ErrDeclarationNotFound
	}
	return f.declaration, nil
}

func (f *fakeFiling) Validate(_ context.Context, _ string, _ filing.Actor, _ string) (declaration.Declaration, declaration.Report, error) {
	return f.declaration, f.report, f.err
}

func (f *fakeFiling) Transition(_ context.Context, _ string, _ filing.Actor, _ string, event declaration.Event) (declaration.Declaration, error) {
	f.events = append(f.events, event)
	return f.declaration, f.err
}

func (f *fakeFiling) Document(_ context.Context, _, _ string, kind declaration.DocumentKind) ([]byte, error) {
	content, ok := f.documents[kind]
	if !ok {
		return nil, declaration.ErrDocumentNotFound
	}
	return content, nil
}

type fakeJobs struct {
	runs []jobs.RunFunc
	full bool
}

func (j *fakeJobs) Enqueue(_ context.Context, _, _ string, run jobs.RunFunc) (string, error) {
	if j.full {
		return "", jobs.ErrQueueFull
	}
	j.runs = append(j.runs, run)
	return fmt.Sprintf("job-%d", len(j.runs)), nil
}

func (j *fakeJobs) Get(_ context.Context, _, id string) (jobs.Run, error) {
	if id != "job-1" {
		return jobs.Run{}, jobs.ErrRunNotFound
	}
	return jobs.Run{ID: id, JobType: jobs.JobDeclarationRun, Status: jobs.StatusCompleted}, nil
}

type fakeLister struct{}

func (fakeLister) ListByPeriod(_ context.Context, _ string, year, month int) ([]declaration.Summary, error) {
	return []declaration.Summary{{ID: "d-1", Period: fmt.Sprintf("%04d-%02d", year, month), Status: declaration.StatusDraft}}, nil
}

func newRouter(t *testing.T, svc *fakeFiling, queue *fakeJobs, role string) http.Handler {
	t.Helper()
	h := NewHandler(svc, fakeLister{}, queue, nil, auth.StaticPermissions{}, nil)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := middleware.WithUser(req.Context(), auth.UserContext{UserID: "u-1", TenantID: "t-1", RoleName: role})
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	h.RegisterRoutes(r)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string          `json:"code"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func TestDraftPassesCompanyAndProfiles(t *testing.T) {
	svc := &fakeFiling{declaration: declaration.Declaration{ID: "d-1", Status: declaration.StatusDraft}, report: declaration.Report{Valid: true}}
	router := newRouter(t, svc, &fakeJobs{}, auth.RolePayrollOfficer)

	rec := do(t, router, http.MethodPost, "/declarations", `{
		"period": "2024-05",
		"company": {"name": "Atlas", "registrationNumber": "12345678", "taxIdentifier": "001234567000089"},
		"profiles": [{"employeeId": "E001", "baseSalary": "6000"}]
	}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Len(t, svc.drafts, 1)
	req := svc.drafts[0]
	assert.Equal(t, "t-1", req.TenantID)
	assert.Equal(t, "u-1", req.Actor.UserID)
	assert.Equal(t, "2024-05", req.Period.String())
	assert.Equal(t, "12345678", req.Company.RegistrationNumber)
	require.Len(t, req.Profiles, 1)
	assert.Equal(t, "6000", req.Profiles[0].BaseSalary.String())
}

func TestDraftRejectsBadPayload(t *testing.T) {
	router := newRouter(t, &fakeFiling{}, &fakeJobs{}, auth.RolePayrollOfficer)

	rec := do(t, router, http.MethodPost, "/declarations", `{"period": "May 2024"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	env := decode(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, "validation_error", env.Error.Code)
	assert.Contains(t, string(env.Error.Details), `"period"`)

	rec = do(t, router, http.MethodPost, "/declarations", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunQueuesJob(t *testing.T) {
	svc := &fakeFiling{declaration: declaration.Declaration{ID: "d-9", Status: declaration.StatusFrozen}}
	queue := &fakeJobs{}
	router := newRouter(t, svc, queue, auth.RolePayrollAdmin)

	rec := do(t, router, http.MethodPost, "/declarations/run", `{"period":"2024-05"}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	require.Len(t, queue.runs, 1)
	details, err := queue.runs[0](context.Background())
	require.NoError(t, err)
	assert.Equal(t, "d-9", details.(map[string]any)["declarationId"])

	rec = do(t, router, http.MethodGet, "/declarations/jobs/job-1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, router, http.MethodGet, "/declarations/jobs/job-2", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRunRequiresEncodePermissionAndQueueSpace(t *testing.T) {
	router := newRouter(t, &fakeFiling{}, &fakeJobs{}, auth.RolePayrollOfficer)
	rec := do(t, router, http.MethodPost, "/declarations/run", `{"period":"2024-05"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	router = newRouter(t, &fakeFiling{}, &fakeJobs{full: true}, auth.RolePayrollAdmin)
	rec = do(t, router, http.MethodPost, "/declarations/run", `{"period":"2024-05"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestValidateReturnsReportOnFailure(t *testing.T) {
	svc := &fakeFiling{
		declaration: declaration.Declaration{ID: "d-1", Status: declaration.StatusDraft},
		report:      declaration.Report{Valid: false, Errors: []string{"company.taxIdentifier: must be exactly 15 characters"}, Issues: []declaration.Issue{{Field: "company.taxIdentifier", Reason: "must be exactly 15 characters"}}},
		err:         fmt.Errorf("%w: company.taxIdentifier", declaration.ErrNotValid),
	}
	router := newRouter(t, svc, &fakeJobs{}, auth.RolePayrollOfficer)

	rec := do(t, router, http.MethodPost, "/declarations/d-1/validate", "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	env := decode(t, rec)
	assert.Equal(t, "declaration_invalid", env.Error.Code)
	assert.Contains(t, string(env.Error.Details), "company.taxIdentifier")
}

func TestTransitionChecksEventPermissions(t *testing.T) {
	svc := &fakeFiling{declaration: declaration.Declaration{ID: "d-1", Status: declaration.StatusTransmitted}}

	router := newRouter(t, svc, &fakeJobs{}, auth.RolePayrollOfficer)
	rec := do(t, router, http.MethodPost, "/declarations/d-1/transition", `{"event":"transmit"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = do(t, router, http.MethodPost, "/declarations/d-1/transition", `{"event":"reopen"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, router, http.MethodPost, "/declarations/d-1/transition", `{"event":"explode"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	router = newRouter(t, svc, &fakeJobs{}, auth.RolePayrollAdmin)
	rec = do(t, router, http.MethodPost, "/declarations/d-1/transition", `{"event":"transmit"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []declaration.Event{declaration.EventReopen, declaration.EventTransmit}, svc.events)
}

func TestTransitionConflictMapsTo409(t *testing.T) {
	svc := &fakeFiling{err: fmt.Errorf("%w: FROZEN --reopen-->", declaration.ErrInvalidTransition)}
	router := newRouter(t, svc, &fakeJobs{}, auth.RolePayrollAdmin)
	rec := do(t, router, http.MethodPost, "/declarations/d-1/transition", `{"event":"reopen"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDocumentsDownload(t *testing.T) {
	svc := &fakeFiling{documents: map[declaration.DocumentKind][]byte{
		declaration.DocumentBDS:     []byte("B00...\r\n"),
		declaration.DocumentSummary: []byte("%PDF-1.3"),
	}}
	router := newRouter(t, svc, &fakeJobs{}, auth.RoleAuditor)

	rec := do(t, router, http.MethodGet, "/declarations/d-1/bds", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "B00...\r\n", rec.Body.String())
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain"))

	rec = do(t, router, http.MethodGet, "/declarations/d-1/summary.pdf", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "summary_pdf-d-1.pdf")

	rec = do(t, router, http.MethodGet, "/declarations/d-1/csv", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetAndList(t *testing.T) {
	svc := &fakeFiling{declaration: declaration.Declaration{ID: "d-1", Status: declaration.StatusDraft}}
	router := newRouter(t, svc, &fakeJobs{}, auth.RoleAuditor)

	rec := do(t, router, http.MethodGet, "/declarations/d-1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, router, http.MethodGet, "/declarations/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, router, http.MethodGet, "/declarations?period=2024-05", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"2024-05"`)
	rec = do(t, router, http.MethodGet, "/declarations", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
