package payrollhandler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paie/internal/domain/auth"
	"paie/internal/domain/payroll"
	"paie/internal/domain/rates"
	"paie/internal/transport/http/middleware"
)

type memProfiles struct {
	stored map[string]payroll.CompensationProfile
}

func (m *memProfiles) UpsertProfile(_ context.Context, tenantID string, period payroll.Period, p payroll.CompensationProfile) error {
	m.stored[tenantID+"/"+period.String()+"/"+p.EmployeeID] = p
	return nil
}

func newRouter(t *testing.T, profiles ProfileWriter) http.Handler {
	t.Helper()
	schedule, err := rates.Default()
	require.NoError(t, err)
	h := NewHandler(rates.StaticProvider{Schedule: schedule}, profiles, nil, auth.StaticPermissions{})
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := middleware.WithUser(req.Context(), auth.UserContext{UserID: "u-1", TenantID: "t-1", RoleName: auth.RolePayrollOfficer})
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	h.RegisterRoutes(r)
	return r
}

func send(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

const referenceProfile = `{
	"employeeId": "E001",
	"firstName": "Salma",
	"lastName": "El Idrissi",
	"nationalId": "AB12345",
	"socialSecurityNumber": "100000001",
	"baseSalary": "6000",
	"hireDate": "2023-09-01T00:00:00Z",
	"contractType": "permanent",
	"maritalStatus": "single",
	"dependentChildren": 0
}`

func TestCalculateReturnsItemisedPayslip(t *testing.T) {
	router := newRouter(t, &memProfiles{stored: map[string]payroll.CompensationProfile{}})

	rec := send(router, http.MethodPost, "/payroll/calculate", `{"period":"2024-05","profile":`+referenceProfile+`}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var env struct {
		Data payroll.Calculation `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, "E001", env.Data.EmployeeID)
	assert.Equal(t, "2024-05", env.Data.Period.String())
	assert.True(t, env.Data.NetPay.IsPositive())
	assert.True(t, env.Data.EmployerCost.GreaterThan(env.Data.TotalGross))
}

func TestCalculateReportsRejectedFields(t *testing.T) {
	router := newRouter(t, &memProfiles{stored: map[string]payroll.CompensationProfile{}})

	rec := send(router, http.MethodPost, "/payroll/calculate", `{"period":"2024-05","profile":{"employeeId":"E1","baseSalary":"-1","contractType":"permanent","maritalStatus":"single"}}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	body := rec.Body.String()
	assert.Contains(t, body, `"baseSalary"`)
	assert.Contains(t, body, `"dependentChildren"`)
	assert.Contains(t, body, `"hireDate"`)

	rec = send(router, http.MethodPost, "/payroll/calculate", `{"period":"2024-5","profile":{}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStoreProfiles(t *testing.T) {
	profiles := &memProfiles{stored: map[string]payroll.CompensationProfile{}}
	router := newRouter(t, profiles)

	rec := send(router, http.MethodPut, "/payroll/profiles", `{"period":"2024-05","profiles":[`+referenceProfile+`]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	_, ok := profiles.stored["t-1/2024-05/E001"]
	assert.True(t, ok)

	rec = send(router, http.MethodPut, "/payroll/profiles", `{"period":"2024-05","profiles":[{"baseSalary":"1"}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "profiles[0].employeeId")
}

func TestRatesEndpoint(t *testing.T) {
	router := newRouter(t, &memProfiles{stored: map[string]payroll.CompensationProfile{}})

	rec := send(router, http.MethodGet, "/payroll/rates?period=2024-05", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"version"`)

	rec = send(router, http.MethodGet, "/payroll/rates?period=1990-01", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCalculateWithInlineRates(t *testing.T) {
	router := newRouter(t, &memProfiles{stored: map[string]payroll.CompensationProfile{}})

	schedule, err := rates.Default()
	require.NoError(t, err)
	table, err := schedule.For(payroll.NewPeriod(2024, 5).End())
	require.NoError(t, err)
	table.Version = "preview"
	raw, err := json.Marshal(table)
	require.NoError(t, err)

	rec := send(router, http.MethodPost, "/payroll/calculate", `{"period":"2024-05","profile":`+referenceProfile+`,"rates":`+string(raw)+`}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var env struct {
		Data payroll.Calculation `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, "preview", env.Data.RatesVersion)

	rec = send(router, http.MethodPost, "/payroll/calculate", `{"period":"2024-05","profile":`+referenceProfile+`,"rates":{"version":""}}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "rates.version")
}
