package filing

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"paie/internal/domain/audit"
	"paie/internal/domain/bds"
	"paie/internal/domain/declaration"
	"paie/internal/domain/payroll"
	"paie/internal/domain/rates"
	"paie/internal/platform/crypto"
)

const tenant = "9b6f1a52-7c1e-4a8e-9d0b-2f4f0b8f2c11"

var (
	period = payroll.NewPeriod(2024, time.May)
	now    = time.Date(2024, time.June, 5, 9, 0, 0, 0, time.UTC)
	actor  = Actor{UserID: "u-1", RequestID: "req-1"}
)

func company() declaration.Company {
	return declaration.Company{Name: "Société Atlas", RegistrationNumber: "12345678", TaxIdentifier: "001234567000089"}
}

func profile(id, ssn, base string, contract payroll.ContractType) payroll.CompensationProfile {
	children := 1
	return payroll.CompensationProfile{
		EmployeeID:           id,
		FirstName:            "Youssef",
		LastName:             "Benali",
		NationalID:           "BE45821",
		SocialSecurityNumber: ssn,
		BaseSalary:           decimal.RequireFromString(base),
		HireDate:             time.Date(2021, time.March, 1, 0, 0, 0, 0, time.UTC),
		ContractType:         contract,
		MaritalStatus:        payroll.MaritalMarried,
		DependentChildren:    &children,
	}
}

func staffed() []payroll.CompensationProfile {
	return []payroll.CompensationProfile{
		profile("E002", "200000002", "9000", payroll.ContractPermanent),
		profile("E001", "100000001", "6000", payroll.ContractFixedTerm),
		profile("F001", "", "4000", payroll.ContractFreelance),
	}
}

func newTestService(t *testing.T, repo *memRepo) *Service {
	t.Helper()
	schedule, err := rates.Default()
	if err != nil {
		t.Fatalf("default rates: %v", err)
	}
	keys, err := crypto.New("0123456789abcdef0123456789abcdef")
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	svc := NewService(repo, rates.StaticProvider{Schedule: schedule}, keys, nil, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	svc.Now = func() time.Time { return now }
	return svc
}

func request(profiles []payroll.CompensationProfile) Request {
	return Request{TenantID: tenant, Actor: actor, Company: company(), Period: period, Profiles: profiles}
}

func TestRunEncodesAndStoresEverything(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(t, repo)

	res, err := svc.Run(context.Background(), request(staffed()))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	d := res.Declaration
	if d.Status != declaration.StatusFrozen {
		t.Fatalf("expected FROZEN, got %s", d.Status)
	}
	if d.Totals.Headcount != 2 || len(d.Excluded) != 1 || d.Excluded[0].EmployeeID != "F001" {
		t.Fatalf("expected 2 lines and F001 excluded, got %d lines, excluded %+v", d.Totals.Headcount, d.Excluded)
	}
	if len(res.Calculations) != 3 || len(repo.state.calculations) != 3 {
		t.Fatalf("expected 3 stored calculations, got %d/%d", len(res.Calculations), len(repo.state.calculations))
	}
	if stored, err := repo.GetDeclaration(context.Background(), tenant, d.ID); err != nil || stored.Status != declaration.StatusFrozen {
		t.Fatalf("expected frozen declaration stored, got %v %v", stored.Status, err)
	}
	if len(repo.state.documents) != 3 {
		t.Fatalf("expected 3 documents, got %d", len(repo.state.documents))
	}
	if repo.countEvents(audit.ActionCalculated) != 3 || repo.countEvents(audit.ActionDocumentGenerated) != 3 {
		t.Fatalf("unexpected audit trail: %+v", repo.state.events)
	}
}

func TestRunDocumentsDecryptAndMatchDeclaration(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(t, repo)
	res, err := svc.Run(context.Background(), request(staffed()))
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	raw := repo.state.documents[res.Declaration.ID+"/"+string(declaration.DocumentBDS)]
	if bytes.HasPrefix(raw.Content, []byte(bds.TagHeader)) {
		t.Fatalf("expected stored BDS to be encrypted")
	}

	text, err := svc.Document(context.Background(), tenant, res.Declaration.ID, declaration.DocumentBDS)
	if err != nil {
		t.Fatalf("document: %v", err)
	}
	if problems := bds.Verify(text); len(problems) > 0 {
		t.Fatalf("stored BDS does not verify: %v", problems)
	}
	records, err := bds.Read(bytes.NewReader(text))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(records) != 2+4 {
		t.Fatalf("expected 6 records, got %d", len(records))
	}

	csvText, err := svc.Document(context.Background(), tenant, res.Declaration.ID, declaration.DocumentCSV)
	if err != nil {
		t.Fatalf("csv: %v", err)
	}
	if !strings.Contains(string(csvText), "TOTALS") {
		t.Fatalf("expected totals row in csv")
	}

	pdf, err := svc.Document(context.Background(), tenant, res.Declaration.ID, declaration.DocumentSummary)
	if err != nil {
		t.Fatalf("pdf: %v", err)
	}
	if !bytes.HasPrefix(pdf, []byte("%PDF-")) {
		t.Fatalf("expected pdf header")
	}
}

func TestRunInvalidDeclarationStoresNothing(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(t, repo)
	req := request(staffed())
	req.Company.RegistrationNumber = "123"

	res, err := svc.Run(context.Background(), req)
	if !errors.Is(err, declaration.ErrNotValid) {
		t.Fatalf("expected ErrNotValid, got %v", err)
	}
	if res.Report.Valid || !res.Report.Has("company.registrationNumber") {
		t.Fatalf("expected registration issue in report, got %+v", res.Report)
	}
	if res.Declaration.Status != declaration.StatusDraft {
		t.Fatalf("expected draft in result, got %s", res.Declaration.Status)
	}
	if len(repo.state.calculations) != 0 || len(repo.state.declarations) != 0 || len(repo.state.events) != 0 {
		t.Fatalf("expected nothing stored")
	}
}

func TestRunRollsBackWhenDocumentsCannotBeStored(t *testing.T) {
	repo := newMemRepo()
	repo.failDocuments = true
	svc := newTestService(t, repo)

	if _, err := svc.Run(context.Background(), request(staffed())); err == nil {
		t.Fatalf("expected error")
	}
	if len(repo.state.calculations) != 0 || len(repo.state.declarations) != 0 {
		t.Fatalf("expected rollback, got %d calculations and %d declarations", len(repo.state.calculations), len(repo.state.declarations))
	}
}

func TestRunReportsCalculationErrors(t *testing.T) {
	svc := newTestService(t, newMemRepo())
	bad := profile("E003", "300000003", "-5", payroll.ContractPermanent)

	_, err := svc.Run(context.Background(), request([]payroll.CompensationProfile{bad}))
	fields := payroll.FieldErrors(err)
	if len(fields) == 0 || fields[0].Field != "baseSalary" {
		t.Fatalf("expected baseSalary error, got %v", err)
	}
}

func TestRunUsesStoredProfilesAndTenantCompany(t *testing.T) {
	repo := newMemRepo()
	repo.state.companies[tenant] = company()
	repo.state.profiles[profileKey(tenant, period)] = staffed()
	svc := newTestService(t, repo)

	res, err := svc.Run(context.Background(), Request{TenantID: tenant, Actor: actor, Period: period})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Declaration.Company.RegistrationNumber != "12345678" || res.Declaration.Totals.Headcount != 2 {
		t.Fatalf("unexpected declaration: %+v", res.Declaration.Company)
	}
}

func TestRunWithoutProfilesFails(t *testing.T) {
	repo := newMemRepo()
	repo.state.companies[tenant] = company()
	svc := newTestService(t, repo)

	_, err := svc.Run(context.Background(), Request{TenantID: tenant, Period: period})
	if !errors.Is(err, ErrNoProfiles) {
		t.Fatalf("expected ErrNoProfiles, got %v", err)
	}
	_, err = svc.Run(context.Background(), Request{TenantID: "unknown", Period: period})
	if !errors.Is(err, ErrCompanyNotFound) {
		t.Fatalf("expected ErrCompanyNotFound, got %v", err)
	}
	_, err = svc.Run(context.Background(), Request{TenantID: tenant, Company: company(), Period: payroll.Period{Year: 2024, Month: 13}})
	if !errors.Is(err, ErrInvalidPeriod) {
		t.Fatalf("expected ErrInvalidPeriod, got %v", err)
	}
}

func TestDraftValidateEncodeLifecycle(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(t, repo)
	ctx := context.Background()

	draft, err := svc.Draft(ctx, request(staffed()))
	if err != nil {
		t.Fatalf("draft: %v", err)
	}
	if draft.Declaration.Status != declaration.StatusDraft || !draft.Report.Valid {
		t.Fatalf("expected valid draft, got %s %+v", draft.Declaration.Status, draft.Report)
	}
	id := draft.Declaration.ID

	validated, report, err := svc.Validate(ctx, tenant, actor, id)
	if err != nil || !report.Valid {
		t.Fatalf("validate: %v %+v", err, report)
	}
	if validated.Status != declaration.StatusValidated {
		t.Fatalf("expected VALIDATED, got %s", validated.Status)
	}

	frozen, err := svc.Encode(ctx, tenant, actor, id)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if frozen.Status != declaration.StatusFrozen {
		t.Fatalf("expected FROZEN, got %s", frozen.Status)
	}
	if _, err := svc.Encode(ctx, tenant, actor, id); !errors.Is(err, declaration.ErrInvalidTransition) {
		t.Fatalf("expected second encode to fail with ErrInvalidTransition, got %v", err)
	}
	if repo.countEvents(audit.ActionDeclarationStatus) != 2 {
		t.Fatalf("expected 2 status events, got %d", repo.countEvents(audit.ActionDeclarationStatus))
	}
}

func TestDraftKeepsInvalidDeclarationForCorrection(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(t, repo)
	req := request(staffed())
	req.Company.TaxIdentifier = "short"

	draft, err := svc.Draft(context.Background(), req)
	if err != nil {
		t.Fatalf("draft: %v", err)
	}
	if draft.Report.Valid || !draft.Report.Has("company.taxIdentifier") {
		t.Fatalf("expected tax identifier issue, got %+v", draft.Report)
	}

	d, report, err := svc.Validate(context.Background(), tenant, actor, draft.Declaration.ID)
	if !errors.Is(err, declaration.ErrNotValid) || report.Valid {
		t.Fatalf("expected ErrNotValid, got %v", err)
	}
	if d.Status != declaration.StatusDraft {
		t.Fatalf("expected declaration to stay DRAFT, got %s", d.Status)
	}
	if _, err := svc.Encode(context.Background(), tenant, actor, draft.Declaration.ID); !errors.Is(err, declaration.ErrNotValid) {
		t.Fatalf("expected encode to refuse invalid draft, got %v", err)
	}
}

func TestRecalculationSupersedesStoredCalculations(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(t, repo)

	first, err := svc.Draft(context.Background(), request(staffed()))
	if err != nil {
		t.Fatalf("first draft: %v", err)
	}
	second, err := svc.Draft(context.Background(), request(staffed()))
	if err != nil {
		t.Fatalf("second draft: %v", err)
	}
	for i, calc := range second.Calculations {
		if calc.Supersedes != first.Calculations[i].ID {
			t.Fatalf("%s: expected to supersede %s, got %q", calc.EmployeeID, first.Calculations[i].ID, calc.Supersedes)
		}
	}
	if len(repo.state.calculations) != 6 {
		t.Fatalf("expected history to keep 6 calculations, got %d", len(repo.state.calculations))
	}
}

func TestTransitionTransmitAndReject(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(t, repo)
	ctx := context.Background()

	res, err := svc.Run(ctx, request(staffed()))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	id := res.Declaration.ID

	if _, err := svc.Transition(ctx, tenant, actor, id, declaration.EventReopen); !errors.Is(err, declaration.ErrInvalidTransition) {
		t.Fatalf("expected frozen declaration not to reopen, got %v", err)
	}
	sent, err := svc.Transition(ctx, tenant, actor, id, declaration.EventTransmit)
	if err != nil || sent.Status != declaration.StatusTransmitted {
		t.Fatalf("transmit: %v %s", err, sent.Status)
	}
	back, err := svc.Transition(ctx, tenant, actor, id, declaration.EventReject)
	if err != nil || back.Status != declaration.StatusDraft {
		t.Fatalf("reject: %v %s", err, back.Status)
	}
	if _, err := svc.Transition(ctx, tenant, actor, "missing", declaration.EventTransmit); !errors.Is(err, declaration.ErrDeclarationNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDocumentDetectsTampering(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(t, repo)
	res, err := svc.Run(context.Background(), request(staffed()))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	key := res.Declaration.ID + "/" + string(declaration.DocumentCSV)
	doc := repo.state.documents[key]
	doc.Checksum = crypto.Checksum([]byte("something else"))
	repo.state.documents[key] = doc

	if _, err := svc.Document(context.Background(), tenant, res.Declaration.ID, declaration.DocumentCSV); !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("expected ErrChecksumMismatch, got %v", err)
	}
	if _, err := svc.Document(context.Background(), tenant, "missing", declaration.DocumentCSV); !errors.Is(err, declaration.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
}
