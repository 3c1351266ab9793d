package filing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"paie/internal/domain/audit"
	"paie/internal/domain/bds"
	"paie/internal/domain/declaration"
	"paie/internal/domain/payroll"
	"paie/internal/domain/rates"
	"paie/internal/platform/crypto"
	"paie/internal/platform/metrics"
)

// Actor identifies who triggered a change, for the audit trail.
type Actor struct {
	UserID    string
	RequestID string
}

// Request describes one period to declare. A zero Company is read from the
// tenant record and nil Profiles from the stored compensation profiles.
type Request struct {
	TenantID string
	Actor    Actor
	Company  declaration.Company
	Period   payroll.Period
	Profiles []payroll.CompensationProfile
}

type Result struct {
	Declaration  declaration.Declaration `json:"declaration"`
	Calculations []payroll.Calculation   `json:"calculations"`
	Report       declaration.Report      `json:"report"`
}

type Service struct {
	Repo    Repository
	Rates   rates.Provider
	Keys    *crypto.Service
	Metrics *metrics.Collector
	Logger  *slog.Logger
	Now     func() time.Time
}

func NewService(repo Repository, provider rates.Provider, keys *crypto.Service, collector *metrics.Collector, logger *slog.Logger) *Service {
	if keys == nil {
		keys, _ = crypto.New("")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		Repo:    repo,
		Rates:   provider,
		Keys:    keys,
		Metrics: collector,
		Logger:  logger,
		Now:     func() time.Time { return time.Now().UTC() },
	}
}

// Draft calculates and assembles a declaration and stores it as DRAFT with
// its calculations. The validation report is returned but does not block
// saving, so the draft can be corrected.
func (s *Service) Draft(ctx context.Context, req Request) (Result, error) {
	var res Result
	err := s.Repo.InTx(ctx, func(repo Repo) error {
		var err error
		res, err = s.prepare(ctx, repo, req)
		if err != nil {
			return err
		}
		res.Report, err = declaration.Validate(&res.Declaration, declaration.WithNow(s.Now()))
		if err != nil {
			return err
		}
		if err := s.saveCalculations(ctx, repo, req, res.Calculations); err != nil {
			return err
		}
		if err := repo.InsertDeclaration(ctx, req.TenantID, res.Declaration); err != nil {
			return err
		}
		return s.audit(ctx, repo, req.TenantID, req.Actor, audit.ActionDeclarationAssembled, res.Declaration.ID, nil, summaryOf(res.Declaration))
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

// Run is the whole period pipeline: calculate, assemble, validate, encode,
// then persist the calculations, the frozen declaration and its documents
// in one transaction. A declaration that fails validation is returned with
// its report and nothing is stored.
func (s *Service) Run(ctx context.Context, req Request) (Result, error) {
	started := time.Now()
	var res Result
	err := s.Repo.InTx(ctx, func(repo Repo) error {
		var err error
		res, err = s.prepare(ctx, repo, req)
		if err != nil {
			return err
		}
		v, report, err := declaration.Certify(res.Declaration, declaration.WithNow(s.Now()))
		res.Report = report
		if err != nil {
			return err
		}
		frozen, docs, err := s.encode(req.TenantID, v)
		if err != nil {
			return err
		}
		res.Declaration = frozen

		if err := s.saveCalculations(ctx, repo, req, res.Calculations); err != nil {
			return err
		}
		if err := repo.InsertDeclaration(ctx, req.TenantID, frozen); err != nil {
			return err
		}
		if err := s.audit(ctx, repo, req.TenantID, req.Actor, audit.ActionDeclarationAssembled, frozen.ID, nil, summaryOf(frozen)); err != nil {
			return err
		}
		return s.saveDocuments(ctx, repo, req.TenantID, req.Actor, docs)
	})
	s.Metrics.DeclarationRun(outcome(err), time.Since(started))
	if err != nil {
		s.Logger.Warn("declaration run failed", "tenant_id", req.TenantID, "period", req.Period.String(), "error", err)
		if errors.Is(err, declaration.ErrNotValid) {
			return Result{Declaration: res.Declaration, Report: res.Report}, err
		}
		return Result{}, err
	}
	s.Logger.Info("declaration encoded",
		"tenant_id", req.TenantID,
		"declaration_id", res.Declaration.ID,
		"period", req.Period.String(),
		"headcount", res.Declaration.Totals.Headcount,
		"excluded", len(res.Declaration.Excluded),
	)
	return res, nil
}

// Validate certifies a stored draft. Failing drafts stay DRAFT and the
// report comes back with an ErrNotValid error.
func (s *Service) Validate(ctx context.Context, tenantID string, actor Actor, id string) (declaration.Declaration, declaration.Report, error) {
	var out declaration.Declaration
	var report declaration.Report
	err := s.Repo.InTx(ctx, func(repo Repo) error {
		d, err := repo.GetDeclaration(ctx, tenantID, id)
		if err != nil {
			return err
		}
		v, r, err := declaration.Certify(d, declaration.WithNow(s.Now()))
		report = r
		if err != nil {
			out = d
			return err
		}
		out = v.Declaration()
		if out.Status == d.Status {
			return nil
		}
		return s.changeStatus(ctx, repo, tenantID, actor, d, out)
	})
	return out, report, err
}

// Encode certifies a stored declaration, renders its documents and freezes
// it. Documents are write-once so a declaration is encoded at most once.
func (s *Service) Encode(ctx context.Context, tenantID string, actor Actor, id string) (declaration.Declaration, error) {
	started := time.Now()
	var out declaration.Declaration
	err := s.Repo.InTx(ctx, func(repo Repo) error {
		d, err := repo.GetDeclaration(ctx, tenantID, id)
		if err != nil {
			return err
		}
		v, _, err := declaration.Certify(d, declaration.WithNow(s.Now()))
		if err != nil {
			return err
		}
		frozen, docs, err := s.encode(tenantID, v)
		if err != nil {
			return err
		}
		if err := s.changeStatus(ctx, repo, tenantID, actor, d, frozen); err != nil {
			return err
		}
		out = frozen
		return s.saveDocuments(ctx, repo, tenantID, actor, docs)
	})
	s.Metrics.DeclarationRun(outcome(err), time.Since(started))
	return out, err
}

// Transition applies a status event to a stored declaration. Validate and
// encode go through their own operations.
func (s *Service) Transition(ctx context.Context, tenantID string, actor Actor, id string, event declaration.Event) (declaration.Declaration, error) {
	switch event {
	case declaration.EventValidate:
		d, _, err := s.Validate(ctx, tenantID, actor, id)
		return d, err
	case declaration.EventEncode:
		return s.Encode(ctx, tenantID, actor, id)
	}
	var out declaration.Declaration
	err := s.Repo.InTx(ctx, func(repo Repo) error {
		d, err := repo.GetDeclaration(ctx, tenantID, id)
		if err != nil {
			return err
		}
		next, err := declaration.Transition(d, event)
		if err != nil {
			return err
		}
		out = next
		return s.changeStatus(ctx, repo, tenantID, actor, d, next)
	})
	return out, err
}

func (s *Service) Get(ctx context.Context, tenantID, id string) (declaration.Declaration, error) {
	return s.Repo.GetDeclaration(ctx, tenantID, id)
}

// Document returns the decrypted content of a generated document after
// checking it against the stored checksum.
func (s *Service) Document(ctx context.Context, tenantID, id string, kind declaration.DocumentKind) ([]byte, error) {
	doc, err := s.Repo.GetDocument(ctx, tenantID, id, kind)
	if err != nil {
		return nil, err
	}
	keys, err := s.Keys.ForTenant(tenantID)
	if err != nil {
		return nil, err
	}
	plain, err := keys.Decrypt(doc.Content)
	if err != nil {
		return nil, fmt.Errorf("decrypt %s document: %w", kind, err)
	}
	if crypto.Checksum(plain) != doc.Checksum {
		return nil, fmt.Errorf("%w: %s of declaration %s", ErrChecksumMismatch, kind, id)
	}
	return plain, nil
}

func (s *Service) prepare(ctx context.Context, repo Repo, req Request) (Result, error) {
	if !req.Period.Valid() {
		return Result{}, fmt.Errorf("%w: %s", ErrInvalidPeriod, req.Period)
	}
	company := req.Company
	if company == (declaration.Company{}) {
		var err error
		if company, err = repo.Company(ctx, req.TenantID); err != nil {
			return Result{}, err
		}
	}
	profiles := req.Profiles
	if profiles == nil {
		var err error
		if profiles, err = repo.ListProfiles(ctx, req.TenantID, req.Period); err != nil {
			return Result{}, err
		}
	}
	if len(profiles) == 0 {
		return Result{}, fmt.Errorf("%w %s", ErrNoProfiles, req.Period)
	}

	table, err := s.Rates.RatesFor(ctx, req.Period.End())
	if err != nil {
		return Result{}, err
	}
	previous, err := repo.LatestCalculationIDs(ctx, req.TenantID, req.Period)
	if err != nil {
		return Result{}, err
	}
	calcs, err := payroll.CalculateAll(ctx, profiles, req.Period, table, payroll.SupersedesFrom(previous), payroll.WithClock(s.Now))
	if err != nil {
		s.Metrics.CalculationFailed()
		return Result{}, err
	}
	s.Metrics.CalculationsSucceeded(len(calcs))

	entries := make([]declaration.Entry, len(profiles))
	for i := range profiles {
		entries[i] = declaration.Entry{Profile: profiles[i], Calculation: calcs[i]}
	}
	d, err := declaration.Assemble(company, req.Period, entries, table,
		declaration.WithLogger(s.Logger),
		declaration.WithClock(s.Now),
	)
	if err != nil {
		return Result{}, err
	}
	s.Metrics.EmployeesExcluded(len(d.Excluded))
	return Result{Declaration: d, Calculations: calcs}, nil
}

// encode renders the BDS file, checks it back, and freezes the declaration.
// The CSV export and PDF summary are rendered from the frozen copy.
func (s *Service) encode(tenantID string, v declaration.Validated) (declaration.Declaration, []declaration.Document, error) {
	text := bds.NewEncoder(bds.WithFilingDate(s.Now())).Encode(v)
	if problems := bds.Verify([]byte(text)); len(problems) > 0 {
		return declaration.Declaration{}, nil, fmt.Errorf("%w: %s", ErrEncodingRejected, problems[0])
	}
	frozen, err := declaration.Freeze(v)
	if err != nil {
		return declaration.Declaration{}, nil, err
	}
	csvText, err := declaration.ExportCSV(frozen)
	if err != nil {
		return declaration.Declaration{}, nil, err
	}
	pdf, err := RenderSummaryPDF(frozen, crypto.Checksum([]byte(text)))
	if err != nil {
		return declaration.Declaration{}, nil, err
	}

	keys, err := s.Keys.ForTenant(tenantID)
	if err != nil {
		return declaration.Declaration{}, nil, err
	}
	plain := []struct {
		kind    declaration.DocumentKind
		content []byte
	}{
		{declaration.DocumentBDS, []byte(text)},
		{declaration.DocumentCSV, []byte(csvText)},
		{declaration.DocumentSummary, pdf},
	}
	docs := make([]declaration.Document, 0, len(plain))
	for _, p := range plain {
		sealed, err := keys.Encrypt(p.content)
		if err != nil {
			return declaration.Declaration{}, nil, fmt.Errorf("encrypt %s document: %w", p.kind, err)
		}
		docs = append(docs, declaration.Document{
			DeclarationID: frozen.ID,
			Kind:          p.kind,
			Content:       sealed,
			Checksum:      crypto.Checksum(p.content),
			KeyVersion:    crypto.KeyVersion,
			CreatedAt:     s.Now(),
		})
	}
	return frozen, docs, nil
}

func (s *Service) saveCalculations(ctx context.Context, repo Repo, req Request, calcs []payroll.Calculation) error {
	for _, calc := range calcs {
		if err := repo.InsertCalculation(ctx, req.TenantID, calc); err != nil {
			return fmt.Errorf("store calculation for %s: %w", calc.EmployeeID, err)
		}
		var before any
		if calc.Supersedes != "" {
			before = map[string]string{"id": calc.Supersedes}
		}
		after := map[string]any{
			"employeeId":   calc.EmployeeID,
			"period":       calc.Period.String(),
			"ratesVersion": calc.RatesVersion,
			"netPay":       calc.NetPay,
			"employerCost": calc.EmployerCost,
		}
		if err := s.auditEntity(ctx, repo, req.TenantID, req.Actor, audit.ActionCalculated, audit.EntityCalculation, calc.ID, before, after); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) saveDocuments(ctx context.Context, repo Repo, tenantID string, actor Actor, docs []declaration.Document) error {
	for _, doc := range docs {
		if err := repo.InsertDocument(ctx, tenantID, doc); err != nil {
			return fmt.Errorf("store %s document: %w", doc.Kind, err)
		}
		if err := s.audit(ctx, repo, tenantID, actor, audit.ActionDocumentGenerated, doc.DeclarationID, nil, doc); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) changeStatus(ctx context.Context, repo Repo, tenantID string, actor Actor, before, after declaration.Declaration) error {
	if err := repo.UpdateDeclarationStatus(ctx, tenantID, after, before.Status); err != nil {
		return err
	}
	return s.audit(ctx, repo, tenantID, actor, audit.ActionDeclarationStatus, after.ID,
		map[string]declaration.Status{"status": before.Status},
		map[string]declaration.Status{"status": after.Status},
	)
}

func (s *Service) audit(ctx context.Context, repo Repo, tenantID string, actor Actor, action, id string, before, after any) error {
	return s.auditEntity(ctx, repo, tenantID, actor, action, audit.EntityDeclaration, id, before, after)
}

func (s *Service) auditEntity(ctx context.Context, repo Repo, tenantID string, actor Actor, action, entityType, id string, before, after any) error {
	evt := audit.Event{
		ActorID:    actor.UserID,
		Action:     action,
		EntityType: entityType,
		EntityID:   id,
		RequestID:  actor.RequestID,
	}
	if err := repo.RecordAudit(ctx, tenantID, evt, before, after); err != nil {
		return fmt.Errorf("audit %s: %w", action, err)
	}
	return nil
}

func summaryOf(d declaration.Declaration) map[string]any {
	return map[string]any{
		"period":       d.Period.String(),
		"status":       d.Status,
		"headcount":    d.Totals.Headcount,
		"grandTotal":   d.Totals.GrandTotal,
		"ratesVersion": d.RatesVersion,
		"excluded":     len(d.Excluded),
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "encoded"
	case errors.Is(err, declaration.ErrNotValid):
		return "invalid"
	default:
		return "error"
	}
}
