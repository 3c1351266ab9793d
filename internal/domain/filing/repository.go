package filing

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"paie/internal/domain/audit"
	"paie/internal/domain/declaration"
	"paie/internal/domain/payroll"
	"paie/internal/platform/db"
	"paie/internal/platform/querier"
)

// Repo is the persistence the pipeline reads from and writes to.
type Repo interface {
	Company(ctx context.Context, tenantID string) (declaration.Company, error)
	ListProfiles(ctx context.Context, tenantID string, period payroll.Period) ([]payroll.CompensationProfile, error)
	LatestCalculationIDs(ctx context.Context, tenantID string, period payroll.Period) (map[string]string, error)
	InsertCalculation(ctx context.Context, tenantID string, calc payroll.Calculation) error
	InsertDeclaration(ctx context.Context, tenantID string, d declaration.Declaration) error
	GetDeclaration(ctx context.Context, tenantID, id string) (declaration.Declaration, error)
	UpdateDeclarationStatus(ctx context.Context, tenantID string, d declaration.Declaration, previous declaration.Status) error
	InsertDocument(ctx context.Context, tenantID string, doc declaration.Document) error
	GetDocument(ctx context.Context, tenantID, declarationID string, kind declaration.DocumentKind) (declaration.Document, error)
	RecordAudit(ctx context.Context, tenantID string, evt audit.Event, before, after any) error
}

// Repository adds units of work: everything fn writes is committed together
// or not at all.
type Repository interface {
	Repo
	InTx(ctx context.Context, fn func(Repo) error) error
}

type PgRepository struct {
	beginner     db.TxBeginner
	db           querier.Querier
	payroll      *payroll.Store
	declarations *declaration.Store
	audit        *audit.Service
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return newPgRepository(pool, pool)
}

func newPgRepository(beginner db.TxBeginner, q querier.Querier) *PgRepository {
	return &PgRepository{
		beginner:     beginner,
		db:           q,
		payroll:      payroll.NewStore(q),
		declarations: declaration.NewStore(q),
		audit:        audit.New(q),
	}
}

// InTx opens a transaction. Inside one, fn runs on the same transaction.
func (r *PgRepository) InTx(ctx context.Context, fn func(Repo) error) error {
	if r.beginner == nil {
		return fn(r)
	}
	return db.WithTx(ctx, r.beginner, func(tx pgx.Tx) error {
		return fn(newPgRepository(nil, tx))
	})
}

func (r *PgRepository) Company(ctx context.Context, tenantID string) (declaration.Company, error) {
	var c declaration.Company
	err := r.db.QueryRow(ctx, `
    SELECT name, registration_number, tax_identifier
    FROM tenants
    WHERE id = $1
  `, tenantID).Scan(&c.Name, &c.RegistrationNumber, &c.TaxIdentifier)
	if errors.Is(err, pgx.ErrNoRows) {
		return declaration.Company{}, ErrCompanyNotFound
	}
	return c, err
}

func (r *PgRepository) ListProfiles(ctx context.Context, tenantID string, period payroll.Period) ([]payroll.CompensationProfile, error) {
	return r.payroll.ListProfiles(ctx, tenantID, period)
}

func (r *PgRepository) LatestCalculationIDs(ctx context.Context, tenantID string, period payroll.Period) (map[string]string, error) {
	return r.payroll.LatestCalculationIDs(ctx, tenantID, period)
}

func (r *PgRepository) InsertCalculation(ctx context.Context, tenantID string, calc payroll.Calculation) error {
	return r.payroll.InsertCalculation(ctx, tenantID, calc)
}

func (r *PgRepository) InsertDeclaration(ctx context.Context, tenantID string, d declaration.Declaration) error {
	return r.declarations.Insert(ctx, tenantID, d)
}

func (r *PgRepository) GetDeclaration(ctx context.Context, tenantID, id string) (declaration.Declaration, error) {
	return r.declarations.Get(ctx, tenantID, id)
}

func (r *PgRepository) UpdateDeclarationStatus(ctx context.Context, tenantID string, d declaration.Declaration, previous declaration.Status) error {
	return r.declarations.UpdateStatus(ctx, tenantID, d, previous)
}

func (r *PgRepository) InsertDocument(ctx context.Context, tenantID string, doc declaration.Document) error {
	return r.declarations.InsertDocument(ctx, tenantID, doc)
}

func (r *PgRepository) GetDocument(ctx context.Context, tenantID, declarationID string, kind declaration.DocumentKind) (declaration.Document, error) {
	return r.declarations.GetDocument(ctx, tenantID, declarationID, kind)
}

func (r *PgRepository) RecordAudit(ctx context.Context, tenantID string, evt audit.Event, before, after any) error {
	return r.audit.Record(ctx, tenantID, evt, before, after)
}
