package declaration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"paie/internal/platform/querier"
)

var ErrDocumentExists = errors.New("declaration document already written")

type DocumentKind string

const (
	DocumentBDS     DocumentKind = "bds"
	DocumentCSV     DocumentKind = "csv"
	DocumentSummary DocumentKind = "summary_pdf"
)

// Document is a generated artifact. Content is stored encrypted.
type Document struct {
	DeclarationID string       `json:"declarationId"`
	Kind          DocumentKind `json:"kind"`
	Content       []byte       `json:"-"`
	Checksum      string       `json:"checksum"`
	KeyVersion    int          `json:"keyVersion"`
	CreatedAt     time.Time    `json:"createdAt"`
}

type Summary struct {
	ID           string         `json:"id"`
	Period       string         `json:"period"`
	Status       Status         `json:"status"`
	Headcount    int            `json:"headcount"`
	GrandTotal   string         `json:"grandTotal"`
	RatesVersion string         `json:"ratesVersion"`
	CreatedAt    time.Time      `json:"createdAt"`
	Documents    []DocumentKind `json:"documents,omitempty"`
}

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

func (s *Store) Insert(ctx context.Context, tenantID string, d Declaration) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return err
	}
	_, err = s.DB.Exec(ctx, `
    INSERT INTO declarations (id, tenant_id, period_year, period_month, status, registration_number, headcount, grand_total, rates_version, payload, created_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
  `, d.ID, tenantID, d.Period.Year, d.Period.Month, d.Status, d.Company.RegistrationNumber,
		d.Totals.Headcount, d.Totals.GrandTotal.String(), d.RatesVersion, raw, d.CreatedAt)
	return err
}

func (s *Store) Get(ctx context.Context, tenantID, id string) (Declaration, error) {
	var raw []byte
	err := s.DB.QueryRow(ctx, `
    SELECT payload FROM declarations WHERE tenant_id = $1 AND id = $2
  `, tenantID, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return Declaration{}, ErrDeclarationNotFound
	}
	if err != nil {
		return Declaration{}, err
	}
	var d Declaration
	if err := json.Unmarshal(raw, &d); err != nil {
		return Declaration{}, fmt.Errorf("decode declaration: %w", err)
	}
	return d, nil
}

// UpdateStatus persists d only if the stored status is still previous, so two
// concurrent transitions cannot both succeed.
func (s *Store) UpdateStatus(ctx context.Context, tenantID string, d Declaration, previous Status) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return err
	}
	tag, err := s.DB.Exec(ctx, `
    UPDATE declarations
    SET status = $1, payload = $2, updated_at = now()
    WHERE tenant_id = $3 AND id = $4 AND status = $5
  `, d.Status, raw, tenantID, d.ID, previous)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: declaration %s is not %s", ErrInvalidTransition, d.ID, previous)
	}
	return nil
}

func (s *Store) ListByPeriod(ctx context.Context, tenantID string, year, month int) ([]Summary, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT d.id, d.period_year, d.period_month, d.status, d.headcount, d.grand_total::text, d.rates_version, d.created_at,
           COALESCE(array_agg(doc.kind ORDER BY doc.kind) FILTER (WHERE doc.kind IS NOT NULL), '{}')
    FROM declarations d
    LEFT JOIN declaration_documents doc ON doc.declaration_id = d.id
    WHERE d.tenant_id = $1 AND d.period_year = $2 AND d.period_month = $3
    GROUP BY d.id
    ORDER BY d.created_at DESC
  `, tenantID, year, month)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var item Summary
		var y, m int
		var kinds []string
		if err := rows.Scan(&item.ID, &y, &m, &item.Status, &item.Headcount, &item.GrandTotal, &item.RatesVersion, &item.CreatedAt, &kinds); err != nil {
			return nil, err
		}
		item.Period = fmt.Sprintf("%04d-%02d", y, m)
		for _, k := range kinds {
			item.Documents = append(item.Documents, DocumentKind(k))
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// InsertDocument is write-once: a second document of the same kind for a
// declaration fails with ErrDocumentExists.
func (s *Store) InsertDocument(ctx context.Context, tenantID string, doc Document) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO declaration_documents (declaration_id, tenant_id, kind, content, checksum, key_version, created_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7)
  `, doc.DeclarationID, tenantID, doc.Kind, doc.Content, doc.Checksum, doc.KeyVersion, doc.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDocumentExists
	}
	return err
}

func (s *Store) GetDocument(ctx context.Context, tenantID, declarationID string, kind DocumentKind) (Document, error) {
	doc := Document{DeclarationID: declarationID, Kind: kind}
	err := s.DB.QueryRow(ctx, `
    SELECT content, checksum, key_version, created_at
    FROM declaration_documents
    WHERE tenant_id = $1 AND declaration_id = $2 AND kind = $3
  `, tenantID, declarationID, kind).Scan(&doc.Content, &doc.Checksum, &doc.KeyVersion, &doc.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, ErrDocumentNotFound
	}
	if err != nil {
		return Document{}, err
	}
	return doc, nil
}
