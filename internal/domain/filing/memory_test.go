package filing

import (
	"context"
	"errors"
	"fmt"

	"paie/internal/domain/audit"
	"paie/internal/domain/declaration"
	"paie/internal/domain/payroll"
)

type memState struct {
	companies    map[string]declaration.Company
	profiles     map[string][]payroll.CompensationProfile
	calculations []payroll.Calculation
	declarations map[string]declaration.Declaration
	documents    map[string]declaration.Document
	events       []audit.Event
}

func (s memState) clone() memState {
	out := memState{
		companies:    map[string]declaration.Company{},
		profiles:     map[string][]payroll.CompensationProfile{},
		calculations: append([]payroll.Calculation(nil), s.calculations...),
		declarations: map[string]declaration.Declaration{},
		documents:    map[string]declaration.Document{},
		events:       append([]audit.Event(nil), s.events...),
	}
	for k, v := range s.companies {
		out.companies[k] = v
	}
	for k, v := range s.profiles {
		out.profiles[k] = v
	}
	for k, v := range s.declarations {
		out.declarations[k] = v
	}
	for k, v := range s.documents {
		out.documents[k] = v
	}
	return out
}

// memRepo keeps everything in maps. InTx works on a copy and swaps it in
// only when fn succeeds.
type memRepo struct {
	state *memState
	// failDocuments makes InsertDocument fail, to exercise rollback.
	failDocuments bool
}

func newMemRepo() *memRepo {
	s := memState{}.clone()
	return &memRepo{state: &s}
}

func (r *memRepo) InTx(ctx context.Context, fn func(Repo) error) error {
	work := r.state.clone()
	tx := &memRepo{state: &work, failDocuments: r.failDocuments}
	if err := fn(tx); err != nil {
		return err
	}
	*r.state = work
	return nil
}

func profileKey(tenantID string, period payroll.Period) string {
	return tenantID + "/" + period.String()
}

func (r *memRepo) Company(_ context.Context, tenantID string) (declaration.Company, error) {
	c, ok := r.state.companies[tenantID]
	if !ok {
		return declaration.Company{}, ErrCompanyNotFound
	}
	return c, nil
}

func (r *memRepo) ListProfiles(_ context.Context, tenantID string, period payroll.Period) ([]payroll.CompensationProfile, error) {
	return r.state.profiles[profileKey(tenantID, period)], nil
}

func (r *memRepo) LatestCalculationIDs(_ context.Context, _ string, period payroll.Period) (map[string]string, error) {
	out := map[string]string{}
	for _, c := range r.state.calculations {
		if c.Period == period {
			out[c.EmployeeID] = c.ID
		}
	}
	return out, nil
}

func (r *memRepo) InsertCalculation(_ context.Context, _ string, calc payroll.Calculation) error {
	r.state.calculations = append(r.state.calculations, calc)
	return nil
}

func (r *memRepo) InsertDeclaration(_ context.Context, _ string, d declaration.Declaration) error {
	if _, ok := r.state.declarations[d.ID]; ok {
		return fmt.Errorf("duplicate declaration %s", d.ID)
	}
	r.state.declarations[d.ID] = d
	return nil
}

func (r *memRepo) GetDeclaration(_ context.Context, _ string, id string) (declaration.Declaration, error) {
	d, ok := r.state.declarations[id]
	if !ok {
		return declaration.Declaration{}, declaration.ErrDeclarationNotFound
	}
	return d, nil
}

func (r *memRepo) UpdateDeclarationStatus(_ context.Context, _ string, d declaration.Declaration, previous declaration.Status) error {
	stored, ok := r.state.declarations[d.ID]
	if !ok {
		return declaration.ErrDeclarationNotFound
	}
	if stored.Status != previous {
		return declaration.ErrInvalidTransition
	}
	r.state.declarations[d.ID] = d
	return nil
}

func (r *memRepo) InsertDocument(_ context.Context, _ string, doc declaration.Document) error {
	if r.failDocuments {
		return errors.New("disk full")
	}
	key := doc.DeclarationID + "/" + string(doc.Kind)
	if _, ok := r.state.documents[key]; ok {
		return declaration.ErrDocumentExists
	}
	r.state.documents[key] = doc
	return nil
}

func (r *memRepo) GetDocument(_ context.Context, _ string, declarationID string, kind declaration.DocumentKind) (declaration.Document, error) {
	doc, ok := r.state.documents[declarationID+"/"+string(kind)]
	if !ok {
		return declaration.Document{}, declaration.ErrDocumentNotFound
	}
	return doc, nil
}

func (r *memRepo) RecordAudit(_ context.Context, _ string, evt audit.Event, _, _ any) error {
	r.state.events = append(r.state.events, evt)
	return nil
}

func (r *memRepo) countEvents(action string) int {
	n := 0
	for _, evt := range r.state.events {
		if evt.Action == action {
			n++
		}
	}
	return n
}
