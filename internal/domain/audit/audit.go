package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"paie/internal/platform/querier"
)

const (
	ActionCalculated           = "payroll.calculated"
	ActionDeclarationAssembled = "declaration.assembled"
	ActionDeclarationStatus    = "declaration.status_changed"
	ActionDocumentGenerated    = "declaration.document_generated"

	EntityCalculation = "payroll_calculation"
	EntityDeclaration = "declaration"
)

// Event is one row of the audit trail. Before and After hold JSON snapshots.
type Event struct {
	ID         string          `json:"id"`
	ActorID    string          `json:"actorId"`
	Action     string          `json:"action"`
	EntityType string          `json:"entityType"`
	EntityID   string          `json:"entityId"`
	RequestID  string          `json:"requestId"`
	CreatedAt  time.Time       `json:"createdAt"`
	Before     json.RawMessage `json:"before,omitempty"`
	After      json.RawMessage `json:"after,omitempty"`
}

type Filter struct {
	Action     string
	EntityType string
	EntityID   string
	ActorID    string
}

// Recorder is what the filing pipeline needs from the trail.
type Recorder interface {
	Record(ctx context.Context, tenantID string, evt Event, before, after any) error
}

type Service struct {
	DB querier.Querier
}

func New(db querier.Querier) *Service {
	return &Service{DB: db}
}

// WithDB returns a service bound to another querier, typically a transaction.
func (s *Service) WithDB(db querier.Querier) *Service {
	return &Service{DB: db}
}

func (s *Service) Record(ctx context.Context, tenantID string, evt Event, before, after any) error {
	beforeJSON, err := snapshot(before)
	if err != nil {
		return err
	}
	afterJSON, err := snapshot(after)
	if err != nil {
		return err
	}

	var actor any
	if evt.ActorID != "" {
		actor = evt.ActorID
	}
	_, err = s.DB.Exec(ctx, `
    INSERT INTO audit_events (tenant_id, actor_user_id, action, entity_type, entity_id, before_json, after_json, request_id)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
  `, tenantID, actor, evt.Action, evt.EntityType, evt.EntityID, beforeJSON, afterJSON, evt.RequestID)
	return err
}

func snapshot(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func (s *Service) List(ctx context.Context, tenantID string, filter Filter, limit, offset int) ([]Event, error) {
	query, args := buildQuery(tenantID, filter)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var evt Event
		var actor, requestID *string
		if err := rows.Scan(&evt.ID, &actor, &evt.Action, &evt.EntityType, &evt.EntityID, &requestID, &evt.CreatedAt, &evt.Before, &evt.After); err != nil {
			return nil, err
		}
		if actor != nil {
			evt.ActorID = *actor
		}
		if requestID != nil {
			evt.RequestID = *requestID
		}
		out = append(out, evt)
	}
	return out, rows.Err()
}

func buildQuery(tenantID string, filter Filter) (string, []any) {
	query := `SELECT id, actor_user_id::text, action, entity_type, entity_id, request_id, created_at, before_json, after_json
    FROM audit_events WHERE tenant_id = $1`
	args := []any{tenantID}
	for _, cond := range []struct {
		column, value string
	}{
		{"action", filter.Action},
		{"entity_type", filter.EntityType},
		{"entity_id", filter.EntityID},
		{"actor_user_id::text", filter.ActorID},
	} {
		if cond.value == "" {
			continue
		}
		args = append(args, cond.value)
		query += fmt.Sprintf(" AND %s = $%d", cond.column, len(args))
	}
	return query, args
}
