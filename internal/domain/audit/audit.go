package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	ActionPayslipCalculated = "payroll.payslip.calculated"
	ActionPayslipRendered   = "payroll.payslip.rendered"
	ActionPayslipDownloaded = "payroll.payslip.downloaded"

	EntityPayslip = "payslip"
)

// Entry is one audited action. Inputs and Outputs are stored as JSON.
type Entry struct {
	TenantID   string
	ActorID    string
	Action     string
	EntityType string
	EntityID   string
	RequestID  string
	IP         string
	Inputs     any
	Outputs    any
}

type Event struct {
	ID         string          `json:"id"`
	ActorID    string          `json:"actorId"`
	Action     string          `json:"action"`
	EntityType string          `json:"entityType"`
	EntityID   string          `json:"entityId"`
	RequestID  string          `json:"requestId"`
	IP         string          `json:"ip"`
	CreatedAt  time.Time       `json:"createdAt"`
	Inputs     json.RawMessage `json:"inputs,omitempty"`
	Outputs    json.RawMessage `json:"outputs,omitempty"`
}

type Filter struct {
	Action     string
	EntityType string
	EntityID   string
}

type Service struct {
	DB *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Service {
	return &Service{DB: db}
}

func (s *Service) Record(ctx context.Context, entry Entry) error {
	inputsJSON, err := marshalOptional(entry.Inputs)
	if err != nil {
		return fmt.Errorf("audit inputs: %w", err)
	}
	outputsJSON, err := marshalOptional(entry.Outputs)
	if err != nil {
		return fmt.Errorf("audit outputs: %w", err)
	}

	_, err = s.DB.Exec(ctx, `
    INSERT INTO audit_events (tenant_id, actor_user_id, action, entity_type, entity_id, inputs_json, outputs_json, request_id, ip)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
  `, entry.TenantID, entry.ActorID, entry.Action, entry.EntityType, entry.EntityID, inputsJSON, outputsJSON, entry.RequestID, entry.IP)
	return err
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
		if err := rows.Scan(&evt.ID, &evt.ActorID, &evt.Action, &evt.EntityType, &evt.EntityID, &evt.RequestID, &evt.IP, &evt.CreatedAt, &evt.Inputs, &evt.Outputs); err != nil {
			return nil, err
		}
		out = append(out, evt)
	}
	return out, rows.Err()
}

func buildQuery(tenantID string, filter Filter) (string, []any) {
	query := `SELECT id::text, actor_user_id, action, entity_type, entity_id, request_id, ip, created_at, inputs_json, outputs_json
    FROM audit_events WHERE tenant_id = $1`
	args := []any{tenantID}
	if filter.Action != "" {
		query += fmt.Sprintf(" AND action = $%d", len(args)+1)
		args = append(args, filter.Action)
	}
	if filter.EntityType != "" {
		query += fmt.Sprintf(" AND entity_type = $%d", len(args)+1)
		args = append(args, filter.EntityType)
	}
	if filter.EntityID != "" {
		query += fmt.Sprintf(" AND entity_id = $%d", len(args)+1)
		args = append(args, filter.EntityID)
	}
	return query, args
}

func marshalOptional(value any) ([]byte, error) {
	if value == nil {
		return nil, nil
	}
	return json.Marshal(value)
}
