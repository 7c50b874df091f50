package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Audit event types.
const (
	EventAuthRegister  = "auth.register"
	EventPlanCreate    = "plan.create"
	EventPlanImport    = "plan.import"
	EventSpeciesCreate = "species.create"
	EventSpeciesImport = "species.import"
)

// AuditEvent is one row of the audit log.
type AuditEvent struct {
	ID          string
	ActorUserID string
	EventType   string
	EntityType  string
	EntityID    string
	Payload     json.RawMessage
	CreatedAt   time.Time
}

// AppendAuditEvent records an event through store. Callers pass the
// transaction that carries the audited change so both commit or roll back
// together.
func AppendAuditEvent(
	ctx context.Context,
	store DBTX,
	actorUserID string,
	eventType string,
	entityType string,
	entityID string,
	payload any,
) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}
	payloadJSON, err = canonicalizeAuditPayload(payloadJSON)
	if err != nil {
		return fmt.Errorf("canonicalize audit payload: %w", err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("audit event id: %w", err)
	}

	_, err = store.ExecContext(ctx, `
		INSERT INTO audit_log (id, actor_user_id, event_type, entity_type, entity_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, id.String(), nullable(actorUserID), eventType, entityType, nullable(entityID), string(payloadJSON), FormatTimestamp(time.Now()))
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListAuditEvents returns events of one type, oldest first.
func ListAuditEvents(ctx context.Context, store DBTX, eventType string) ([]AuditEvent, error) {
	rows, err := store.QueryContext(ctx, `
		SELECT id, COALESCE(actor_user_id, ''), event_type, entity_type, COALESCE(entity_id, ''), payload, created_at
		FROM audit_log
		WHERE event_type = $1
		ORDER BY created_at, id
	`, eventType)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []AuditEvent
	for rows.Next() {
		var (
			ev        AuditEvent
			payload   string
			createdAt string
		)
		if err := rows.Scan(&ev.ID, &ev.ActorUserID, &ev.EventType, &ev.EntityType, &ev.EntityID, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		ev.Payload = json.RawMessage(payload)
		if ev.CreatedAt, err = ParseTimestamp(createdAt); err != nil {
			return nil, fmt.Errorf("parse audit timestamp: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func canonicalizeAuditPayload(raw []byte) ([]byte, error) {
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	return json.Marshal(payload)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
