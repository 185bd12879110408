package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// Execer is satisfied by *pgxpool.Pool and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// AuditLog represents a record stored in audit_logs. Entity is the document
// family ("invoice", "receipt", ...) and EntityID its numeric id as text.
type AuditLog struct {
	ActorID  int64
	Action   string
	Entity   string
	EntityID string
	Meta     map[string]any
	At       time.Time
}

// ErrAuditIncomplete is returned for entries missing action, entity or id.
var ErrAuditIncomplete = errors.New("audit log requires action/entity/entity_id")

// AuditLogger writes records into audit_logs.
type AuditLogger struct {
	db Execer
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(db Execer) *AuditLogger {
	return &AuditLogger{db: db}
}

// Record persists the log entry. A zero At is stamped by the database.
func (l *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	if l == nil || l.db == nil {
		return errors.New("audit logger not initialised")
	}
	if log.Action == "" || log.Entity == "" || log.EntityID == "" {
		return ErrAuditIncomplete
	}
	metaJSON, err := json.Marshal(log.Meta)
	if err != nil {
		return err
	}
	var at *time.Time
	if !log.At.IsZero() {
		utc := log.At.UTC()
		at = &utc
	}
	_, err = l.db.Exec(ctx, `INSERT INTO audit_logs (actor_id, action, entity, entity_id, meta, occurred_at)
VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))`, log.ActorID, log.Action, log.Entity, log.EntityID, metaJSON, at)
	return err
}
