package mutation

import (
	"context"
	"encoding/json"
	"log/slog"

	"committeeDashboard/internal/dataservice"
)

// AuditLog records committed changes in audit_logs.
type AuditLog struct {
	svc    dataservice.Service
	logger *slog.Logger
}

var _ Observer = (*AuditLog)(nil)

// NewAuditLog creates an observer writing through svc.
func NewAuditLog(svc dataservice.Service, logger *slog.Logger) *AuditLog {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLog{svc: svc, logger: logger}
}

// Committed writes one audit row. Failures are logged; the change itself
// has already been committed.
func (a *AuditLog) Committed(ctx context.Context, c Change) {
	if c.ID == "" {
		return
	}
	row := dataservice.Row{
		"action":      c.Action,
		"entity_type": c.Entity,
		"entity_id":   c.ID,
		"profile_id":  nullable(c.ActorID),
	}
	if len(c.Details) > 0 {
		details, err := json.Marshal(c.Details)
		if err == nil {
			row["details"] = string(details)
		}
	}
	if _, err := a.svc.Insert(ctx, "audit_logs", row); err != nil {
		a.logger.With("error", err).Warn("audit log write failed", "entity", c.Entity, "id", c.ID)
	}
}
