package mutation

import (
	"log/slog"
	"time"

	"committeeDashboard/internal/dataservice"
	"committeeDashboard/internal/invites"
)

// Forms builds the dialog mutations over shared dependencies.
type Forms struct {
	svc     dataservice.Service
	storage dataservice.Storage
	inviter invites.Inviter
	logger  *slog.Logger
	now     func() time.Time
}

// NewForms creates the form factory. inviter and storage may be nil when
// the corresponding dialogs are not offered.
func NewForms(svc dataservice.Service, storage dataservice.Storage, inviter invites.Inviter, logger *slog.Logger) *Forms {
	if logger == nil {
		logger = slog.Default()
	}
	return &Forms{svc: svc, storage: storage, inviter: inviter, logger: logger, now: time.Now}
}

// WithClock replaces the time source.
func (f *Forms) WithClock(now func() time.Time) *Forms {
	f.now = now
	return f
}

// nullable maps a blank string to SQL NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
