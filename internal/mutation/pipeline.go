// Package mutation runs dialog submissions: validate the form, perform the
// dependent writes, notify the user and hand control back to the view that
// opened the dialog.
package mutation

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// Variant styles a notification.
type Variant string

const (
	VariantDefault     Variant = "default"
	VariantDestructive Variant = "destructive"
)

// Notification is a toast shown to the user.
type Notification struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Variant     Variant `json:"variant"`
}

// Notifier receives notifications as they are raised.
type Notifier interface {
	Notify(n Notification)
}

// Collector is a Notifier that keeps notifications in order.
type Collector struct {
	mu    sync.Mutex
	items []Notification
}

func (c *Collector) Notify(n Notification) {
	c.mu.Lock()
	c.items = append(c.items, n)
	c.mu.Unlock()
}

// Notifications returns everything collected so far.
func (c *Collector) Notifications() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Notification{}, c.items...)
}

// ValidationError is a form problem found before any write.
type ValidationError struct {
	Title       string
	Description string
	Field       string
}

func (e *ValidationError) Error() string {
	return e.Description
}

// Invalid returns a ValidationError titled "Error".
func Invalid(field, description string) *ValidationError {
	return &ValidationError{Title: "Error", Description: description, Field: field}
}

// UserError is a write failure whose message is safe to show.
type UserError struct {
	Message string
}

func (e *UserError) Error() string { return e.Message }

// Change describes a committed write. Origin is the view token the dialog
// was opened from; that view is refreshed by the submitter itself.
type Change struct {
	Entity  string         `json:"entity"`
	Action  string         `json:"action"`
	ID      string         `json:"id"`
	ActorID string         `json:"actor_id,omitempty"`
	Origin  string         `json:"origin,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

type originKey struct{}

// WithOrigin tags submissions made with ctx as coming from view token.
func WithOrigin(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, originKey{}, token)
}

// OriginFrom returns the view token set by WithOrigin.
func OriginFrom(ctx context.Context) string {
	token, _ := ctx.Value(originKey{}).(string)
	return token
}

// Mutation is one dialog submission.
type Mutation interface {
	// Validate checks the form without touching the network.
	Validate() error
	// Write performs the writes in order; it stops at the first failure.
	Write(ctx context.Context) (Change, error)
	// Succeeded lists the notifications raised after a successful write.
	Succeeded() []Notification
	// Failed describes a failed write.
	Failed(err error) Notification
}

// Observer is told about every committed change.
type Observer interface {
	Committed(ctx context.Context, c Change)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, c Change)

func (f ObserverFunc) Committed(ctx context.Context, c Change) { f(ctx, c) }

// Result is the outcome of a submission. Closed is true only after a
// successful write; otherwise the dialog stays open for another attempt.
type Result struct {
	Closed bool
	Change Change
	Err    error
}

// Pipeline submits mutations.
type Pipeline struct {
	observers []Observer
	logger    *slog.Logger
}

// NewPipeline creates a pipeline notifying observers of committed changes.
func NewPipeline(logger *slog.Logger, observers ...Observer) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{observers: observers, logger: logger}
}

// Submit validates m, writes it and reports to n. onSuccess runs exactly
// once after a successful write and never otherwise.
func (p *Pipeline) Submit(ctx context.Context, m Mutation, n Notifier, onSuccess func()) Result {
	if err := m.Validate(); err != nil {
		var ve *ValidationError
		if !errors.As(err, &ve) {
			ve = Invalid("", err.Error())
		}
		n.Notify(Notification{Title: ve.Title, Description: ve.Description, Variant: VariantDestructive})
		return Result{Err: err}
	}

	change, err := m.Write(ctx)
	if err != nil {
		p.logger.With("error", err).Error("mutation failed", "entity", change.Entity)
		n.Notify(m.Failed(err))
		return Result{Err: err}
	}

	if change.Origin == "" {
		change.Origin = OriginFrom(ctx)
	}
	for _, o := range p.observers {
		o.Committed(ctx, change)
	}
	for _, note := range m.Succeeded() {
		n.Notify(note)
	}
	if onSuccess != nil {
		onSuccess()
	}
	return Result{Closed: true, Change: change}
}

// failure builds the destructive notification for err, showing its text
// only when it is a UserError.
func failure(title, fallback string, err error) Notification {
	desc := fallback
	var ue *UserError
	if errors.As(err, &ue) {
		desc = ue.Message
	}
	return Notification{Title: title, Description: desc, Variant: VariantDestructive}
}

func success(description string) Notification {
	return Notification{Title: "Success", Description: description, Variant: VariantDefault}
}
