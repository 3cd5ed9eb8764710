// Package application defines the RoleApplication aggregate: a user's
// request to acquire a role, its documents, role-specific fields, and the
// ordered verification steps that gate approval. All mutations to
// verification steps go through the aggregate so the "all steps resolved →
// recompute status" invariant lives in exactly one place.
package application

import (
	"fmt"
	"time"

	"github.com/xraph/sentinel/errs"
	"github.com/xraph/sentinel/id"
	"github.com/xraph/sentinel/policy"
)

// Status is the lifecycle status of a role application.
type Status string

// All application lifecycle states. Approved, rejected, cancelled, expired,
// and withdrawn are terminal.
const (
	StatusPending   Status = "pending"
	StatusInReview  Status = "in_review"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
	StatusWithdrawn Status = "withdrawn"
)

// Terminal reports whether s is a terminal state.
func (s Status) Terminal() bool {
	switch s {
	case StatusApproved, StatusRejected, StatusCancelled, StatusExpired, StatusWithdrawn:
		return true
	}
	return false
}

// Open reports whether s is a non-terminal, in-flight state.
func (s Status) Open() bool {
	return s == StatusPending || s == StatusInReview
}

// ValidStatus reports whether s is a recognized lifecycle state.
func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusInReview, StatusApproved, StatusRejected,
		StatusCancelled, StatusExpired, StatusWithdrawn:
		return true
	}
	return false
}

// StepStatus is the status of a single verification step.
type StepStatus string

// Verification step states.
const (
	StepPending   StepStatus = "pending"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
)

// VerificationStep is one named checkpoint within an application. Steps are
// created pending and resolve exactly once, to completed or failed.
type VerificationStep struct {
	Name        string     `json:"name"`
	Status      StepStatus `json:"status"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CompletedBy id.UserID  `json:"completed_by,omitempty"`
	Notes       string     `json:"notes,omitempty"`
}

// Document is an uploaded supporting document. The aggregate stores only
// blob-store references; file contents never pass through it.
type Document struct {
	Type     string `json:"type"`
	URL      string `json:"url"`
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
}

// Validate checks the document reference itself; content checks belong to
// the uploader.
func (d Document) Validate() error {
	switch {
	case d.Type == "":
		return fmt.Errorf("%w: document type is required", errs.ErrValidation)
	case d.URL == "":
		return fmt.Errorf("%w: document %q: storage URL is required", errs.ErrValidation, d.Type)
	case d.Name == "":
		return fmt.Errorf("%w: document %q: name is required", errs.ErrValidation, d.Type)
	case d.MimeType == "":
		return fmt.Errorf("%w: document %q: MIME type is required", errs.ErrValidation, d.Type)
	case d.Size <= 0:
		return fmt.Errorf("%w: document %q: size must be positive", errs.ErrValidation, d.Type)
	}
	return nil
}

// Application is a user's request to add a role.
type Application struct {
	ID              id.ApplicationID   `json:"id"`
	UserID          id.UserID          `json:"user_id"`
	Role            policy.Role        `json:"role"`
	Status          Status             `json:"status"`
	Fields          FieldSet           `json:"fields"`
	Documents       []Document         `json:"documents,omitempty"`
	Steps           []VerificationStep `json:"steps"`
	RolesAtSubmit   []policy.Role      `json:"roles_at_submit"`
	ReviewedBy      id.UserID          `json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time         `json:"reviewed_at,omitempty"`
	RejectionReason string             `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// Step returns the named verification step, if present.
func (a *Application) Step(name string) (*VerificationStep, bool) {
	for i := range a.Steps {
		if a.Steps[i].Name == name {
			return &a.Steps[i], true
		}
	}
	return nil, false
}

// PendingSteps returns the names of steps that have not resolved yet.
func (a *Application) PendingSteps() []string {
	var out []string
	for _, s := range a.Steps {
		if s.Status == StepPending {
			out = append(out, s.Name)
		}
	}
	return out
}

// ResolveStep resolves the named step to completed or failed and recomputes
// the application status: once every step has resolved the application
// moves to approved (all completed) or rejected (any failed); otherwise it
// moves to in_review. The caller observes the new Status to apply side
// effects (role grant, cache invalidation) in the same unit of work.
func (a *Application) ResolveStep(name string, outcome StepStatus, actor id.UserID, at time.Time, notes string) error {
	if outcome != StepCompleted && outcome != StepFailed {
		return fmt.Errorf("%w: step outcome must be completed or failed, got %q", errs.ErrValidation, outcome)
	}
	if a.Status.Terminal() {
		return fmt.Errorf("%w: application %s is already %s", errs.ErrStateConflict, a.ID, a.Status)
	}

	step, ok := a.Step(name)
	if !ok {
		return fmt.Errorf("%w: application %s has no verification step %q", errs.ErrNotFound, a.ID, name)
	}
	if step.Status != StepPending {
		return fmt.Errorf("%w: verification step %q already resolved to %s", errs.ErrStateConflict, name, step.Status)
	}

	step.Status = outcome
	step.CompletedAt = &at
	step.CompletedBy = actor
	step.Notes = notes

	a.recomputeStatus(actor, at)
	a.UpdatedAt = at
	return nil
}

// recomputeStatus applies the step-resolution invariant in one place.
func (a *Application) recomputeStatus(actor id.UserID, at time.Time) {
	anyPending := false
	anyFailed := false
	for _, s := range a.Steps {
		switch s.Status {
		case StepPending:
			anyPending = true
		case StepFailed:
			anyFailed = true
		}
	}

	switch {
	case anyPending:
		a.Status = StatusInReview
	case anyFailed:
		a.Status = StatusRejected
		a.ReviewedBy = actor
		a.ReviewedAt = &at
		if a.RejectionReason == "" {
			a.RejectionReason = "one or more verification steps failed"
		}
	default:
		a.Status = StatusApproved
		a.ReviewedBy = actor
		a.ReviewedAt = &at
	}
}

// Approve finalizes the application administratively. Every step must
// already be resolved; this path exists for finalizing once steps are done
// and for roles with no steps.
func (a *Application) Approve(reviewer id.UserID, at time.Time) error {
	if a.Status.Terminal() {
		return fmt.Errorf("%w: application %s is already %s", errs.ErrStateConflict, a.ID, a.Status)
	}
	if pending := a.PendingSteps(); len(pending) > 0 {
		return fmt.Errorf("%w: cannot approve application %s: %d verification steps still pending",
			errs.ErrStateConflict, a.ID, len(pending))
	}
	for _, s := range a.Steps {
		if s.Status == StepFailed {
			return fmt.Errorf("%w: cannot approve application %s: step %q failed", errs.ErrStateConflict, a.ID, s.Name)
		}
	}

	a.Status = StatusApproved
	a.ReviewedBy = reviewer
	a.ReviewedAt = &at
	a.UpdatedAt = at
	return nil
}

// Reject terminates the application with a reviewer-supplied reason.
func (a *Application) Reject(reviewer id.UserID, at time.Time, reason string) error {
	if reason == "" {
		return fmt.Errorf("%w: a rejection reason is required", errs.ErrValidation)
	}
	if a.Status.Terminal() {
		return fmt.Errorf("%w: application %s is already %s", errs.ErrStateConflict, a.ID, a.Status)
	}

	a.Status = StatusRejected
	a.ReviewedBy = reviewer
	a.ReviewedAt = &at
	a.RejectionReason = reason
	a.UpdatedAt = at
	return nil
}

// Expire terminates an application that sat unreviewed past its deadline.
func (a *Application) Expire(at time.Time) error {
	if a.Status.Terminal() {
		return fmt.Errorf("%w: application %s is already %s", errs.ErrStateConflict, a.ID, a.Status)
	}
	a.Status = StatusExpired
	a.UpdatedAt = at
	return nil
}

// Withdrawable reports whether the owning user may still withdraw.
func (a *Application) Withdrawable() bool {
	return a.Status.Open()
}
