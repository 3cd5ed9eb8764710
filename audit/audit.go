// Package audit defines the audit log Entry entity recording authorization
// decisions and application lifecycle events.
package audit

import (
	"time"

	"github.com/xraph/sentinel/id"
)

// Event names recorded in the audit trail.
const (
	EventAccessCheck          = "access.check"
	EventApplicationSubmitted = "application.submitted"
	EventApplicationStep      = "application.step_resolved"
	EventApplicationApproved  = "application.approved"
	EventApplicationRejected  = "application.rejected"
	EventApplicationWithdrawn = "application.withdrawn"
	EventApplicationExpired   = "application.expired"
	EventRoleGranted          = "role.granted"
	EventRolesChanged         = "roles.changed"
)

// Entry is a single audit record. Entries are immutable once written.
type Entry struct {
	ID        id.AuditLogID `json:"id"`
	Event     string        `json:"event"`
	ActorID   id.UserID     `json:"actor_id,omitempty"`
	SubjectID id.UserID     `json:"subject_id,omitempty"`
	TargetID  string        `json:"target_id,omitempty"`
	Decision  string        `json:"decision,omitempty"`
	Reason    string        `json:"reason,omitempty"`
	// SubjectRoles is the subject's role set at the time of the event.
	SubjectRoles []string       `json:"subject_roles,omitempty"`
	RequestIP    string         `json:"request_ip,omitempty"`
	UserAgent    string         `json:"user_agent,omitempty"`
	EvalTimeNs   int64          `json:"eval_time_ns,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// QueryFilter contains filters for querying audit entries.
type QueryFilter struct {
	Event     string     `json:"event,omitempty"`
	ActorID   id.UserID  `json:"actor_id,omitempty"`
	SubjectID id.UserID  `json:"subject_id,omitempty"`
	TargetID  string     `json:"target_id,omitempty"`
	Decision  string     `json:"decision,omitempty"`
	After     *time.Time `json:"after,omitempty"`
	Before    *time.Time `json:"before,omitempty"`
	Limit     int64      `json:"limit,omitempty"`
	Offset    int64      `json:"offset,omitempty"`
}
