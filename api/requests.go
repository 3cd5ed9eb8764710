package api

import "encoding/json"

// ──────────────────────────────────────────────────
// Check requests
// ──────────────────────────────────────────────────

// CheckRequest is the request body for an authorization check.
type CheckRequest struct {
	UserID   string            `json:"user_id" description:"Subject user ID"`
	Resource string            `json:"resource" description:"Resource type (user, course, article, product, category, role)"`
	Action   string            `json:"action" description:"Action (create, read, update, delete, manage)"`
	Context  map[string]string `json:"context,omitempty" description:"Request context for conditional permissions"`
}

// BatchCheckRequest contains multiple checks.
type BatchCheckRequest struct {
	Checks []CheckRequest `json:"checks" description:"List of authorization checks"`
}

// ──────────────────────────────────────────────────
// Application requests
// ──────────────────────────────────────────────────

// SubmitApplicationRequest is the body for submitting a role application.
type SubmitApplicationRequest struct {
	Role      string            `json:"role" description:"Role applied for (student, mentor, writer, seller)"`
	Fields    json.RawMessage   `json:"fields" description:"Role-specific application fields"`
	Documents []DocumentPayload `json:"documents,omitempty" description:"Supporting document references"`
}

// DocumentPayload references an already-uploaded supporting document.
type DocumentPayload struct {
	Type     string `json:"type" description:"Document type (cv, identity_proof, portfolio, ...)"`
	URL      string `json:"url" description:"Blob store reference"`
	Name     string `json:"name" description:"Original file name"`
	MimeType string `json:"mime_type" description:"Content type"`
	Size     int64  `json:"size" description:"Size in bytes"`
}

// UploadDocumentRequest is the body for uploading a supporting document
// ahead of submission. Data is base64-encoded in JSON.
type UploadDocumentRequest struct {
	Role     string `json:"role" description:"Role the document supports"`
	Type     string `json:"type" description:"Document type (cv, identity_proof, portfolio, ...)"`
	Name     string `json:"name" description:"Original file name"`
	MimeType string `json:"mime_type" description:"Content type"`
	Data     []byte `json:"data" description:"File content (base64)"`
}

// GetApplicationRequest is the path parameter for getting an application.
type GetApplicationRequest struct {
	ApplicationID string `path:"applicationId" description:"Application ID"`
}

// ListApplicationsRequest holds query parameters for listing applications.
type ListApplicationsRequest struct {
	UserID string `query:"user_id" description:"Filter by applicant"`
	Role   string `query:"role" description:"Filter by applied-for role"`
	Status string `query:"status" description:"Filter by status (comma-separated)"`
	Limit  int    `query:"limit" description:"Maximum results (default: 50)"`
	Offset int    `query:"offset" description:"Results to skip"`
}

// ResolveStepRequest is the body for resolving a verification step.
type ResolveStepRequest struct {
	Step    string `json:"step" description:"Verification step name"`
	Outcome string `json:"outcome" description:"Resolution outcome (completed, failed)"`
	Notes   string `json:"notes,omitempty" description:"Reviewer notes"`
}

// RejectApplicationRequest is the body for rejecting an application.
type RejectApplicationRequest struct {
	Reason string `json:"reason" description:"Rejection reason (required)"`
}

// ListUserApplicationsRequest gets a user's application history.
type ListUserApplicationsRequest struct {
	UserID string `path:"userId" description:"User ID"`
}

// ──────────────────────────────────────────────────
// Role requests
// ──────────────────────────────────────────────────

// RoleRequirementsRequest is the path parameter for role requirements.
type RoleRequirementsRequest struct {
	Role string `path:"role" description:"Applied-for role name"`
}

// GrantRoleRequest is the body for granting a role directly.
type GrantRoleRequest struct {
	Role string `json:"role" description:"Role to grant"`
}

// RevokeRoleRequest identifies the role to revoke from a user.
type RevokeRoleRequest struct {
	UserID string `path:"userId" description:"User ID"`
	Role   string `path:"role" description:"Role to revoke"`
}

// ──────────────────────────────────────────────────
// Audit requests
// ──────────────────────────────────────────────────

// ListAuditEntriesRequest holds query parameters for the audit trail.
type ListAuditEntriesRequest struct {
	Event     string `query:"event" description:"Filter by event name"`
	ActorID   string `query:"actor_id" description:"Filter by acting user"`
	SubjectID string `query:"subject_id" description:"Filter by subject user"`
	TargetID  string `query:"target_id" description:"Filter by target"`
	Decision  string `query:"decision" description:"Filter by recorded decision"`
	After     string `query:"after" description:"Entries after this time (RFC3339)"`
	Before    string `query:"before" description:"Entries before this time (RFC3339)"`
	Limit     int    `query:"limit" description:"Maximum results (default: 50)"`
	Offset    int    `query:"offset" description:"Results to skip"`
}
