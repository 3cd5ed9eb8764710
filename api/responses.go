package api

// CheckResponse is the response for an authorization check.
type CheckResponse struct {
	Allowed    bool            `json:"allowed" description:"Whether the request is allowed"`
	Decision   string          `json:"decision" description:"Decision code"`
	Reason     string          `json:"reason,omitempty" description:"Human-readable reason"`
	MatchedBy  *PermissionInfo `json:"matched_by,omitempty" description:"Matched permission"`
	EvalTimeNs int64           `json:"eval_time_ns" description:"Evaluation time in nanoseconds"`
}

// PermissionInfo identifies a matched permission.
type PermissionInfo struct {
	Resource   string            `json:"resource" description:"Resource type"`
	Action     string            `json:"action" description:"Action"`
	Conditions map[string]string `json:"conditions,omitempty" description:"Conditions the request satisfied"`
}

// BatchCheckResponse contains results for multiple checks.
type BatchCheckResponse struct {
	Results []CheckResponse `json:"results" description:"Check results in order"`
}

// StatsResponse aggregates application counts per role and status.
type StatsResponse struct {
	Counts []StatusCountInfo `json:"counts" description:"Counts per role and status"`
}

// StatusCountInfo is one cell of the application statistics.
type StatusCountInfo struct {
	Role   string `json:"role" description:"Applied-for role"`
	Status string `json:"status" description:"Application status"`
	Count  int64  `json:"count" description:"Number of applications"`
}

// RolesResponse lists a user's current roles.
type RolesResponse struct {
	UserID string   `json:"user_id" description:"User ID"`
	Roles  []string `json:"roles" description:"Current role set"`
}
