package mongo

import (
	"encoding/json"
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/sentinel/application"
	"github.com/xraph/sentinel/audit"
	"github.com/xraph/sentinel/id"
	"github.com/xraph/sentinel/policy"
	"github.com/xraph/sentinel/user"
)

// ──────────────────────────────────────────────────
// User model
// ──────────────────────────────────────────────────

type roleDataModel struct {
	Verified   bool       `bson:"verified"`
	VerifiedAt *time.Time `bson:"verified_at,omitempty"`
}

type permissionModel struct {
	Resource   string            `bson:"resource"`
	Action     string            `bson:"action"`
	Conditions map[string]string `bson:"conditions,omitempty"`
}

type userModel struct {
	grove.BaseModel   `grove:"table:sentinel_users"`
	ID                string                   `grove:"id,pk"              bson:"_id"`
	Email             string                   `grove:"email"              bson:"email"`
	Roles             []string                 `grove:"roles"              bson:"roles"`
	Status            string                   `grove:"status"             bson:"status"`
	CustomPermissions []permissionModel        `grove:"custom_permissions" bson:"custom_permissions,omitempty"`
	RoleData          map[string]roleDataModel `grove:"role_data"          bson:"role_data,omitempty"`
	Metadata          map[string]any           `grove:"metadata"           bson:"metadata,omitempty"`
	CreatedAt         time.Time                `grove:"created_at"         bson:"created_at"`
	UpdatedAt         time.Time                `grove:"updated_at"         bson:"updated_at"`
}

func userToModel(u *user.User) *userModel {
	m := &userModel{
		ID:        u.ID.String(),
		Email:     u.Email,
		Roles:     make([]string, len(u.Roles)),
		Status:    string(u.Status),
		Metadata:  u.Metadata,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
	for i, r := range u.Roles {
		m.Roles[i] = string(r)
	}
	for _, p := range u.CustomPermissions {
		m.CustomPermissions = append(m.CustomPermissions, permissionToModel(p))
	}
	if len(u.RoleData) > 0 {
		m.RoleData = make(map[string]roleDataModel, len(u.RoleData))
		for r, d := range u.RoleData {
			m.RoleData[string(r)] = roleDataModel{Verified: d.Verified, VerifiedAt: d.VerifiedAt}
		}
	}
	return m
}

func userFromModel(m *userModel) *user.User {
	uid, _ := id.ParseUserID(m.ID) //nolint:errcheck // stored IDs are always valid
	u := &user.User{
		ID:        uid,
		Email:     m.Email,
		Roles:     make([]policy.Role, len(m.Roles)),
		Status:    user.Status(m.Status),
		Metadata:  m.Metadata,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	for i, r := range m.Roles {
		u.Roles[i] = policy.Role(r)
	}
	for _, p := range m.CustomPermissions {
		u.CustomPermissions = append(u.CustomPermissions, permissionFromModel(p))
	}
	if len(m.RoleData) > 0 {
		u.RoleData = make(map[policy.Role]user.RoleData, len(m.RoleData))
		for r, d := range m.RoleData {
			u.RoleData[policy.Role(r)] = user.RoleData{Verified: d.Verified, VerifiedAt: d.VerifiedAt}
		}
	}
	return u
}

func permissionToModel(p policy.Permission) permissionModel {
	return permissionModel{
		Resource:   string(p.Resource),
		Action:     string(p.Action),
		Conditions: p.Conditions,
	}
}

func permissionFromModel(m permissionModel) policy.Permission {
	return policy.Permission{
		Resource:   policy.Resource(m.Resource),
		Action:     policy.Action(m.Action),
		Conditions: m.Conditions,
	}
}

// ──────────────────────────────────────────────────
// Application model
// ──────────────────────────────────────────────────

type verificationStepModel struct {
	Name        string     `bson:"name"`
	Status      string     `bson:"status"`
	CompletedAt *time.Time `bson:"completed_at,omitempty"`
	CompletedBy string     `bson:"completed_by,omitempty"`
	Notes       string     `bson:"notes,omitempty"`
}

type documentModel struct {
	Type     string `bson:"type"`
	URL      string `bson:"url"`
	Name     string `bson:"name"`
	MimeType string `bson:"mime_type"`
	Size     int64  `bson:"size"`
}

type applicationModel struct {
	grove.BaseModel `grove:"table:sentinel_applications"`
	ID              string                  `grove:"id,pk"            bson:"_id"`
	UserID          string                  `grove:"user_id"          bson:"user_id"`
	Role            string                  `grove:"role"             bson:"role"`
	Status          string                  `grove:"status"           bson:"status"`
	Fields          map[string]any          `grove:"fields"           bson:"fields,omitempty"`
	Documents       []documentModel         `grove:"documents"        bson:"documents,omitempty"`
	Steps           []verificationStepModel `grove:"steps"            bson:"steps"`
	RolesAtSubmit   []string                `grove:"roles_at_submit"  bson:"roles_at_submit"`
	ReviewedBy      string                  `grove:"reviewed_by"      bson:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time              `grove:"reviewed_at"      bson:"reviewed_at,omitempty"`
	RejectionReason string                  `grove:"rejection_reason" bson:"rejection_reason,omitempty"`
	CreatedAt       time.Time               `grove:"created_at"       bson:"created_at"`
	UpdatedAt       time.Time               `grove:"updated_at"       bson:"updated_at"`
}

func applicationToModel(a *application.Application) (*applicationModel, error) {
	m := &applicationModel{
		ID:              a.ID.String(),
		UserID:          a.UserID.String(),
		Role:            string(a.Role),
		Status:          string(a.Status),
		RejectionReason: a.RejectionReason,
		ReviewedAt:      a.ReviewedAt,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
	if !a.ReviewedBy.IsNil() {
		m.ReviewedBy = a.ReviewedBy.String()
	}
	if a.Fields != nil {
		raw, err := json.Marshal(a.Fields)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &m.Fields); err != nil {
			return nil, err
		}
	}
	for _, d := range a.Documents {
		m.Documents = append(m.Documents, documentModel(d))
	}
	m.Steps = make([]verificationStepModel, len(a.Steps))
	for i, st := range a.Steps {
		m.Steps[i] = verificationStepModel{
			Name:        st.Name,
			Status:      string(st.Status),
			CompletedAt: st.CompletedAt,
			Notes:       st.Notes,
		}
		if !st.CompletedBy.IsNil() {
			m.Steps[i].CompletedBy = st.CompletedBy.String()
		}
	}
	m.RolesAtSubmit = make([]string, len(a.RolesAtSubmit))
	for i, r := range a.RolesAtSubmit {
		m.RolesAtSubmit[i] = string(r)
	}
	return m, nil
}

func applicationFromModel(m *applicationModel) (*application.Application, error) {
	appID, _ := id.ParseApplicationID(m.ID) //nolint:errcheck // stored IDs are always valid
	userID, _ := id.ParseUserID(m.UserID)   //nolint:errcheck
	a := &application.Application{
		ID:              appID,
		UserID:          userID,
		Role:            policy.Role(m.Role),
		Status:          application.Status(m.Status),
		RejectionReason: m.RejectionReason,
		ReviewedAt:      m.ReviewedAt,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
	if m.ReviewedBy != "" {
		a.ReviewedBy, _ = id.ParseUserID(m.ReviewedBy) //nolint:errcheck
	}
	if len(m.Fields) > 0 {
		raw, err := json.Marshal(m.Fields)
		if err != nil {
			return nil, err
		}
		fs, err := application.DecodeFields(a.Role, raw)
		if err != nil {
			return nil, err
		}
		a.Fields = fs
	}
	for _, d := range m.Documents {
		a.Documents = append(a.Documents, application.Document(d))
	}
	a.Steps = make([]application.VerificationStep, len(m.Steps))
	for i, st := range m.Steps {
		a.Steps[i] = application.VerificationStep{
			Name:        st.Name,
			Status:      application.StepStatus(st.Status),
			CompletedAt: st.CompletedAt,
			Notes:       st.Notes,
		}
		if st.CompletedBy != "" {
			a.Steps[i].CompletedBy, _ = id.ParseUserID(st.CompletedBy) //nolint:errcheck
		}
	}
	a.RolesAtSubmit = make([]policy.Role, len(m.RolesAtSubmit))
	for i, r := range m.RolesAtSubmit {
		a.RolesAtSubmit[i] = policy.Role(r)
	}
	return a, nil
}

// ──────────────────────────────────────────────────
// Audit model
// ──────────────────────────────────────────────────

type auditModel struct {
	grove.BaseModel `grove:"table:sentinel_audit_logs"`
	ID              string         `grove:"id,pk"        bson:"_id"`
	Event           string         `grove:"event"        bson:"event"`
	ActorID         string         `grove:"actor_id"     bson:"actor_id,omitempty"`
	SubjectID       string         `grove:"subject_id"   bson:"subject_id,omitempty"`
	TargetID        string         `grove:"target_id"    bson:"target_id,omitempty"`
	Decision        string         `grove:"decision"     bson:"decision,omitempty"`
	Reason          string         `grove:"reason"       bson:"reason,omitempty"`
	SubjectRoles    []string       `grove:"subject_roles" bson:"subject_roles,omitempty"`
	RequestIP       string         `grove:"request_ip"   bson:"request_ip,omitempty"`
	UserAgent       string         `grove:"user_agent"   bson:"user_agent,omitempty"`
	EvalTimeNs      int64          `grove:"eval_time_ns" bson:"eval_time_ns,omitempty"`
	Metadata        map[string]any `grove:"metadata"     bson:"metadata,omitempty"`
	CreatedAt       time.Time      `grove:"created_at"   bson:"created_at"`
}

func auditToModel(e *audit.Entry) *auditModel {
	m := &auditModel{
		ID:           e.ID.String(),
		Event:        e.Event,
		TargetID:     e.TargetID,
		Decision:     e.Decision,
		Reason:       e.Reason,
		SubjectRoles: append([]string(nil), e.SubjectRoles...),
		RequestIP:    e.RequestIP,
		UserAgent:    e.UserAgent,
		EvalTimeNs:   e.EvalTimeNs,
		Metadata:     e.Metadata,
		CreatedAt:    e.CreatedAt,
	}
	if !e.ActorID.IsNil() {
		m.ActorID = e.ActorID.String()
	}
	if !e.SubjectID.IsNil() {
		m.SubjectID = e.SubjectID.String()
	}
	return m
}

func auditFromModel(m *auditModel) *audit.Entry {
	aid, _ := id.ParseAuditLogID(m.ID) //nolint:errcheck // stored IDs are always valid
	e := &audit.Entry{
		ID:           aid,
		Event:        m.Event,
		TargetID:     m.TargetID,
		Decision:     m.Decision,
		Reason:       m.Reason,
		SubjectRoles: append([]string(nil), m.SubjectRoles...),
		RequestIP:    m.RequestIP,
		UserAgent:    m.UserAgent,
		EvalTimeNs:   m.EvalTimeNs,
		Metadata:     m.Metadata,
		CreatedAt:    m.CreatedAt,
	}
	if m.ActorID != "" {
		e.ActorID, _ = id.ParseUserID(m.ActorID) //nolint:errcheck
	}
	if m.SubjectID != "" {
		e.SubjectID, _ = id.ParseUserID(m.SubjectID) //nolint:errcheck
	}
	return e
}
