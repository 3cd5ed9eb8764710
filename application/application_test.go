package application

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/xraph/sentinel/errs"
	"github.com/xraph/sentinel/id"
	"github.com/xraph/sentinel/policy"
)

func validMentorFields() *MentorFields {
	return &MentorFields{
		Reason: "I want to mentor students in backend engineering.",
		Qualifications: []Qualification{
			{Degree: "MSc", Institution: "ETH Zurich", Year: 2015, Field: "Computer Science"},
		},
		Experience:          ExperienceClaim{Years: 6, Details: "Six years teaching distributed systems."},
		Specializations:     []string{"Distributed Systems", "Databases"},
		TeachingMethodology: strings.Repeat("Project-based learning with weekly code reviews. ", 4),
		TeachingLanguages:   []string{"English"},
	}
}

func newMentorApplication(t *testing.T) *Application {
	t.Helper()
	req, err := RequirementsFor(policy.RoleMentor)
	if err != nil {
		t.Fatal(err)
	}
	now := time.Now().UTC()
	return &Application{
		ID:            id.NewApplicationID(),
		UserID:        id.NewUserID(),
		Role:          policy.RoleMentor,
		Status:        StatusPending,
		Fields:        validMentorFields(),
		Steps:         req.NewSteps(),
		RolesAtSubmit: []policy.Role{policy.RoleUser},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestRequirementsFor(t *testing.T) {
	req, err := RequirementsFor(policy.RoleStudent)
	if err != nil {
		t.Fatal(err)
	}
	if !req.AutoApprove {
		t.Fatal("expected student applications to auto-approve")
	}
	if len(req.VerificationSteps) != 0 {
		t.Fatalf("expected no student verification steps, got %v", req.VerificationSteps)
	}

	req, err = RequirementsFor(policy.RoleMentor)
	if err != nil {
		t.Fatal(err)
	}
	if req.AutoApprove {
		t.Fatal("mentor applications must not auto-approve")
	}
	if len(req.VerificationSteps) != 5 {
		t.Fatalf("expected 5 mentor steps, got %d", len(req.VerificationSteps))
	}
	if req.VerificationSteps[0] != StepDocumentVerification {
		t.Fatalf("expected document_verification first, got %s", req.VerificationSteps[0])
	}

	if _, err := RequirementsFor(policy.RoleAdmin); !errors.Is(err, policy.ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole for admin, got %v", err)
	}
	if _, err := RequirementsFor(policy.RoleUser); !errors.Is(err, policy.ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole for base role, got %v", err)
	}
}

func TestValidateDocuments(t *testing.T) {
	req, _ := RequirementsFor(policy.RoleMentor)

	cv := Document{Type: DocumentCV, URL: "blob://a", Name: "cv.pdf", MimeType: "application/pdf", Size: 1024}
	idp := Document{Type: DocumentIdentityProof, URL: "blob://b", Name: "id.png", MimeType: "image/png", Size: 2048}
	cert := Document{Type: DocumentTeachingCertification, URL: "blob://c", Name: "cert.pdf", MimeType: "application/pdf", Size: 512}

	if err := req.ValidateDocuments([]Document{cv, idp, cert}); err != nil {
		t.Fatalf("expected documents to validate: %v", err)
	}

	tests := []struct {
		name string
		docs []Document
		want string
	}{
		{"missing required", []Document{cv}, "identity_proof"},
		{"unexpected type", []Document{cv, idp, {Type: DocumentPortfolio, URL: "blob://d", Name: "p.pdf", MimeType: "application/pdf", Size: 1}}, "unexpected document type"},
		{"duplicate type", []Document{cv, cv, idp}, "duplicate document type"},
		{"oversized", []Document{{Type: DocumentCV, URL: "blob://a", Name: "cv.pdf", MimeType: "application/pdf", Size: 11 << 20}, idp}, "byte limit"},
		{"bad format", []Document{{Type: DocumentCV, URL: "blob://a", Name: "cv.zip", MimeType: "application/zip", Size: 1}, idp}, "unsupported format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := req.ValidateDocuments(tt.docs)
			if !errors.Is(err, errs.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestDecodeFields(t *testing.T) {
	raw, err := json.Marshal(validMentorFields())
	if err != nil {
		t.Fatal(err)
	}
	fs, err := DecodeFields(policy.RoleMentor, raw)
	if err != nil {
		t.Fatal(err)
	}
	if fs.Role() != policy.RoleMentor {
		t.Fatalf("expected mentor field set, got %s", fs.Role())
	}
	if err := fs.Validate(); err != nil {
		t.Fatalf("expected fields to validate: %v", err)
	}

	if _, err := DecodeFields(policy.RoleAdmin, raw); !errors.Is(err, policy.ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
}

func TestMentorFieldsMissingMethodology(t *testing.T) {
	f := validMentorFields()
	f.TeachingMethodology = ""

	err := f.Validate()
	if !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !strings.Contains(err.Error(), "teachingMethodology") {
		t.Fatalf("error %q does not name the missing field", err)
	}
}

func TestMentorFieldsMethodologyLength(t *testing.T) {
	f := validMentorFields()
	f.TeachingMethodology = "too short"

	err := f.Validate()
	if !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !strings.Contains(err.Error(), "teachingMethodology") {
		t.Fatalf("error %q does not name the field", err)
	}
}

func TestStudentFieldsValidate(t *testing.T) {
	f := &StudentFields{
		Reason:             "I want structured courses.",
		EducationLevel:     "undergraduate",
		Institution:        "TU Delft",
		FieldOfStudy:       "Mathematics",
		ExpectedGraduation: "2027-06",
		AcademicInterests:  []string{"statistics"},
		LearningGoals:      strings.Repeat("Deepen my applied statistics skills. ", 4),
	}
	if err := f.Validate(); err != nil {
		t.Fatalf("expected fields to validate: %v", err)
	}

	f.ExpectedGraduation = "soon"
	if err := f.Validate(); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSellerFieldsValidate(t *testing.T) {
	f := &SellerFields{
		Reason:            "I sell course materials.",
		Business:          BusinessDetails{Name: "Acme Press", Type: "sole_proprietorship"},
		Address:           BusinessAddress{Street: "1 Main St", City: "Utrecht", State: "UT", PostalCode: "3511", Country: "NL"},
		ProductCategories: []string{"books"},
		BusinessPlan:      strings.Repeat("Publish and distribute course companion books. ", 8),
	}
	if err := f.Validate(); err != nil {
		t.Fatalf("expected fields to validate: %v", err)
	}

	f.Address.Country = ""
	if err := f.Validate(); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestResolveStepRecomputesStatus(t *testing.T) {
	a := newMentorApplication(t)
	reviewer := id.NewUserID()
	now := time.Now().UTC()

	// Resolving one of several steps moves the application to in_review.
	if err := a.ResolveStep(StepDocumentVerification, StepCompleted, reviewer, now, "ok"); err != nil {
		t.Fatal(err)
	}
	if a.Status != StatusInReview {
		t.Fatalf("expected in_review, got %s", a.Status)
	}

	// A step resolves exactly once.
	err := a.ResolveStep(StepDocumentVerification, StepCompleted, reviewer, now, "")
	if !errors.Is(err, errs.ErrStateConflict) {
		t.Fatalf("expected state conflict on re-resolution, got %v", err)
	}

	// Unknown step names are rejected.
	err = a.ResolveStep("credit_check", StepCompleted, reviewer, now, "")
	if !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected not found for unknown step, got %v", err)
	}

	// Completing the remaining steps approves the application.
	for _, name := range a.PendingSteps() {
		if err := a.ResolveStep(name, StepCompleted, reviewer, now, ""); err != nil {
			t.Fatal(err)
		}
	}
	if a.Status != StatusApproved {
		t.Fatalf("expected approved after all steps complete, got %s", a.Status)
	}
	if a.ReviewedBy != reviewer || a.ReviewedAt == nil {
		t.Fatal("expected reviewer recorded on approval")
	}
}

func TestResolveStepFailureRejects(t *testing.T) {
	a := newMentorApplication(t)
	reviewer := id.NewUserID()
	now := time.Now().UTC()

	for _, name := range a.PendingSteps() {
		outcome := StepCompleted
		if name == StepBackgroundCheck {
			outcome = StepFailed
		}
		if err := a.ResolveStep(name, outcome, reviewer, now, ""); err != nil {
			t.Fatal(err)
		}
	}
	if a.Status != StatusRejected {
		t.Fatalf("expected rejected after failed step, got %s", a.Status)
	}
	if a.RejectionReason == "" {
		t.Fatal("expected a default rejection reason")
	}

	// Terminal applications accept no further resolutions.
	err := a.ResolveStep(StepDocumentVerification, StepCompleted, reviewer, now, "")
	if !errors.Is(err, errs.ErrStateConflict) {
		t.Fatalf("expected state conflict on terminal application, got %v", err)
	}
}

func TestApproveGuards(t *testing.T) {
	a := newMentorApplication(t)
	reviewer := id.NewUserID()
	now := time.Now().UTC()

	// Approval is blocked while steps are pending.
	err := a.Approve(reviewer, now)
	if !errors.Is(err, errs.ErrStateConflict) {
		t.Fatalf("expected state conflict with pending steps, got %v", err)
	}
}

func TestRejectRequiresReason(t *testing.T) {
	a := newMentorApplication(t)
	reviewer := id.NewUserID()
	now := time.Now().UTC()

	if err := a.Reject(reviewer, now, ""); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("expected validation error for empty reason, got %v", err)
	}
	if err := a.Reject(reviewer, now, "incomplete qualifications"); err != nil {
		t.Fatal(err)
	}
	if a.Status != StatusRejected {
		t.Fatalf("expected rejected, got %s", a.Status)
	}
	if err := a.Reject(reviewer, now, "again"); !errors.Is(err, errs.ErrStateConflict) {
		t.Fatalf("expected state conflict on double reject, got %v", err)
	}
}

func TestWithdrawable(t *testing.T) {
	a := newMentorApplication(t)
	if !a.Withdrawable() {
		t.Fatal("pending application must be withdrawable")
	}
	a.Status = StatusInReview
	if !a.Withdrawable() {
		t.Fatal("in_review application must be withdrawable")
	}
	a.Status = StatusApproved
	if a.Withdrawable() {
		t.Fatal("approved application must not be withdrawable")
	}
}
