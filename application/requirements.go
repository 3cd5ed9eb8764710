package application

import (
	"fmt"
	"strings"

	"github.com/xraph/sentinel/errs"
	"github.com/xraph/sentinel/policy"
)

// Verification step names.
const (
	StepDocumentVerification      = "document_verification"
	StepBackgroundCheck           = "background_check"
	StepQualificationVerification = "qualification_verification"
	StepExpertiseValidation       = "expertise_validation"
	StepTeachingExperienceCheck   = "teaching_experience_check"
	StepBusinessVerification      = "business_verification"
	StepPortfolioReview           = "portfolio_review"
	StepLanguageProficiencyCheck  = "language_proficiency_check"
	StepPlagiarismHistoryCheck    = "plagiarism_history_check"
)

// Document types.
const (
	DocumentCV                    = "cv"
	DocumentIdentityProof         = "identity_proof"
	DocumentTeachingCertification = "teaching_certification"
	DocumentPortfolio             = "portfolio"
	DocumentLanguageCertificates  = "language_certificates"
)

// Requirements describes what a role application must carry before it can
// be submitted, and the verification steps it passes through afterwards.
type Requirements struct {
	// AutoApprove grants the role immediately on submission; no
	// verification steps are created.
	AutoApprove bool

	// RequiredDocuments must all be present at submission.
	RequiredDocuments []string

	// OptionalDocuments are accepted but not required.
	OptionalDocuments []string

	// VerificationSteps are created in order, all pending.
	VerificationSteps []string

	// MaxDocumentSize is the per-document size limit in bytes.
	MaxDocumentSize int64

	// AllowedFormats lists the acceptable MIME types for documents.
	AllowedFormats []string
}

const (
	mib = 1 << 20

	defaultMaxDocumentSize = 10 * mib
)

var defaultFormats = []string{"application/pdf", "image/jpeg", "image/png"}

var roleRequirements = map[policy.Role]Requirements{
	policy.RoleStudent: {
		AutoApprove:     true,
		MaxDocumentSize: defaultMaxDocumentSize,
		AllowedFormats:  defaultFormats,
	},
	policy.RoleMentor: {
		RequiredDocuments: []string{DocumentCV, DocumentIdentityProof},
		OptionalDocuments: []string{DocumentTeachingCertification},
		VerificationSteps: []string{
			StepDocumentVerification,
			StepBackgroundCheck,
			StepQualificationVerification,
			StepExpertiseValidation,
			StepTeachingExperienceCheck,
		},
		MaxDocumentSize: defaultMaxDocumentSize,
		AllowedFormats:  defaultFormats,
	},
	policy.RoleWriter: {
		RequiredDocuments: []string{DocumentPortfolio, DocumentLanguageCertificates, DocumentIdentityProof},
		VerificationSteps: []string{
			StepDocumentVerification,
			StepBackgroundCheck,
			StepPortfolioReview,
			StepLanguageProficiencyCheck,
			StepPlagiarismHistoryCheck,
		},
		MaxDocumentSize: 25 * mib,
		AllowedFormats:  defaultFormats,
	},
	policy.RoleSeller: {
		RequiredDocuments: []string{DocumentIdentityProof},
		VerificationSteps: []string{
			StepDocumentVerification,
			StepBackgroundCheck,
			StepBusinessVerification,
		},
		MaxDocumentSize: defaultMaxDocumentSize,
		AllowedFormats:  defaultFormats,
	},
}

// RequirementsFor returns the submission requirements for an applicable
// role. Roles without an application track, including admin, are rejected.
func RequirementsFor(role policy.Role) (Requirements, error) {
	req, ok := roleRequirements[role]
	if !ok {
		return Requirements{}, fmt.Errorf("%w: role %q does not accept applications", policy.ErrInvalidRole, role)
	}
	return req, nil
}

// NewSteps builds the pending verification step list for the role.
func (r Requirements) NewSteps() []VerificationStep {
	steps := make([]VerificationStep, len(r.VerificationSteps))
	for i, name := range r.VerificationSteps {
		steps[i] = VerificationStep{Name: name, Status: StepPending}
	}
	return steps
}

// ExpectsDocument reports whether the type appears in the required or
// optional document sets.
func (r Requirements) ExpectsDocument(docType string) bool {
	for _, t := range r.RequiredDocuments {
		if t == docType {
			return true
		}
	}
	for _, t := range r.OptionalDocuments {
		if t == docType {
			return true
		}
	}
	return false
}

// FormatAllowed reports whether the mime type is accepted for uploads.
func (r Requirements) FormatAllowed(mimeType string) bool {
	return formatAllowed(r.AllowedFormats, mimeType)
}

// ValidateDocuments checks the submitted documents against the role's
// requirements: every required type present exactly once, no types outside
// the required and optional sets, and each document within the size and
// format limits.
func (r Requirements) ValidateDocuments(docs []Document) error {
	allowed := make(map[string]bool, len(r.RequiredDocuments)+len(r.OptionalDocuments))
	for _, t := range r.RequiredDocuments {
		allowed[t] = true
	}
	for _, t := range r.OptionalDocuments {
		allowed[t] = true
	}

	seen := make(map[string]bool, len(docs))
	for _, d := range docs {
		if err := d.Validate(); err != nil {
			return err
		}
		if !allowed[d.Type] {
			return fmt.Errorf("%w: unexpected document type %q", errs.ErrValidation, d.Type)
		}
		if seen[d.Type] {
			return fmt.Errorf("%w: duplicate document type %q", errs.ErrValidation, d.Type)
		}
		seen[d.Type] = true

		if d.Size > r.MaxDocumentSize {
			return fmt.Errorf("%w: document %q exceeds the %d byte limit", errs.ErrValidation, d.Type, r.MaxDocumentSize)
		}
		if !formatAllowed(r.AllowedFormats, d.MimeType) {
			return fmt.Errorf("%w: document %q has unsupported format %q", errs.ErrValidation, d.Type, d.MimeType)
		}
	}

	var absent []string
	for _, t := range r.RequiredDocuments {
		if !seen[t] {
			absent = append(absent, t)
		}
	}
	if len(absent) > 0 {
		return fmt.Errorf("%w: missing required documents: %s", errs.ErrValidation, strings.Join(absent, ", "))
	}
	return nil
}

func formatAllowed(formats []string, mimeType string) bool {
	for _, f := range formats {
		if f == mimeType {
			return true
		}
	}
	return false
}
