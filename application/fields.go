package application

import (
	"encoding/json"
	"fmt"
	"regexp"
	"unicode/utf8"

	"github.com/xraph/sentinel/errs"
	"github.com/xraph/sentinel/policy"
)

// FieldSet is the closed set of role-specific structured answers submitted
// with an application. Exactly one variant exists per applicable role;
// DecodeFields selects the variant by the requested role.
type FieldSet interface {
	// Role returns the role this field set applies to.
	Role() policy.Role

	// Validate checks the field set against the role's schema. Violations
	// wrap errs.ErrValidation and name the offending field.
	Validate() error
}

var (
	expectedGraduationRe = regexp.MustCompile(`^\d{4}(-\d{2})?$`)
	specializationRe     = regexp.MustCompile(`^[a-zA-Z0-9\s]{3,50}$`)
)

// DecodeFields decodes the raw fields payload into the variant for the
// requested role. Unknown keys are rejected so malformed payloads fail at
// the boundary instead of validating as zero values.
func DecodeFields(role policy.Role, raw json.RawMessage) (FieldSet, error) {
	var fs FieldSet
	switch role {
	case policy.RoleStudent:
		fs = &StudentFields{}
	case policy.RoleMentor:
		fs = &MentorFields{}
	case policy.RoleWriter:
		fs = &WriterFields{}
	case policy.RoleSeller:
		fs = &SellerFields{}
	default:
		return nil, fmt.Errorf("%w: no application field schema for role %q", policy.ErrInvalidRole, role)
	}

	if len(raw) > 0 {
		if err := json.Unmarshal(raw, fs); err != nil {
			return nil, fmt.Errorf("%w: malformed fields payload: %v", errs.ErrValidation, err)
		}
	}
	return fs, nil
}

func missing(field string) error {
	return fmt.Errorf("%w: missing required field %q", errs.ErrValidation, field)
}

func lengthBetween(field, value string, min, max int) error {
	n := utf8.RuneCountInString(value)
	if n < min || n > max {
		return fmt.Errorf("%w: field %q must be between %d and %d characters", errs.ErrValidation, field, min, max)
	}
	return nil
}

// Qualification is one educational qualification claimed by an applicant.
type Qualification struct {
	Degree      string `json:"degree"`
	Institution string `json:"institution"`
	Year        int    `json:"year"`
	Field       string `json:"field"`
}

// ExperienceClaim is the applicant's professional experience summary.
type ExperienceClaim struct {
	Years   int    `json:"years"`
	Details string `json:"details"`
}

// LanguageProficiency pairs a language with a claimed proficiency level.
type LanguageProficiency struct {
	Language         string `json:"language"`
	ProficiencyLevel string `json:"proficiencyLevel"`
}

// ──────────────────────────────────────────────────
// Student
// ──────────────────────────────────────────────────

// StudentFields are the answers required for a student application.
type StudentFields struct {
	Reason             string   `json:"reason"`
	AdditionalInfo     string   `json:"additionalInfo,omitempty"`
	EducationLevel     string   `json:"educationLevel"`
	Institution        string   `json:"institution"`
	FieldOfStudy       string   `json:"fieldOfStudy"`
	ExpectedGraduation string   `json:"expectedGraduation"`
	AcademicInterests  []string `json:"academicInterests"`
	LearningGoals      string   `json:"learningGoals"`
}

// Role implements FieldSet.
func (f *StudentFields) Role() policy.Role { return policy.RoleStudent }

// Validate implements FieldSet.
func (f *StudentFields) Validate() error {
	if f.Reason == "" {
		return missing("reason")
	}
	switch f.EducationLevel {
	case "high_school", "undergraduate", "graduate", "other":
	case "":
		return missing("educationLevel")
	default:
		return fmt.Errorf("%w: field %q: invalid education level %q", errs.ErrValidation, "educationLevel", f.EducationLevel)
	}
	if f.Institution == "" {
		return missing("institution")
	}
	if f.FieldOfStudy == "" {
		return missing("fieldOfStudy")
	}
	if !expectedGraduationRe.MatchString(f.ExpectedGraduation) {
		return fmt.Errorf("%w: field %q must be YYYY or YYYY-MM", errs.ErrValidation, "expectedGraduation")
	}
	if len(f.AcademicInterests) < 1 || len(f.AcademicInterests) > 5 {
		return fmt.Errorf("%w: field %q requires between 1 and 5 entries", errs.ErrValidation, "academicInterests")
	}
	return lengthBetween("learningGoals", f.LearningGoals, 100, 1000)
}

// ──────────────────────────────────────────────────
// Mentor
// ──────────────────────────────────────────────────

// MentorFields are the answers required for a mentor application.
type MentorFields struct {
	Reason              string          `json:"reason"`
	AdditionalInfo      string          `json:"additionalInfo,omitempty"`
	Qualifications      []Qualification `json:"qualifications"`
	Experience          ExperienceClaim `json:"experience"`
	Specializations     []string        `json:"specializations"`
	TeachingMethodology string          `json:"teachingMethodology"`
	TeachingLanguages   []string        `json:"teachingLanguages"`
}

// Role implements FieldSet.
func (f *MentorFields) Role() policy.Role { return policy.RoleMentor }

// Validate implements FieldSet.
func (f *MentorFields) Validate() error {
	if f.Reason == "" {
		return missing("reason")
	}
	if len(f.Qualifications) == 0 {
		return missing("qualifications")
	}
	for i, q := range f.Qualifications {
		switch {
		case q.Degree == "":
			return fmt.Errorf("%w: field %q: entry %d: degree is required", errs.ErrValidation, "qualifications", i)
		case q.Institution == "":
			return fmt.Errorf("%w: field %q: entry %d: institution is required", errs.ErrValidation, "qualifications", i)
		case q.Year < 1900:
			return fmt.Errorf("%w: field %q: entry %d: invalid year %d", errs.ErrValidation, "qualifications", i, q.Year)
		case q.Field == "":
			return fmt.Errorf("%w: field %q: entry %d: field of study is required", errs.ErrValidation, "qualifications", i)
		}
	}
	if f.Experience.Years < 1 {
		return fmt.Errorf("%w: field %q requires at least 1 year of teaching experience", errs.ErrValidation, "experience")
	}
	if f.Experience.Details == "" {
		return fmt.Errorf("%w: field %q: details are required", errs.ErrValidation, "experience")
	}
	if len(f.Specializations) < 1 || len(f.Specializations) > 5 {
		return fmt.Errorf("%w: field %q requires between 1 and 5 entries", errs.ErrValidation, "specializations")
	}
	for _, s := range f.Specializations {
		if !specializationRe.MatchString(s) {
			return fmt.Errorf("%w: field %q: each entry must be 3-50 alphanumeric characters", errs.ErrValidation, "specializations")
		}
	}
	if f.TeachingMethodology == "" {
		return missing("teachingMethodology")
	}
	if err := lengthBetween("teachingMethodology", f.TeachingMethodology, 100, 1000); err != nil {
		return err
	}
	if len(f.TeachingLanguages) == 0 {
		return missing("teachingLanguages")
	}
	return nil
}

// ──────────────────────────────────────────────────
// Writer
// ──────────────────────────────────────────────────

// WriterFields are the answers required for a writer application.
type WriterFields struct {
	Reason          string                `json:"reason"`
	AdditionalInfo  string                `json:"additionalInfo,omitempty"`
	Specializations []string              `json:"specializations"`
	Languages       []LanguageProficiency `json:"languages"`
	Experience      ExperienceClaim       `json:"experience"`
	WritingStyle    string                `json:"writingStyle"`
	Portfolio       []string              `json:"portfolio,omitempty"`
}

// Role implements FieldSet.
func (f *WriterFields) Role() policy.Role { return policy.RoleWriter }

// Validate implements FieldSet.
func (f *WriterFields) Validate() error {
	if f.Reason == "" {
		return missing("reason")
	}
	if len(f.Specializations) < 1 || len(f.Specializations) > 5 {
		return fmt.Errorf("%w: field %q requires between 1 and 5 entries", errs.ErrValidation, "specializations")
	}
	if len(f.Languages) == 0 {
		return missing("languages")
	}
	for i, l := range f.Languages {
		if l.Language == "" || l.ProficiencyLevel == "" {
			return fmt.Errorf("%w: field %q: entry %d: language and proficiency level are required", errs.ErrValidation, "languages", i)
		}
	}
	if f.Experience.Years < 1 {
		return fmt.Errorf("%w: field %q requires at least 1 year of experience", errs.ErrValidation, "experience")
	}
	if f.WritingStyle == "" {
		return missing("writingStyle")
	}
	return lengthBetween("writingStyle", f.WritingStyle, 200, 1000)
}

// ──────────────────────────────────────────────────
// Seller
// ──────────────────────────────────────────────────

// BusinessDetails identifies the applicant's business.
type BusinessDetails struct {
	Name string `json:"businessName"`
	Type string `json:"businessType"`
}

// BusinessAddress is the registered business address.
type BusinessAddress struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// SellerFields are the answers required for a seller application.
type SellerFields struct {
	Reason            string          `json:"reason"`
	AdditionalInfo    string          `json:"additionalInfo,omitempty"`
	Business          BusinessDetails `json:"businessDetails"`
	Address           BusinessAddress `json:"businessAddress"`
	ProductCategories []string        `json:"productCategories"`
	BusinessPlan      string          `json:"businessPlan"`
}

// Role implements FieldSet.
func (f *SellerFields) Role() policy.Role { return policy.RoleSeller }

// Validate implements FieldSet.
func (f *SellerFields) Validate() error {
	if f.Reason == "" {
		return missing("reason")
	}
	if f.Business.Name == "" {
		return fmt.Errorf("%w: field %q: business name is required", errs.ErrValidation, "businessDetails")
	}
	if f.Business.Type == "" {
		return fmt.Errorf("%w: field %q: business type is required", errs.ErrValidation, "businessDetails")
	}
	if f.Address.Street == "" || f.Address.City == "" || f.Address.State == "" ||
		f.Address.PostalCode == "" || f.Address.Country == "" {
		return fmt.Errorf("%w: field %q: street, city, state, postal code, and country are required", errs.ErrValidation, "businessAddress")
	}
	if len(f.ProductCategories) < 1 || len(f.ProductCategories) > 10 {
		return fmt.Errorf("%w: field %q requires between 1 and 10 entries", errs.ErrValidation, "productCategories")
	}
	return lengthBetween("businessPlan", f.BusinessPlan, 300, 2000)
}
