package app

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"experienceboard/internal/model"
	"experienceboard/internal/richtext"
)

const (
	minGraduatingYear = 1900
	maxGraduatingYear = 2100
)

// ValidationError is a field check that failed before any store call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ExperienceInput is the submitted form. GraduatingYear is kept as text so
// that non-numeric input reaches validation.
type ExperienceInput struct {
	CompanyName           string
	ExperienceType        string
	AssessmentType        string
	CandidateName         string
	GraduatingYear        string
	Branch                string
	Result                string
	ExperienceDescription string
	AdditionalTips        *string
}

func invalid(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// buildExperience cleans, validates and converts in. Checks run in a fixed
// order and the first failure is returned.
func buildExperience(in ExperienceInput) (*model.Experience, error) {
	company := strings.TrimSpace(stripControl(in.CompanyName, false))
	candidate := strings.TrimSpace(stripControl(in.CandidateName, false))
	expType := model.NormalizeExperienceType(stripControl(in.ExperienceType, false))
	assessType := model.NormalizeAssessmentType(stripControl(in.AssessmentType, false))
	yearRaw := strings.TrimSpace(stripControl(in.GraduatingYear, false))
	branch := strings.TrimSpace(stripControl(in.Branch, false))
	result := model.NormalizeResult(stripControl(in.Result, false))
	description := richtext.Sanitize(stripControl(in.ExperienceDescription, true))

	switch {
	case company == "":
		return nil, invalid("company_name", "Company name is required.")
	case candidate == "":
		return nil, invalid("candidate_name", "Your name is required.")
	case expType == "":
		return nil, invalid("experience_type", "Please select experience type.")
	case assessType == "":
		return nil, invalid("assessment_type", "Please select assessment type.")
	case yearRaw == "":
		return nil, invalid("graduating_year", "Graduating year is required.")
	case branch == "":
		return nil, invalid("branch", "Branch is required.")
	case result == "":
		return nil, invalid("result", "Please select result.")
	case richtext.IsBlank(description):
		return nil, invalid("experience_description", "Experience description is required.")
	}

	year, err := strconv.Atoi(yearRaw)
	if err != nil || year < minGraduatingYear || year > maxGraduatingYear {
		return nil, invalid("graduating_year", "Please enter a valid graduating year.")
	}

	switch {
	case !model.IsExperienceType(expType):
		return nil, invalid("experience_type", "Invalid experience type selected.")
	case !model.IsAssessmentType(assessType):
		return nil, invalid("assessment_type", "Invalid assessment type selected.")
	case !model.IsResult(result):
		return nil, invalid("result", "Invalid result selected.")
	}

	var tips *string
	if in.AdditionalTips != nil {
		cleaned := stripControl(*in.AdditionalTips, true)
		if !richtext.IsBlank(cleaned) {
			tips = richtext.SanitizePtr(&cleaned)
		}
	}

	return &model.Experience{
		CompanyName:           company,
		ExperienceType:        expType,
		AssessmentType:        assessType,
		CandidateName:         candidate,
		GraduatingYear:        &year,
		Branch:                branch,
		Result:                result,
		ExperienceDescription: description,
		AdditionalTips:        tips,
	}, nil
}

// stripControl removes control characters. Markup keeps line breaks and tabs.
func stripControl(s string, markup bool) string {
	return strings.Map(func(r rune) rune {
		if markup && (r == '\n' || r == '\r' || r == '\t') {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}
