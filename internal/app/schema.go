package app

import (
	"experienceboard/internal/filter"
	"experienceboard/internal/model"
)

const (
	FacetCompany        = "company"
	FacetExperienceType = "experience_type"
	FacetAssessmentType = "assessment_type"
	FacetResult         = "result"
	FacetGraduatingYear = "graduating_year"
	FacetBranch         = "branch"
)

var experienceSchema = filter.Schema[model.Experience]{
	Searchable: []func(model.Experience) string{
		func(e model.Experience) string { return e.CompanyName },
		func(e model.Experience) string { return e.CandidateName },
		func(e model.Experience) string { return e.ExperienceDescription },
		func(e model.Experience) string { return e.Branch },
		func(e model.Experience) string { return e.ExperienceType },
		func(e model.Experience) string { return e.AssessmentType },
		func(e model.Experience) string { return e.Result },
	},
	Facets: []filter.Facet[model.Experience]{
		{Name: FacetCompany, Value: func(e model.Experience) string { return e.CompanyName }},
		{Name: FacetExperienceType, Value: func(e model.Experience) string { return e.ExperienceType }},
		{Name: FacetAssessmentType, Value: func(e model.Experience) string { return e.AssessmentType }},
		{Name: FacetResult, Value: func(e model.Experience) string { return e.Result }},
		{Name: FacetGraduatingYear, Value: func(e model.Experience) string { return e.GraduatingYearString() }, Order: filter.Numeric},
		{Name: FacetBranch, Value: func(e model.Experience) string { return e.Branch }, Match: filter.Contains},
	},
}

// FacetNames lists the query parameters List understands, besides q.
func FacetNames() []string {
	return experienceSchema.FacetNames()
}

// normalizeSelection folds enum facet selections onto canonical values so
// ?experience_type=Internship behaves like ?experience_type=intern.
func normalizeSelection(facet, v string) string {
	if v == filter.Any {
		return v
	}
	switch facet {
	case FacetExperienceType:
		return model.NormalizeExperienceType(v)
	case FacetAssessmentType:
		return model.NormalizeAssessmentType(v)
	case FacetResult:
		return model.NormalizeResult(v)
	default:
		return v
	}
}
