package model

import "strings"

// Canonical categorical values. Storage, validation and display all use these
// lowercase forms; anything else is normalized at the boundary.
const (
	ExperienceTypeIntern    = "intern"
	ExperienceTypePlacement = "placement"

	AssessmentTypeOnline    = "online_assessment"
	AssessmentTypeInterview = "interview"

	ResultSelected   = "selected"
	ResultWaitlisted = "waitlisted"
	ResultRejected   = "rejected"
)

var (
	ExperienceTypes = []string{ExperienceTypeIntern, ExperienceTypePlacement}
	AssessmentTypes = []string{AssessmentTypeOnline, AssessmentTypeInterview}
	Results         = []string{ResultSelected, ResultWaitlisted, ResultRejected}
)

var labels = map[string]map[string]string{
	"experience_type": {
		ExperienceTypeIntern:    "Internship",
		ExperienceTypePlacement: "Placement",
	},
	"assessment_type": {
		AssessmentTypeOnline:    "Online Assessment",
		AssessmentTypeInterview: "Interview",
	},
	"result": {
		ResultSelected:   "Selected",
		ResultWaitlisted: "Waitlisted",
		ResultRejected:   "Rejected",
	},
}

var aliases = map[string]map[string]string{
	"experience_type": {
		"internship": ExperienceTypeIntern,
	},
	"assessment_type": {
		"online assessment": AssessmentTypeOnline,
		"online-assessment": AssessmentTypeOnline,
		"oa":                AssessmentTypeOnline,
	},
	"result": {
		"waitlist": ResultWaitlisted,
	},
}

// Label returns the display label for a categorical value, or the value itself
// when field or value is unknown.
func Label(field, value string) string {
	if l, ok := labels[field][value]; ok {
		return l
	}
	return value
}

// Labels returns every canonical value of field mapped to its label.
func Labels(field string) map[string]string {
	out := make(map[string]string, len(labels[field]))
	for k, v := range labels[field] {
		out[k] = v
	}
	return out
}

func NormalizeExperienceType(v string) string {
	return normalize("experience_type", v)
}

func NormalizeAssessmentType(v string) string {
	return normalize("assessment_type", v)
}

func NormalizeResult(v string) string {
	return normalize("result", v)
}

// normalize folds legacy casings ("Intern"), display labels ("Online Assessment")
// and known aliases onto the canonical value. Unknown input comes back trimmed
// and lowercased so validation can reject it.
func normalize(field, v string) string {
	key := strings.ToLower(strings.TrimSpace(v))
	if key == "" {
		return ""
	}
	if _, ok := labels[field][key]; ok {
		return key
	}
	for canonical, label := range labels[field] {
		if strings.ToLower(label) == key {
			return canonical
		}
	}
	if canonical, ok := aliases[field][key]; ok {
		return canonical
	}
	return key
}

func IsExperienceType(v string) bool { return contains(ExperienceTypes, v) }
func IsAssessmentType(v string) bool { return contains(AssessmentTypes, v) }
func IsResult(v string) bool         { return contains(Results, v) }

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
