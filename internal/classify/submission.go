package classify

import (
	"regexp"
	"strings"
	"time"

	"github.com/captvenkat/faujnet-backend/internal/utils"
)

// Field names reported by MissingFields and used in clarifications.
const (
	FieldOrganisation = "organisation_name"
	FieldTitle        = "opportunity_title"
	FieldCategory     = "opportunity_category"
	FieldDescription  = "description"
	FieldRelevance    = "military_relevance"
)

const (
	minFieldLength       = 3
	descriptionMaxRunes  = 1000
	descriptionMinLength = 50
	validityDateLayout   = "2006-01-02"
)

// SubmissionFields is the partial record extracted from a SUBMIT message
type SubmissionFields struct {
	Organisation  string
	Title         string
	Category      string
	Description   string
	ValidityStart string
	ValidityEnd   string
}

type fieldLabel struct {
	pattern *regexp.Regexp
	set     func(f *SubmissionFields, v string)
}

func newFieldLabel(set func(f *SubmissionFields, v string), labels ...string) fieldLabel {
	quoted := make([]string, len(labels))
	for i, l := range labels {
		quoted[i] = regexp.QuoteMeta(l)
	}
	return fieldLabel{
		pattern: regexp.MustCompile(`(?i)^[\s*\-•]*(?:` + strings.Join(quoted, "|") + `)\s*:\s*(.*)$`),
		set:     set,
	}
}

// fieldLabels is checked per line in order; the first label family that
// matches a line claims it. Later lines overwrite earlier values.
var fieldLabels = []fieldLabel{
	newFieldLabel(func(f *SubmissionFields, v string) { f.Organisation = v }, "organisation", "organization", "company"),
	newFieldLabel(func(f *SubmissionFields, v string) { f.Title = v }, "title", "position", "role"),
	newFieldLabel(func(f *SubmissionFields, v string) { f.Category = strings.ToUpper(v) }, "category", "type"),
	newFieldLabel(func(f *SubmissionFields, v string) { f.Description = v }, "description", "details"),
	newFieldLabel(func(f *SubmissionFields, v string) { f.ValidityStart = v }, "valid from", "start date", "from"),
	newFieldLabel(func(f *SubmissionFields, v string) { f.ValidityEnd = v }, "valid until", "end date", "deadline"),
}

var orgPhrase = regexp.MustCompile(`\b(?:from|at|by)\s+([A-Z][A-Za-z&]*(?:\s+[A-Z&][A-Za-z&.]*)*)`)

// submissionCategories maps free-text keywords to a category. Order matters.
var submissionCategories = RuleTable[string]{
	{Tag: "EMPLOYMENT", Keywords: []string{"job", "vacancy", "hiring", "recruitment", "position"}},
	{Tag: "TRAINING", Keywords: []string{"training", "course", "workshop", "certification"}},
	{Tag: "SCHOLARSHIP", Keywords: []string{"scholarship", "fellowship", "grant", "stipend"}},
	{Tag: "EDUCATION", Keywords: []string{"education", "degree", "study", "admission"}},
	{Tag: "ENTREPRENEURSHIP", Keywords: []string{"startup", "business", "entrepreneur", "venture"}},
	{Tag: "WELFARE", Keywords: []string{"welfare", "benefit", "support", "assistance"}},
	{Tag: "HEALTHCARE", Keywords: []string{"health", "medical", "hospital", "treatment"}},
	{Tag: "HOUSING", Keywords: []string{"housing", "accommodation", "residence", "quarter"}},
}

// ExtractFields runs the structured label pass over lines, then fills unset
// fields from the normalized text. today is used for a missing start date.
func ExtractFields(lines []string, normalized string, today time.Time) SubmissionFields {
	var f SubmissionFields
	for _, line := range lines {
		for _, label := range fieldLabels {
			if m := label.pattern.FindStringSubmatch(line); m != nil {
				label.set(&f, strings.TrimSpace(m[1]))
				break
			}
		}
	}

	if f.Organisation == "" {
		if m := orgPhrase.FindStringSubmatch(normalized); m != nil {
			f.Organisation = strings.TrimSpace(m[1])
		}
	}
	if f.Category == "" {
		f.Category, _ = submissionCategories.Match(normalized)
	}
	if f.Description == "" && len(normalized) > descriptionMinLength {
		f.Description = utils.TruncateRunes(normalized, descriptionMaxRunes)
	}
	if f.ValidityStart == "" {
		f.ValidityStart = today.UTC().Format(validityDateLayout)
	}
	return f
}

// MissingFields lists required fields shorter than the minimum length.
func MissingFields(f SubmissionFields) []string {
	var missing []string
	required := []struct {
		name  string
		value string
	}{
		{FieldOrganisation, f.Organisation},
		{FieldTitle, f.Title},
		{FieldCategory, f.Category},
		{FieldDescription, f.Description},
	}
	for _, r := range required {
		if len([]rune(strings.TrimSpace(r.value))) < minFieldLength {
			missing = append(missing, r.name)
		}
	}
	return missing
}

// Map returns the extracted fields keyed by field name, omitting empty ones.
func (f SubmissionFields) Map() map[string]string {
	out := make(map[string]string)
	add := func(k, v string) {
		if v != "" {
			out[k] = v
		}
	}
	add(FieldOrganisation, f.Organisation)
	add(FieldTitle, f.Title)
	add(FieldCategory, f.Category)
	add(FieldDescription, f.Description)
	add("validity_start", f.ValidityStart)
	add("validity_end", f.ValidityEnd)
	return out
}
