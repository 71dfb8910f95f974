package classify

// Relevance is how clearly a submission targets the veteran community
type Relevance string

const (
	RelevanceExplicit  Relevance = "EXPLICIT"
	RelevanceInclusive Relevance = "INCLUSIVE"
	RelevanceNone      Relevance = "NONE"
	RelevanceUnclear   Relevance = "UNCLEAR"
)

// OrgType is the kind of organisation behind a submission
type OrgType string

const (
	OrgGovt    OrgType = "GOVT"
	OrgPSU     OrgType = "PSU"
	OrgNGO     OrgType = "NGO"
	OrgPrivate OrgType = "PRIVATE"
)

// relevanceTiers is evaluated EXPLICIT > NONE > INCLUSIVE. Explicit veteran
// wording beats an exclusion phrase, and an exclusion beats generic openness.
var relevanceTiers = RuleTable[Relevance]{
	{
		Tag: RelevanceExplicit,
		Keywords: []string{"ex-servicem", "ex servicem", "veteran", "defence personnel", "defense personnel",
			"military", "armed forces", "retired army", "retired navy", "retired air force", "fauji", "sainik"},
		Words: []string{"esm"},
	},
	{Tag: RelevanceNone, Keywords: []string{"active duty only", "serving personnel only", "not for veterans"}},
	{Tag: RelevanceInclusive, Keywords: []string{"all candidates", "open to all", "general public", "anyone can apply",
		"apply", "applying", "application", "opportunit", "position"}},
}

var orgTypes = RuleTable[OrgType]{
	{Tag: OrgGovt, Keywords: []string{"ministry", "department of", "government", "directorate"}, Words: []string{"gov", "govt"}},
	{Tag: OrgPSU, Keywords: []string{"public sector", "bharat", "hindustan", "indian oil", "ongc"}, Words: []string{"psu"}},
	{Tag: OrgNGO, Keywords: []string{"foundation", "trust", "charitable", "non-profit"}, Words: []string{"ngo"}},
}

// ClassifyRelevance returns the relevance tier of normalized text.
func ClassifyRelevance(text string) Relevance {
	if r, ok := relevanceTiers.Match(text); ok {
		return r
	}
	return RelevanceUnclear
}

// ClassifyOrgType checks the organisation name first, then the full text.
func ClassifyOrgType(name, text string) OrgType {
	if t, ok := orgTypes.Match(name); ok {
		return t
	}
	if t, ok := orgTypes.Match(text); ok {
		return t
	}
	return OrgPrivate
}
