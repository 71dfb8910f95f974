package classify

// QueryType is the intent of an ASK message
type QueryType string

const (
	RuleQuery        QueryType = "RULE_QUERY"
	OpportunityQuery QueryType = "OPPORTUNITY_QUERY"
	StatusQuery      QueryType = "STATUS_QUERY"
	InvalidQuery     QueryType = "INVALID"
)

// Parameter names reported by MissingParams.
const (
	ParamService  = "service"
	ParamCategory = "category"
	ParamRank     = "rank"
)

// QueryParams holds the optional parameters extracted from a query.
// Each field carries at most one value.
type QueryParams struct {
	Service  string
	Category string
	Rank     string
}

// queryTypes is evaluated in precedence order: RULE > OPPORTUNITY > STATUS.
var queryTypes = RuleTable[QueryType]{
	{Tag: RuleQuery, Keywords: []string{"entitled", "eligible", "eligibility", "pension", "gratuity", "echs", "canteen", "rule", "regulation"}, Words: []string{"csd"}},
	{Tag: OpportunityQuery, Keywords: []string{"job", "vacancy", "opening", "recruitment", "opportunity", "position", "hiring", "career"}},
	{Tag: StatusQuery, Keywords: []string{"status", "update", "when", "deadline", "last date"}},
}

var services = RuleTable[string]{
	{Tag: "ARMY", Keywords: []string{"army"}},
	{Tag: "NAVY", Keywords: []string{"navy", "naval"}},
	{Tag: "AIR_FORCE", Keywords: []string{"air force", "airforce"}},
	{Tag: "PARAMILITARY", Keywords: []string{"paramilitary"}},
	{Tag: "COAST_GUARD", Keywords: []string{"coast guard"}},
}

var categories = RuleTable[string]{
	{Tag: "EMPLOYMENT", Keywords: []string{"employment"}},
	{Tag: "TRAINING", Keywords: []string{"training"}},
	{Tag: "SCHOLARSHIP", Keywords: []string{"scholarship"}},
	{Tag: "RESETTLEMENT", Keywords: []string{"resettlement"}},
	{Tag: "ENTREPRENEURSHIP", Keywords: []string{"entrepreneurship"}},
	{Tag: "WELFARE", Keywords: []string{"welfare"}},
	{Tag: "HOUSING", Keywords: []string{"housing"}},
	{Tag: "HEALTHCARE", Keywords: []string{"healthcare"}},
	{Tag: "EDUCATION", Keywords: []string{"education"}},
}

var ranks = RuleTable[string]{
	{Tag: "JCO", Words: []string{"jco"}},
	{Tag: "NCO", Words: []string{"nco"}},
	{Tag: "OFFICER", Keywords: []string{"officer"}},
	{Tag: "JAWAN", Keywords: []string{"jawan"}},
	{Tag: "HAVILDAR", Keywords: []string{"havildar"}},
	{Tag: "SUBEDAR", Keywords: []string{"subedar"}},
	{Tag: "CAPTAIN", Keywords: []string{"captain"}},
	{Tag: "MAJOR", Keywords: []string{"major"}},
	{Tag: "COLONEL", Keywords: []string{"colonel"}},
	{Tag: "GENERAL", Keywords: []string{"general"}},
}

// ClassifyQuery returns the query type of normalized text.
func ClassifyQuery(text string) QueryType {
	if qt, ok := queryTypes.Match(text); ok {
		return qt
	}
	return InvalidQuery
}

// ExtractParams scans the service, category and rank families independently
// of the query type.
func ExtractParams(text string) QueryParams {
	var p QueryParams
	p.Service, _ = services.Match(text)
	p.Category, _ = categories.Match(text)
	p.Rank, _ = ranks.Match(text)
	return p
}

// MissingParams lists the required parameters absent for the query type.
func MissingParams(p QueryParams, qt QueryType) []string {
	var missing []string
	switch qt {
	case RuleQuery:
		if p.Service == "" {
			missing = append(missing, ParamService)
		}
	case OpportunityQuery:
		if p.Category == "" {
			missing = append(missing, ParamCategory)
		}
	}
	return missing
}
