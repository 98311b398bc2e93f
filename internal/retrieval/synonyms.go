package retrieval

// grantSynonyms maps nonprofit and grant-writing vocabulary to related
// terms. Expansion is one-directional: looking up a term adds its
// variants, originals are always kept. Keep entries lowercase.
var grantSynonyms = map[string][]string{
	// Funding vocabulary
	"grant":    {"funding", "award"},
	"funding":  {"grant", "funds"},
	"funder":   {"grantmaker", "foundation"},
	"donor":    {"funder", "contributor"},
	"award":    {"grant", "prize"},
	"budget":   {"costs", "expenses"},
	"match":    {"matching", "cost-share"},
	"overhead": {"indirect", "administrative"},

	// Proposal vocabulary
	"proposal":  {"application", "submission"},
	"narrative": {"description", "statement"},
	"abstract":  {"summary", "overview"},
	"deadline":  {"due", "submission"},
	"rfp":       {"solicitation", "announcement"},
	"loi":       {"letter", "inquiry"},

	// Program vocabulary
	"outcome":     {"result", "impact"},
	"outcomes":    {"results", "impact"},
	"impact":      {"outcome", "effect"},
	"evaluation":  {"assessment", "measurement"},
	"beneficiary": {"participant", "recipient"},
	"community":   {"population", "residents"},
	"youth":       {"children", "students"},
	"capacity":    {"capability", "infrastructure"},

	// Compliance vocabulary
	"report":      {"reporting", "deliverable"},
	"compliance":  {"requirement", "regulation"},
	"eligibility": {"eligible", "qualification"},
	"audit":       {"review", "financial"},
}

// stemSuffixes are stripped to generate light stemmed variants, longest
// first so "ies" wins over "es" wins over "s".
var stemSuffixes = []string{"ies", "ing", "ed", "es", "s"}
