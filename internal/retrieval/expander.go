package retrieval

import "strings"

// Expander widens a query with domain synonyms and light stemmed
// variants. Original terms are never removed; expansion only adds.
//
// The two scoring legs consume expansion differently. The lexical leg
// takes the full term union, since keyword matching benefits from every
// surface form. The vector leg takes a single concatenated text so the
// query costs exactly one embedding call.
type Expander struct {
	synonyms map[string][]string
}

// NewExpander returns an expander with the grant-domain synonym table.
func NewExpander() *Expander {
	return &Expander{synonyms: grantSynonyms}
}

// ExpandTerms returns the original terms followed by distinct added
// variants. Input order is preserved; duplicates are dropped.
func (e *Expander) ExpandTerms(terms []string) []string {
	if len(terms) == 0 {
		return terms
	}

	seen := make(map[string]struct{}, len(terms)*2)
	out := make([]string, 0, len(terms)*2)
	add := func(t string) {
		if _, dup := seen[t]; dup {
			return
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}

	for _, t := range terms {
		add(t)
	}
	for _, t := range terms {
		for _, syn := range e.synonyms[t] {
			add(syn)
		}
		if stem := stemVariant(t); stem != "" {
			add(stem)
		}
	}
	return out
}

// ExpandText returns the query text with distinct added terms appended,
// for a single embedding call. Returns the input unchanged when
// expansion adds nothing.
func (e *Expander) ExpandText(query string, originalTerms []string) string {
	original := make(map[string]struct{}, len(originalTerms))
	for _, t := range originalTerms {
		original[t] = struct{}{}
	}

	var added []string
	for _, t := range e.ExpandTerms(originalTerms) {
		if _, ok := original[t]; !ok {
			added = append(added, t)
		}
	}
	if len(added) == 0 {
		return query
	}
	return query + " " + strings.Join(added, " ")
}

// stemVariant strips the longest matching suffix, keeping at least
// three characters. Returns "" when no variant applies.
func stemVariant(term string) string {
	for _, suffix := range stemSuffixes {
		if strings.HasSuffix(term, suffix) && len(term)-len(suffix) >= 3 {
			return term[:len(term)-len(suffix)]
		}
	}
	return ""
}
