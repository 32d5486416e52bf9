package usecase

import "strings"

var queryStopWords = map[string]struct{}{
	"the":  {},
	"is":   {},
	"and":  {},
	"of":   {},
	"to":   {},
	"a":    {},
	"in":   {},
	"that": {},
	"for":  {},
}

// extractKeyTerms lower-cases whitespace tokens, drops stop words and
// de-duplicates, keeping first-seen order.
func extractKeyTerms(query string) []string {
	fields := strings.Fields(query)
	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, field := range fields {
		term := strings.ToLower(field)
		if _, stop := queryStopWords[term]; stop {
			continue
		}
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}
		out = append(out, term)
	}
	return out
}

// keywordBoost is the share of key terms found as substrings of content.
// Substring containment means "art" also hits "party"; that is accepted.
func keywordBoost(content string, terms []string) float64 {
	if content == "" || len(terms) == 0 {
		return 0
	}
	lower := strings.ToLower(content)
	hits := 0
	for _, term := range terms {
		if strings.Contains(lower, term) {
			hits++
		}
	}
	return float64(hits) / float64(len(terms))
}

func countKeywordHits(lowerQuery string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lowerQuery, kw) {
			n++
		}
	}
	return n
}

// mentionsAI matches "artificial intelligence" anywhere or "ai" as a whole
// whitespace token.
func mentionsAI(query string) bool {
	lower := strings.ToLower(query)
	if strings.Contains(lower, "artificial intelligence") {
		return true
	}
	for _, field := range strings.Fields(lower) {
		if field == "ai" {
			return true
		}
	}
	return false
}
