package fingerprint

// stopWords are excluded from keyword candidates. The list is fixed so that
// fingerprints stay reproducible across runs.
var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "but": {}, "not": {},
	"you": {}, "all": {}, "any": {}, "can": {}, "had": {}, "her": {},
	"was": {}, "one": {}, "our": {}, "out": {}, "has": {}, "have": {},
	"this": {}, "that": {}, "with": {}, "from": {}, "they": {}, "will": {},
	"would": {}, "there": {}, "their": {}, "what": {}, "about": {},
	"which": {}, "when": {}, "were": {}, "been": {}, "than": {}, "then": {},
	"them": {}, "these": {}, "some": {}, "into": {}, "more": {}, "other": {},
	"your": {}, "its": {}, "also": {}, "may": {}, "such": {}, "each": {},
	"per": {}, "upon": {}, "shall": {}, "should": {}, "must": {},
}

// isStopWord reports whether a lowercased token is a stop-word.
func isStopWord(token string) bool {
	_, ok := stopWords[token]
	return ok
}
