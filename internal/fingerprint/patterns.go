package fingerprint

import "regexp"

// Pattern tags produced by the detector bank and expected by template
// fingerprints. The bank is fixed and independent of any template's rules.
const (
	PatternDate     = "date"
	PatternEmail    = "email"
	PatternTicket   = "ticket"
	PatternURL      = "url"
	PatternIPv4     = "ipv4"
	PatternCVE      = "cve"
	PatternHash     = "hash"
	PatternPhone    = "phone"
	PatternCurrency = "currency"
)

// patternDetector pairs a tag with its compiled detector.
type patternDetector struct {
	tag string
	re  *regexp.Regexp
}

// patternBank is the fixed set of generic detectors applied to document text
// when building a fingerprint. Order is significant only for determinism of
// the resulting TextPatterns list.
var patternBank = []patternDetector{
	{PatternDate, regexp.MustCompile(`\b(\d{1,2}[/-]\d{1,2}[/-]\d{2,4}|\d{4}-\d{2}-\d{2})\b`)},
	{PatternEmail, regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)},
	{PatternTicket, regexp.MustCompile(`(?i)\b(INC|TICKET|REQ|CHG|CASE)[-\s]?\d{4,10}\b`)},
	{PatternURL, regexp.MustCompile(`https?://[^\s]+`)},
	{PatternIPv4, regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)},
	{PatternCVE, regexp.MustCompile(`(?i)\bCVE-\d{4}-\d{4,}\b`)},
	{PatternHash, regexp.MustCompile(`\b[a-fA-F0-9]{32}(?:[a-fA-F0-9]{8})?(?:[a-fA-F0-9]{24})?\b`)},
	{PatternPhone, regexp.MustCompile(`\(?\d{3}\)?[-.\s]\d{3}[-.\s]?\d{4}\b`)},
	{PatternCurrency, regexp.MustCompile(`[$€£][\d,]+\.?\d*|\b\d+\.\d{2}\s*(USD|EUR|GBP)\b`)},
}

// detectPatterns returns the tags of every detector that fires on the text,
// in bank order.
func detectPatterns(text string) []string {
	var tags []string
	for _, d := range patternBank {
		if d.re.MatchString(text) {
			tags = append(tags, d.tag)
		}
	}
	return tags
}
