// Package fingerprint derives comparable structural/textual summaries from
// documents and templates. Builders are pure functions of their inputs:
// identical input always yields an identical fingerprint, which the caches
// and reproducible tests rely on.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"github.com/tivault/docmatch/internal/model"
)

// maxContentKeywords bounds fingerprint size; only the top-N tokens by
// frequency survive.
const maxContentKeywords = 50

// minKeywordLength drops trivially short tokens before frequency counting.
const minKeywordLength = 3

// BuildDocument constructs a document fingerprint from already-extracted
// text, metadata and structural stats. No I/O and no OCR happen here.
func BuildDocument(text, fileName, format string, metadata map[string]string, structure model.DocumentStructure) model.DocumentFingerprint {
	normalized := normalizeText(text)
	keywords, english := contentKeywords(normalized)

	language := "und"
	if english {
		language = "en"
	}

	meta := make(map[string]string, len(metadata))
	for k, v := range metadata {
		meta[k] = v
	}

	return model.DocumentFingerprint{
		Format:          strings.ToLower(format),
		FileName:        FileNameStem(fileName),
		Metadata:        meta,
		ContentKeywords: keywords,
		TextPatterns:    detectPatterns(text),
		Structure:       structure,
		Language:        language,
		ContentHash:     contentHash(normalized),
	}
}

// HashContent returns the content hash BuildDocument would assign to the
// text, without building the rest of the fingerprint. Callers use it to
// consult fingerprint caches before paying for a full build.
func HashContent(text string) string {
	return contentHash(normalizeText(text))
}

// contentHash is a SHA-256 hex digest of the normalized text, used as the
// cache key and for cheap equality checks between repeated runs.
func contentHash(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// normalizeText lowercases and collapses all whitespace runs to single
// spaces so the hash does not change with formatting noise.
func normalizeText(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// contentKeywords tokenizes the normalized text, drops stop-words and short
// tokens, and keeps the top-N by frequency. Ties are broken alphabetically
// so the result is deterministic. The second return value reports whether
// enough English stop-words appeared to call the text English.
func contentKeywords(normalized string) ([]string, bool) {
	freq := make(map[string]int)
	stopHits := 0
	total := 0

	for _, raw := range strings.Fields(normalized) {
		token := strings.TrimFunc(raw, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		})
		if token == "" {
			continue
		}
		total++
		if isStopWord(token) {
			stopHits++
			continue
		}
		if len(token) < minKeywordLength {
			continue
		}
		freq[token]++
	}

	type entry struct {
		token string
		count int
	}
	entries := make([]entry, 0, len(freq))
	for token, count := range freq {
		entries = append(entries, entry{token, count})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].token < entries[j].token
	})

	n := len(entries)
	if n > maxContentKeywords {
		n = maxContentKeywords
	}
	keywords := make([]string, n)
	for i := 0; i < n; i++ {
		keywords[i] = entries[i].token
	}

	english := total > 0 && float64(stopHits)/float64(total) >= 0.02
	return keywords, english
}

// FileNameStem strips directory and extension, lowercased. It is the form
// document fingerprints carry their filename in.
func FileNameStem(name string) string {
	if name == "" {
		return ""
	}
	base := filepath.Base(name)
	ext := filepath.Ext(base)
	return strings.ToLower(strings.TrimSuffix(base, ext))
}
