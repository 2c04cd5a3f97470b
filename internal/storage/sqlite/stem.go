package sqlite

import "strings"

// stemSuffixes is a short, ordered list of the common English inflectional
// suffixes stripped before text reaches the FTS5 index (spec §4.4). This
// is a deliberately light approximation of a real stemmer: modernc.org's
// FTS5 build ships no Porter/Snowball tokenizer extension, so "stemming"
// here means folding a handful of common suffixes at index-build time
// rather than delegating to SQLite's tokenizer.
var stemSuffixes = []string{"ing", "edly", "ed", "ies", "es", "s"}

// stemWord strips at most one trailing suffix from word, leaving short
// words (where stripping would remove most of the word) untouched.
func stemWord(word string) string {
	lower := strings.ToLower(word)
	for _, suf := range stemSuffixes {
		if strings.HasSuffix(lower, suf) && len(lower)-len(suf) >= 3 {
			return lower[:len(lower)-len(suf)]
		}
	}
	return lower
}

// stemText runs stemWord over every whitespace-delimited token in s and
// appends the stemmed forms after the original text, so both the literal
// term and its stem are present in observations_text for FTS5 to index.
// Appending rather than replacing keeps exact-phrase queries working.
func stemText(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return s
	}
	stemmed := make([]string, 0, len(fields))
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		st := stemWord(f)
		if st != strings.ToLower(f) && !seen[st] {
			stemmed = append(stemmed, st)
			seen[st] = true
		}
	}
	if len(stemmed) == 0 {
		return s
	}
	return s + " " + strings.Join(stemmed, " ")
}
