package models

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// UnknownLabel is used when a finding carries no severity or pillar.
const UnknownLabel = "Unknown"

// knownLabels maps the lower-cased severities and pillars to their canonical
// spelling.
var knownLabels = func() map[string]string {
	m := make(map[string]string)
	for _, l := range []string{
		"Critical", "High", "Medium", "Low", "Informational", "Info",
		"Operational Excellence", "Security", "Reliability",
		"Performance Efficiency", "Cost Optimization", "Sustainability",
	} {
		m[strings.ToLower(l)] = l
	}
	return m
}()

// NormalizeLabel canonicalises a category or severity label so that
// "HIGH", "high" and " High " count as the same bucket. Unknown labels are
// title cased word by word; all-caps words such as "IAM" are kept.
func NormalizeLabel(label string) string {
	words := strings.Fields(label)
	if len(words) == 0 {
		return UnknownLabel
	}
	joined := strings.Join(words, " ")
	if known, ok := knownLabels[strings.ToLower(joined)]; ok {
		return known
	}

	caser := cases.Title(language.English)
	for i, w := range words {
		if isAcronym(w) {
			continue
		}
		words[i] = caser.String(strings.ToLower(w))
	}
	return strings.Join(words, " ")
}

func isAcronym(word string) bool {
	letters := 0
	for _, r := range word {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsLetter(r) {
			letters++
		}
	}
	return letters >= 2
}
