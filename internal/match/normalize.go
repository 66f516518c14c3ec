package match

import "strings"

// stopWords are dropped before token comparison: articles, joiners, and unit
// abbreviations that appear on receipts but say nothing about the product.
var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "of": {}, "and": {}, "or": {}, "for": {},
	"in": {}, "on": {}, "lb": {}, "oz": {}, "ct": {}, "pk": {}, "bag": {},
	"box": {}, "case": {},
}

// Normalize prepares an item name for comparison: lowercase, commas and
// dashes become spaces, apostrophes vanish, whitespace collapses. Normalizing
// twice is a no-op.
func Normalize(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.ReplaceAll(n, ",", " ")
	n = strings.ReplaceAll(n, "-", " ")
	n = strings.ReplaceAll(n, "'", "")
	return strings.Join(strings.Fields(n), " ")
}

// Tokens returns the set of meaningful tokens of a name, stop words removed.
func Tokens(name string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, tok := range strings.Fields(Normalize(name)) {
		if _, stop := stopWords[tok]; stop {
			continue
		}
		tokens[tok] = struct{}{}
	}
	return tokens
}
