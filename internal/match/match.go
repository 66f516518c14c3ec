// Package match resolves externally supplied item names ("Onions, green",
// "SOCK SALMON") against a property's inventory catalog. Everything in here
// is a pure function of its inputs so the scoring can be tested and tuned in
// isolation.
package match

import (
	"math"
	"strings"
)

// DefaultThreshold is the minimum similarity at which a candidate is
// considered the same item.
const DefaultThreshold = 0.6

// subsetFloor is the score floor when one token set fully contains the other,
// which covers word reordering and added qualifiers ("Beans, black" vs
// "Black Beans, canned").
const subsetFloor = 0.85

// substringBonus rewards one normalized name containing the other, which
// covers abbreviations ("mayo" on a receipt vs "Mayonnaise").
const substringBonus = 0.3

// Scorer computes name similarity. The zero value reproduces the historical
// scoring; MinSubstringLen restricts the substring bonus to names of at least
// that normalized length, since very short names are trivially contained in
// longer ones.
type Scorer struct {
	MinSubstringLen int
}

// Similarity scores two names between 0 and 1. Identical normalized strings
// score 1.0 outright; otherwise the score is Jaccard overlap of the token
// sets, floored for subset containment and boosted for substring containment.
func (s Scorer) Similarity(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == nb {
		return 1.0
	}

	ta, tb := Tokens(a), Tokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0.0
	}

	inter := 0
	for tok := range ta {
		if _, ok := tb[tok]; ok {
			inter++
		}
	}
	union := len(ta) + len(tb) - inter

	jaccard := 0.0
	if union > 0 {
		jaccard = float64(inter) / float64(union)
	}

	bonus := 0.0
	if s.substringApplies(na, nb) {
		bonus = substringBonus
	}

	// Subset either way: same item with extra qualifiers on one side.
	if inter == len(ta) || inter == len(tb) {
		jaccard = math.Max(jaccard, subsetFloor)
	}

	return math.Min(1.0, jaccard+bonus)
}

func (s Scorer) substringApplies(na, nb string) bool {
	shorter := na
	if len(nb) < len(na) {
		shorter = nb
	}
	if len(shorter) < s.MinSubstringLen {
		return false
	}
	return strings.Contains(na, nb) || strings.Contains(nb, na)
}

// Match identifies the winning candidate of a Resolve call.
type Match struct {
	Index int
	Score float64
}

// Resolve scores name against every candidate and keeps the single best.
// Ties keep the first-seen candidate. ok reports whether the best score
// reaches threshold; the best match is returned either way (Index -1 when
// nothing scored above zero) so callers can surface near misses.
func (s Scorer) Resolve(name string, candidates []string, threshold float64) (Match, bool) {
	best := Match{Index: -1}
	for i, cand := range candidates {
		if score := s.Similarity(name, cand); score > best.Score {
			best = Match{Index: i, Score: score}
		}
	}
	return best, best.Index >= 0 && best.Score >= threshold
}

// Similarity scores two names with the default Scorer.
func Similarity(a, b string) float64 {
	return Scorer{}.Similarity(a, b)
}

// Resolve resolves a name against candidates with the default Scorer.
func Resolve(name string, candidates []string, threshold float64) (Match, bool) {
	return Scorer{}.Resolve(name, candidates, threshold)
}
