package bloomset

// Capacities chosen per the word-search system's data model: words get the
// largest filter, bigrams a mid-sized one, and the character alphabet is
// tiny enough that 2^16 bits is already generous.
const (
	wordCapacityBits   = 1 << 20
	charCapacityBits   = 1 << 16
	bigramCapacityBits = 1 << 18
)

// CorpusFilters bundles the three independent bloom filters seeded from a
// word corpus: one over whole (case-folded) words, one over individual
// characters, one over bigrams (runs of 2 consecutive characters).
type CorpusFilters struct {
	Words   *Filter
	Chars   *Filter
	Bigrams *Filter
}

// BuildCorpusFilters seeds all three filters from the case-folded corpus.
func BuildCorpusFilters(folded []string) *CorpusFilters {
	cf := &CorpusFilters{
		Words:   New(wordCapacityBits),
		Chars:   New(charCapacityBits),
		Bigrams: New(bigramCapacityBits),
	}
	for _, w := range folded {
		cf.Words.Add(w)
		for i := 0; i < len(w); i++ {
			cf.Chars.Add(w[i : i+1])
		}
		for i := 0; i+1 < len(w); i++ {
			cf.Bigrams.Add(w[i : i+2])
		}
	}
	return cf
}

// ShouldSkip pre-filters a case-folded wildcard pattern: it returns true
// (meaning the caller can short-circuit to an empty result) if any literal
// character in the pattern is absent from the character filter, or any
// literal bigram (a run of >= 2 consecutive non-wildcard characters) is
// absent from the bigram filter. Patterns made entirely of wildcards bypass
// the filter since they carry no literal signal.
func (cf *CorpusFilters) ShouldSkip(foldedPattern string, isWildcard func(byte) bool) bool {
	allWildcards := true
	for i := 0; i < len(foldedPattern); i++ {
		if !isWildcard(foldedPattern[i]) {
			allWildcards = false
			if !cf.Chars.MaybeContains(foldedPattern[i : i+1]) {
				return true
			}
		}
	}
	if allWildcards {
		return false
	}

	runStart := -1
	check := func(end int) bool {
		if runStart >= 0 && end-runStart >= 2 {
			for i := runStart; i+1 < end; i++ {
				if !cf.Bigrams.MaybeContains(foldedPattern[i : i+2]) {
					return true
				}
			}
		}
		return false
	}
	for i := 0; i < len(foldedPattern); i++ {
		if isWildcard(foldedPattern[i]) {
			if check(i) {
				return true
			}
			runStart = -1
		} else if runStart < 0 {
			runStart = i
		}
	}
	return check(len(foldedPattern))
}
