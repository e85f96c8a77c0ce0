// Package engine implements the wildcard matching operations (find_exact,
// count_exact, find_partial, count_partial) by composing the word index,
// the bloom pre-filter, and the compiled-pattern cache. This is the
// "Wildcard matcher" + "Word index" algorithms from the design (§4.1-4.2).
package engine

import (
	"strings"

	"github.com/RoaringBitmap/roaring"

	"github.com/wsearchd/wsearchd/internal/matcher"
	"github.com/wsearchd/wsearchd/internal/wordindex"
)

func isWildcardByte(b byte) bool { return b == '?' || b == '*' }

// Engine ties together a built word index and a compiled-pattern cache.
type Engine struct {
	idx   *wordindex.Index
	cache *matcher.Cache
}

func New(idx *wordindex.Index, cache *matcher.Cache) *Engine {
	return &Engine{idx: idx, cache: cache}
}

// FindExact returns, in ascending corpus-index order, the original-case
// words whose full (case-folded) string matches pattern under exact
// (anchored) wildcard semantics.
func (e *Engine) FindExact(pattern string) ([]string, error) {
	idxs, err := e.matchExactIndices(pattern)
	if err != nil {
		return nil, err
	}
	return e.materialize(idxs), nil
}

// CountExact is len(FindExact(pattern)) without materializing the result.
func (e *Engine) CountExact(pattern string) (int, error) {
	idxs, err := e.matchExactIndices(pattern)
	if err != nil {
		return 0, err
	}
	return len(idxs), nil
}

// FindPartial returns, in ascending corpus-index order, the original-case
// words containing any substring matching pattern under partial
// (unanchored) wildcard semantics.
func (e *Engine) FindPartial(pattern string) ([]string, error) {
	idxs, err := e.matchPartialIndices(pattern)
	if err != nil {
		return nil, err
	}
	return e.materialize(idxs), nil
}

// CountPartial is len(FindPartial(pattern)) without materializing the result.
func (e *Engine) CountPartial(pattern string) (int, error) {
	idxs, err := e.matchPartialIndices(pattern)
	if err != nil {
		return 0, err
	}
	return len(idxs), nil
}

func (e *Engine) materialize(idxs []uint32) []string {
	out := make([]string, len(idxs))
	for i, ix := range idxs {
		out[i] = e.idx.Original(int(ix))
	}
	return out
}

func (e *Engine) matchExactIndices(pattern string) ([]uint32, error) {
	folded := strings.ToLower(pattern)

	if e.idx.Filters().ShouldSkip(folded, isWildcardByte) {
		return nil, nil
	}

	if !strings.Contains(pattern, "*") {
		return e.matchExactFixedLength(pattern, folded)
	}
	return e.matchExactWithStar(pattern)
}

// matchExactFixedLength implements the no-'*' exact algorithm: intersect
// per-position postings across every fixed (non-'?') character, restricted
// to the single length bucket matching |pattern|.
func (e *Engine) matchExactFixedLength(pattern, folded string) ([]uint32, error) {
	L := len(pattern)
	bucket := e.idx.Bucket(L)
	if bucket == nil || bucket.IsEmpty() {
		return nil, nil
	}

	var intersection *roaring.Bitmap
	for p := 0; p < L; p++ {
		if pattern[p] == '?' {
			continue
		}
		set := e.idx.PositionSet(L, p, folded[p])
		if set == nil {
			return nil, nil
		}
		if intersection == nil {
			intersection = set.Clone()
		} else {
			intersection.And(set)
		}
		if intersection.IsEmpty() {
			return nil, nil
		}
	}

	if intersection == nil {
		// Pattern is all '?' of length L: every word in the bucket matches.
		return bucket.ToArray(), nil
	}
	return intersection.ToArray(), nil
}

// matchExactWithStar compiles an anchored regex and scans every length
// bucket >= the pattern's minimum literal length, testing the original
// (case-preserved) word text case-insensitively.
func (e *Engine) matchExactWithStar(pattern string) ([]uint32, error) {
	re, err := e.cache.Compile(pattern, true)
	if err != nil {
		return nil, err
	}
	minLen := matcher.MinLiteralLen(pattern)
	candidates := e.idx.CandidatesAtLeast(minLen)

	var out []uint32
	it := candidates.Iterator()
	for it.HasNext() {
		i := it.Next()
		if re.MatchString(e.idx.Original(int(i))) {
			out = append(out, i)
		}
	}
	return out, nil
}

func (e *Engine) matchPartialIndices(pattern string) ([]uint32, error) {
	folded := strings.ToLower(pattern)

	if e.idx.Filters().ShouldSkip(folded, isWildcardByte) {
		return nil, nil
	}

	if !strings.Contains(pattern, "*") && allQuestionMarks(pattern) {
		// All-'?' partial pattern: every word with length >= |pattern|
		// qualifies, in corpus order.
		candidates := e.idx.CandidatesAtLeast(len(pattern))
		return candidates.ToArray(), nil
	}

	re, err := e.cache.Compile(pattern, false)
	if err != nil {
		return nil, err
	}
	minLen := matcher.MinLiteralLen(pattern)
	candidates := e.idx.CandidatesAtLeast(minLen)

	var out []uint32
	it := candidates.Iterator()
	for it.HasNext() {
		i := it.Next()
		if re.MatchString(e.idx.Original(int(i))) {
			out = append(out, i)
		}
	}
	return out, nil
}

func allQuestionMarks(pattern string) bool {
	if pattern == "" {
		return false
	}
	for i := 0; i < len(pattern); i++ {
		if pattern[i] != '?' {
			return false
		}
	}
	return true
}
