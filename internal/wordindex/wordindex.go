// Package wordindex builds and queries the in-memory accelerator structures
// over a fixed corpus: the case-folded shadow copy, per-length buckets, and
// per-length positional character index (§3-4.1 of the design). Result sets
// are represented with github.com/RoaringBitmap/roaring, grounded on the
// teacher's own use of roaring bitmaps for posting lists in query/query.go.
package wordindex

import (
	"strings"

	"github.com/RoaringBitmap/roaring"

	"github.com/wsearchd/wsearchd/internal/bloomset"
)

// Index is the immutable, concurrency-safe word index. Once Build returns,
// an Index never mutates and may be shared across goroutines without
// synchronization.
type Index struct {
	original []string
	folded   []string

	// buckets[L] holds the corpus indices of every word with length L.
	buckets map[int]*roaring.Bitmap

	// positions[L][p][c] holds the corpus indices i with |W_i| = L and
	// folded[i][p] == c.
	positions map[int][]map[byte]*roaring.Bitmap

	filters *bloomset.CorpusFilters
}

// Build constructs an Index from an ordered corpus. Building is O(sum of
// word lengths).
func Build(words []string) *Index {
	idx := &Index{
		original:  append([]string(nil), words...),
		folded:    make([]string, len(words)),
		buckets:   make(map[int]*roaring.Bitmap),
		positions: make(map[int][]map[byte]*roaring.Bitmap),
	}

	for i, w := range words {
		f := strings.ToLower(w)
		idx.folded[i] = f
		L := len(f)

		bucket, ok := idx.buckets[L]
		if !ok {
			bucket = roaring.New()
			idx.buckets[L] = bucket
		}
		bucket.Add(uint32(i))

		perPos, ok := idx.positions[L]
		if !ok {
			perPos = make([]map[byte]*roaring.Bitmap, L)
			for p := range perPos {
				perPos[p] = make(map[byte]*roaring.Bitmap)
			}
			idx.positions[L] = perPos
		}
		for p := 0; p < L; p++ {
			c := f[p]
			bm, ok := perPos[p][c]
			if !ok {
				bm = roaring.New()
				perPos[p][c] = bm
			}
			bm.Add(uint32(i))
		}
	}

	idx.filters = bloomset.BuildCorpusFilters(idx.folded)
	return idx
}

// Len returns the corpus size.
func (idx *Index) Len() int { return len(idx.original) }

// Original returns the original-case word at corpus index i.
func (idx *Index) Original(i int) string { return idx.original[i] }

// Folded returns the case-folded word at corpus index i.
func (idx *Index) Folded(i int) string { return idx.folded[i] }

// Filters exposes the bloom filters for the matcher's should-skip pre-check.
func (idx *Index) Filters() *bloomset.CorpusFilters { return idx.filters }

// Bucket returns the ordered (ascending corpus index) bitmap of words with
// the given length, or nil if there are none.
func (idx *Index) Bucket(length int) *roaring.Bitmap {
	return idx.buckets[length]
}

// PositionSet returns PositionIndex[length][pos][c], or nil if empty.
func (idx *Index) PositionSet(length, pos int, c byte) *roaring.Bitmap {
	perPos, ok := idx.positions[length]
	if !ok || pos >= len(perPos) {
		return nil
	}
	return perPos[pos][c]
}

// CandidatesAtLeast returns the union, as a single bitmap, of every length
// bucket with length >= min. Iterating the returned bitmap visits corpus
// indices in strict ascending order (roaring.Bitmap guarantees this),
// which is what preserves the system-wide "ascending corpus index" result
// ordering when a pattern can match more than one word length (the `*`
// cases) and buckets must be merged rather than walked one length at a
// time.
func (idx *Index) CandidatesAtLeast(min int) *roaring.Bitmap {
	out := roaring.New()
	for L, bucket := range idx.buckets {
		if L >= min {
			out.Or(bucket)
		}
	}
	return out
}
