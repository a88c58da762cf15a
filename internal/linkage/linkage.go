// Package linkage implements the approximate key/interval record-linkage
// used to reconcile highway segments across dataset revisions: exact joins
// on a detected identifier column, a fallback broad join on the normalized
// (BR, UF) pair, and a nearest-kilometer-interval tie break bounded by a
// tolerance.
package linkage

import "math"

// Join quality attached to every reconciled row. Downstream filtering keeps
// ScoreKeyAndTol rows for geometry work and reports ScoreNone rows as
// unmatched diagnostics.
const (
	ScoreNone      = 0 // no usable BR/UF attributes
	ScoreKey       = 1 // BR and UF present, kilometer delta outside tolerance
	ScoreKeyAndTol = 2 // BR and UF present and kilometer delta within tolerance
)

// DefaultKmTolerance marks a kilometer delta as "within tolerance".
const DefaultKmTolerance = 2.0

// keyPreference is the identifier-column cascade tried on both join sides.
var keyPreference = []string{"id_trecho", "id_trecho_", "cod", "vl_codigo", "codigo", "id"}

// ChooseKey picks the join key column: the forced name when present in cols,
// otherwise the first preference match. Returns "" when no candidate exists.
func ChooseKey(cols []string, forced string) string {
	set := make(map[string]bool, len(cols))
	for _, c := range cols {
		set[c] = true
	}
	if forced != "" && set[forced] {
		return forced
	}
	for _, k := range keyPreference {
		if set[k] {
			return k
		}
	}
	return ""
}

// IntervalDistance measures how far point a sits from the interval spanned
// by b and c (bounds are min/max ordered first): 0 inside, distance to the
// nearer bound outside, NaN when any input is NaN.
func IntervalDistance(a, b, c float64) float64 {
	if math.IsNaN(a) || math.IsNaN(b) || math.IsNaN(c) {
		return math.NaN()
	}
	lo, hi := math.Min(b, c), math.Max(b, c)
	if a < lo {
		return lo - a
	}
	if a > hi {
		return a - hi
	}
	return 0
}

// Score grades a reconciled row: both the BR and UF keys must be usable for
// any credit, and the kilometer delta must be within tolerance for full
// credit. A NaN delta is never within tolerance.
func Score(br, uf string, delta, tolerance float64) int {
	if br == "" || uf == "" {
		return ScoreNone
	}
	if !math.IsNaN(delta) && delta <= tolerance {
		return ScoreKeyAndTol
	}
	return ScoreKey
}

// ApplyNonNull merges one attribute: the source value wins only when it is
// non-null, so existing data is never erased by a blank revision field.
func ApplyNonNull(dst, src string) string {
	if src != "" {
		return src
	}
	return dst
}

// Candidate is one joinable row from the geometry side, carried by its
// position in the source slice.
type Candidate struct {
	Idx   int
	BR    string
	UF    string
	KmIni float64
	KmFim float64
}

// Key is the broad-join key. Rows with a blank BR or UF never enter the
// index, mirroring null-key join semantics.
type Key struct {
	BR string
	UF string
}

// Index groups candidates by their normalized (BR, UF) pair.
type Index map[Key][]Candidate

// BuildIndex indexes candidates for broad lookup, preserving input order
// within each group so distance ties break on first encounter.
func BuildIndex(cands []Candidate) Index {
	idx := make(Index)
	for _, c := range cands {
		if c.BR == "" || c.UF == "" {
			continue
		}
		k := Key{BR: c.BR, UF: c.UF}
		idx[k] = append(idx[k], c)
	}
	return idx
}

// Best selects the candidate minimizing delta, treating NaN as +Inf so rows
// with no kilometer information lose to any measured row. The first minimal
// candidate wins ties. ok is false when cands is empty.
func Best(cands []Candidate, delta func(Candidate) float64) (best Candidate, d float64, ok bool) {
	d = math.NaN()
	for _, c := range cands {
		cd := delta(c)
		sortKey := cd
		if math.IsNaN(sortKey) {
			sortKey = math.Inf(1)
		}
		bestKey := d
		if math.IsNaN(bestKey) {
			bestKey = math.Inf(1)
		}
		if !ok || sortKey < bestKey {
			best, d, ok = c, cd, true
		}
	}
	return best, d, ok
}

// BestByInterval picks the candidate whose [KmIni, KmFim] interval is
// nearest to the target's start kilometer.
func BestByInterval(targetKm float64, cands []Candidate) (Candidate, float64, bool) {
	return Best(cands, func(c Candidate) float64 {
		return IntervalDistance(targetKm, c.KmIni, c.KmFim)
	})
}

// BestByIntervalOrStart is BestByInterval with a start-kilometer fallback:
// when a candidate's interval is unusable the absolute start-km difference
// stands in, so partially attributed shapefiles still rank.
func BestByIntervalOrStart(targetKm float64, cands []Candidate) (Candidate, float64, bool) {
	return Best(cands, func(c Candidate) float64 {
		d := IntervalDistance(targetKm, c.KmIni, c.KmFim)
		if math.IsNaN(d) {
			return math.Abs(targetKm - c.KmIni)
		}
		return d
	})
}
