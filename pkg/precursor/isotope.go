package precursor

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/ChrisMcGann/pepmass/pkg/core"
	"golang.org/x/sync/errgroup"
)

// MaxIsotopeLen is the number of isotope peaks kept in a distribution.
const MaxIsotopeLen = 10

// elementCache holds the distributions of n atoms of one element, keyed by
// symbol and count. Distributions are never mutated after insertion.
var elementCache = struct {
	sync.Mutex
	m map[elementKey][]float64
}{m: make(map[elementKey][]float64)}

type elementKey struct {
	symbol string
	count  int
}

// convolve returns the distribution of the summed offsets of a and b,
// truncated to MaxIsotopeLen peaks.
func convolve(a, b []float64) []float64 {
	n := min(len(a)+len(b)-1, MaxIsotopeLen)
	out := make([]float64, n)
	for i, x := range a {
		if x == 0 {
			continue
		}
		for j, y := range b {
			if i+j >= n {
				break
			}
			out[i+j] += x * y
		}
	}
	return out
}

// elementDistribution returns the isotope distribution of count atoms of an
// element, indexed by nominal offset from the all-lightest isotopologue.
func elementDistribution(symbol string, count int) ([]float64, error) {
	key := elementKey{symbol, count}
	elementCache.Lock()
	dist, ok := elementCache.m[key]
	elementCache.Unlock()
	if ok {
		return dist, nil
	}

	elem, ok := core.Elements[symbol]
	if !ok {
		return nil, fmt.Errorf("unknown element '%s'", symbol)
	}
	if count < 0 {
		return nil, fmt.Errorf("negative count %d for element %s", count, symbol)
	}

	// exponentiation by squaring over convolution
	result := []float64{1}
	base := elem.Abundances
	if len(base) > MaxIsotopeLen {
		base = base[:MaxIsotopeLen]
	}
	for n := count; n > 0; n >>= 1 {
		if n&1 == 1 {
			result = convolve(result, base)
		}
		if n > 1 {
			base = convolve(base, base)
		}
	}

	elementCache.Lock()
	elementCache.m[key] = result
	elementCache.Unlock()
	return result, nil
}

// IsotopeDistribution returns the normalized isotope distribution of a
// formula and the index of the monoisotopic peak within it.
func IsotopeDistribution(f core.Formula) ([]float64, int, error) {
	dist := []float64{1}
	mono := 0
	for _, symbol := range f.Symbols() {
		count := f[symbol]
		elemDist, err := elementDistribution(symbol, count)
		if err != nil {
			return nil, 0, err
		}
		dist = convolve(dist, elemDist)
		mono += count * core.Elements[symbol].MonoIndex
	}
	if mono >= len(dist) {
		return nil, 0, fmt.Errorf("monoisotopic peak of %s outside %d isotope peaks", f, MaxIsotopeLen)
	}

	total := 0.0
	for _, v := range dist {
		total += v
	}
	for i := range dist {
		dist[i] /= total
	}
	return dist, mono, nil
}

// ModSeqFormula returns the elemental composition of a modified sequence:
// residue compositions plus modification compositions, without water.
func ModSeqFormula(reg *core.ModRegistry, sequence string, mods []string) (core.Formula, error) {
	f, err := core.SequenceFormula(sequence)
	if err != nil {
		return nil, err
	}
	for _, mod := range mods {
		entry, ok := reg.Get(mod)
		if !ok {
			return nil, fmt.Errorf("%w: '%s'", core.ErrUnknownModification, mod)
		}
		if entry.Composition == nil {
			return nil, fmt.Errorf("%w: '%s'", core.ErrNoComposition, mod)
		}
		f.Add(entry.Composition, 1)
	}
	return f, nil
}

// ModSeqIsotopeDistribution returns the isotope distribution of a modified
// sequence and its monoisotopic index.
func ModSeqIsotopeDistribution(reg *core.ModRegistry, sequence string, mods []string) ([]float64, int, error) {
	f, err := ModSeqFormula(reg, sequence, mods)
	if err != nil {
		return nil, 0, err
	}
	for _, symbol := range f.Symbols() {
		if f[symbol] < 0 {
			return nil, 0, fmt.Errorf("%w: negative %s count in %s", core.ErrNoComposition, symbol, sequence)
		}
	}
	return IsotopeDistribution(f)
}

// envelope derives the isotope columns of one row from its distribution.
func envelope(dist []float64, mono int, precursorMZ float64, charge int) core.Isotope {
	at := func(i int) float64 {
		if i < len(dist) {
			return dist[i] / dist[mono]
		}
		return 0
	}
	apex := 0
	for i, v := range dist {
		if v > dist[apex] {
			apex = i
		}
	}
	step := core.IsotopeSpacing / float64(charge)
	return core.Isotope{
		IntensityM1:   at(mono + 1),
		IntensityM2:   at(mono + 2),
		ApexIntensity: at(apex),
		ApexIndex:     apex - mono,
		MZM1:          precursorMZ + step,
		MZM2:          precursorMZ + 2*step,
		ApexMZ:        precursorMZ + float64(apex-mono)*step,
	}
}

// CalcPrecursorIsotope fills the isotope columns of every row. precursor_mz
// is computed first when missing. Rows already invalid get NaN isotope
// columns. Rows carrying a modification without composition also get NaN
// isotope columns but stay valid and keep their precursor_mz.
func CalcPrecursorIsotope(reg *core.ModRegistry, t *core.PrecursorTable) error {
	if !t.Has(core.ColCharge) {
		return core.ErrMissingCharge
	}
	if !t.Has(core.ColPrecursorMZ) {
		if err := UpdatePrecursorMZ(reg, t, DefaultBatchSize); err != nil {
			return err
		}
	}

	for i := range t.Rows {
		p := &t.Rows[i]
		if !p.Valid() {
			p.MarkInvalid(p.Err)
			continue
		}
		dist, mono, err := ModSeqIsotopeDistribution(reg, p.Sequence, p.Mods)
		if errors.Is(err, core.ErrNoComposition) {
			// mass-only modification: m/z stands, the envelope does not
			p.ClearIsotope()
			continue
		}
		if err != nil {
			if !core.IsRowError(err) {
				return fmt.Errorf("precursor %s: %w", p.Name(), err)
			}
			p.MarkInvalid(err)
			continue
		}
		p.Isotope = envelope(dist, mono, p.PrecursorMZ, p.Charge)
	}
	t.Set(core.ColIsotope)
	return nil
}

// isotopeResult is one completed work item of the parallel isotope pass.
type isotopeResult struct {
	NAA   int
	Batch int
	Table *core.PrecursorTable
}

// CalcPrecursorIsotopeParallel is CalcPrecursorIsotope spread over a pool of
// workers. Work items are slices of at most batchSize rows of one length
// group. Sub-tables are concatenated in completion order, so the returned
// table is in no particular row order; its labels are those of t, and
// SortByLabel restores the input order. The first failing item aborts the
// whole pass. t itself is only touched to fill nAA.
func CalcPrecursorIsotopeParallel(reg *core.ModRegistry, t *core.PrecursorTable, workers, batchSize int) (*core.PrecursorTable, error) {
	if !t.Has(core.ColCharge) {
		return nil, core.ErrMissingCharge
	}
	if workers <= 0 {
		workers = 1
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	groups, err := core.GroupByLength(t)
	if err != nil {
		return nil, err
	}

	items := 0
	for _, g := range groups {
		items += (len(g.Positions) + batchSize - 1) / batchSize
	}
	results := make(chan isotopeResult, items)

	var eg errgroup.Group
	eg.SetLimit(workers)
	for _, g := range groups {
		for start, batch := 0, 0; start < len(g.Positions); start, batch = start+batchSize, batch+1 {
			end := min(start+batchSize, len(g.Positions))
			sub := t.Subset(g.Positions[start:end])
			nAA := g.NAA
			batch := batch
			eg.Go(func() error {
				if err := CalcPrecursorIsotope(reg, sub); err != nil {
					return fmt.Errorf("length group %d batch %d: %w", nAA, batch, err)
				}
				results <- isotopeResult{NAA: nAA, Batch: batch, Table: sub}
				return nil
			})
		}
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	close(results)

	tables := make([]*core.PrecursorTable, 0, items)
	for r := range results {
		if r.Table.Len() != 0 && r.Table.Rows[0].NAA != r.NAA {
			return nil, fmt.Errorf("%w: result for length group %d holds nAA %d", core.ErrShapeMismatch, r.NAA, r.Table.Rows[0].NAA)
		}
		tables = append(tables, r.Table)
	}
	if len(tables) == 0 {
		return core.NewPrecursorTable(nil, t.Columns()|core.ColPrecursorMZ|core.ColIsotope), nil
	}
	return core.Concat(tables...), nil
}

// IsotopeFinite reports whether the isotope columns of a row were computed.
func IsotopeFinite(iso core.Isotope) bool {
	return !math.IsNaN(iso.IntensityM1) && !math.IsNaN(iso.ApexMZ)
}
