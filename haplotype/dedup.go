package haplotype

// Less reports whether a should sort before b under some total ordering.
// priors.CoalescentProbabilityGreater implements this without haplotype
// needing to import the priors package (which itself depends on
// haplotype.Genotype), avoiding an import cycle.
type Less interface {
	Less(a, b Haplotype) bool
}

// lessFunc adapts a plain comparison function to Less.
type lessFunc func(a, b Haplotype) bool

func (f lessFunc) Less(a, b Haplotype) bool { return f(a, b) }

// defaultLess is the structural dedup ordering used when no coalescent
// model is requested (spec 4.9: "If disabled, defer to the default
// structural dedup"): byte-for-byte lexicographic order, which is also the
// tie-break the coalescent ordering falls back to.
var defaultLess Less = lessFunc(func(a, b Haplotype) bool { return a.Less(b) })

// Deduplicate returns a deduplicated copy of block (block itself is left
// unchanged) and the number of haplotypes removed. When cmp is
// non-nil it is used as the dedup ordering (spec 4.9: "construct a
// coalescent prior ... and remove duplicates under a
// 'coalescent-probability-greater' ordering"); otherwise the default
// structural (lexicographic) ordering is used. Either way, of a run of
// equal haplotypes the one that sorts first under cmp is kept.
func Deduplicate(block Block, cmp Less) (Block, int) {
	if len(block) < 2 {
		return block, 0
	}
	if cmp == nil {
		cmp = defaultLess
	}
	ordered := make(Block, len(block))
	copy(ordered, block)
	sortBlock(ordered, cmp)

	out := ordered[:0:0]
	out = append(out, ordered[0])
	removed := 0
	for i := 1; i < len(ordered); i++ {
		if ordered[i].Equal(out[len(out)-1]) {
			removed++
			continue
		}
		out = append(out, ordered[i])
	}
	return out, removed
}

func sortBlock(hs Block, cmp Less) {
	for i := 1; i < len(hs); i++ {
		for j := i; j > 0 && cmp.Less(hs[j], hs[j-1]); j-- {
			hs[j], hs[j-1] = hs[j-1], hs[j]
		}
	}
}
