package priors

import "github.com/gunjanbaid/octopus/haplotype"

// CoalescentModelParameters parametrizes CoalescentModel. SNVHeterozygosity
// is the expected per-base pairwise mismatch rate of the population the
// haplotype block was drawn from (theta); IndelHeterozygosity is unused by
// the simplified Hamming-distance model below but kept so callers can carry
// it through from upstream configuration (spec 6: prior_model_params).
type CoalescentModelParameters struct {
	SNVHeterozygosity   float64
	IndelHeterozygosity float64
}

// DefaultCoalescentModelParameters matches the population-genetics defaults
// Octopus ships (roughly human SNV heterozygosity).
var DefaultCoalescentModelParameters = CoalescentModelParameters{
	SNVHeterozygosity:   0.001,
	IndelHeterozygosity: 0.0001,
}

// CoalescentModel is a simplified coalescent population prior: it scores a
// haplotype set by the sum of pairwise Hamming distances between haplotype
// sequences, under the expectation that a population sample drawn from a
// single coalescent genealogy concentrates its sequence diversity in a small
// number of mutations relative to the reference. Haplotype sets with fewer,
// more concentrated differences get a higher (less negative) log
// probability. This stands in for the exact Octopus CoalescentModel (whose
// full derivation is outside this module's scope); the mathematical
// contract it fulfils - a deterministic, total log-probability ordering over
// haplotype sets - is what spec 4.9's dedup ordering and the optional root
// prior (spec 4.3) actually need.
type CoalescentModel struct {
	Reference haplotype.Haplotype
	Params    CoalescentModelParameters
}

// NewCoalescentModel constructs a CoalescentModel for the population the
// given reference haplotype was drawn from.
func NewCoalescentModel(reference haplotype.Haplotype, params CoalescentModelParameters) CoalescentModel {
	return CoalescentModel{Reference: reference, Params: params}
}

// LogProbability implements CoalescentPopulationPriorModel.
func (m CoalescentModel) LogProbability(g haplotype.Genotype) float64 {
	total := 0.0
	for _, h := range g.Haplotypes {
		total += m.LogProbabilityOf(h)
	}
	// Penalize diversity between the genotype's own alleles too, since a
	// coalescent genealogy makes closely-related (low-distance) haplotype
	// sets more likely than distant ones even ignoring the reference.
	for i := 0; i < len(g.Haplotypes); i++ {
		for j := i + 1; j < len(g.Haplotypes); j++ {
			total -= m.Params.SNVHeterozygosity * float64(hamming(g.Haplotypes[i].Sequence, g.Haplotypes[j].Sequence))
		}
	}
	return total
}

// LogProbabilityOf implements CoalescentPopulationPriorModel.
func (m CoalescentModel) LogProbabilityOf(h haplotype.Haplotype) float64 {
	return -m.Params.SNVHeterozygosity * float64(hamming(h.Sequence, m.Reference.Sequence))
}

func hamming(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	d := 0
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			d++
		}
	}
	d += abs(len(a) - len(b))
	return d
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// CoalescentProbabilityGreater orders haplotypes by descending coalescent
// log-probability (higher-probability haplotypes sort first), breaking ties
// by lexicographic sequence order, exactly as spec 4.9 specifies.
type CoalescentProbabilityGreater struct {
	Model CoalescentPopulationPriorModel
}

// Less reports whether a should sort before b under this ordering.
func (c CoalescentProbabilityGreater) Less(a, b haplotype.Haplotype) bool {
	pa, pb := c.Model.LogProbabilityOf(a), c.Model.LogProbabilityOf(b)
	if pa != pb {
		return pa > pb
	}
	return a.Less(b)
}
