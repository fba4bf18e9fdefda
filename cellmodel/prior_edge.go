package cellmodel

import (
	"github.com/gunjanbaid/octopus/haplotype"
	"github.com/gunjanbaid/octopus/numeric"
)

// LogPriorRoot returns the root group's log prior for genotype g (spec 4.3:
// "Root uses the Genotype Prior Provider").
func (m PriorModel) LogPriorRoot(g haplotype.Genotype) float64 {
	return m.Root.LogPrior(g)
}

// LogPriorEdge implements spec 4.3's formula:
//
//	log P(child | parent) = Σ_l LogMix(copy_number_log_probability,
//	                                    log_mutation(parent_allele_l -> child_allele_l))
//
// Parent and child alleles are paired positionally in each genotype's
// canonical (sorted) order. A ploidy change (copy-number extension, spec
// 4.6) means the two genotypes can have different allele counts; alleles
// beyond the shorter genotype's ploidy are scored against
// CopyNumberLogProbability alone (an allele appearing or disappearing is
// exactly the copy-number event that parameter's log-probability
// describes).
func (m PriorModel) LogPriorEdge(parent, child haplotype.Genotype) float64 {
	total := 0.0
	n := len(parent.Haplotypes)
	if len(child.Haplotypes) < n {
		n = len(child.Haplotypes)
	}
	for l := 0; l < n; l++ {
		logMut := m.Mutation.LogMutation(parent.Haplotypes[l], child.Haplotypes[l])
		total += numeric.LogMix(m.CopyNumberLogProbability, logMut)
	}
	extra := len(child.Haplotypes) - len(parent.Haplotypes)
	if extra < 0 {
		extra = -extra
	}
	for l := 0; l < extra; l++ {
		total += m.CopyNumberLogProbability
	}
	return total
}
