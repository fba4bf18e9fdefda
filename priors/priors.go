// Package priors implements the Genotype Prior Provider, the De Novo
// Mutation Provider contract, the Single-Cell Prior Model (spec 4.3), and
// the Coalescent Population Prior used by haplotype deduplication (spec
// 4.9). The Likelihood Oracle is a separate, purely external collaborator
// and is defined in the cellmodel package instead.
package priors

import "github.com/gunjanbaid/octopus/haplotype"

// GenotypePriorProvider assigns a log prior to a genotype, used at the root
// of every phylogeny (spec 4.3: "Root uses the Genotype Prior Provider").
type GenotypePriorProvider interface {
	LogPrior(g haplotype.Genotype) float64
}

// DeNovoMutationProvider returns the log probability of a child allele
// arising (by somatic/germline mutation) from a parent allele. It operates
// per haplotype allele, not per whole genotype: the Single-Cell Prior Model
// pairs up parent and child alleles positionally and sums the per-allele
// log-mixture (spec 4.3).
type DeNovoMutationProvider interface {
	LogMutation(parentAllele, childAllele haplotype.Haplotype) float64
}

// CoalescentPopulationPriorModel assigns a log probability to a genotype (or,
// via LogProbabilityOf, a single haplotype) under a coalescent model of the
// population the haplotype block was drawn from. It backs both the
// deduplication ordering (spec 4.9) and, optionally, the root
// GenotypePriorProvider (via CoalescentGenotypePriorModel below).
type CoalescentPopulationPriorModel interface {
	LogProbability(g haplotype.Genotype) float64
	LogProbabilityOf(h haplotype.Haplotype) float64
}

// UniformGenotypePriorModel assigns every genotype the same (relative) log
// prior. Differences between genotypes are resolved entirely by the
// likelihood terms; this mirrors uniform_genotype_prior_model.hpp in the
// original source, which is Octopus's default when no coalescent population
// parameters are supplied.
type UniformGenotypePriorModel struct{}

// LogPrior implements GenotypePriorProvider.
func (UniformGenotypePriorModel) LogPrior(haplotype.Genotype) float64 { return 0 }

// CoalescentGenotypePriorModel adapts a CoalescentPopulationPriorModel into a
// GenotypePriorProvider, mirroring coalescent_genotype_prior_model.hpp.
type CoalescentGenotypePriorModel struct {
	Population CoalescentPopulationPriorModel
}

// LogPrior implements GenotypePriorProvider.
func (m CoalescentGenotypePriorModel) LogPrior(g haplotype.Genotype) float64 {
	return m.Population.LogProbability(g)
}
