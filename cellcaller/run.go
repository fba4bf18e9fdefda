package cellcaller

import (
	"context"
	"math"

	"github.com/gunjanbaid/octopus/cellmodel"
	"github.com/gunjanbaid/octopus/haplotype"
	"github.com/gunjanbaid/octopus/priors"
)

// Region ties together everything one call region needs: the haplotype
// block, samples, injected collaborators, and parameters (spec 6's external
// interfaces, gathered into the single entry point the outer dispatcher
// calls once per genomic region).
type Region struct {
	Block      haplotype.Block
	Samples    []string
	Oracle     cellmodel.HaplotypeOracle
	Root       priors.GenotypePriorProvider
	Mutation   priors.DeNovoMutationProvider
	Population priors.CoalescentPopulationPriorModel
	Params     Parameters
	Algorithm  cellmodel.AlgorithmParameters
	Variants   []Variant
}

// Call runs the full core pipeline for one region: optional haplotype
// dedup (spec 4.9), phylogeny search (spec 4.5), copy-number extension and
// posterior aggregation (spec 4.6-4.7), and variant calling (spec 4.8). It
// returns a fatal *Error (Kind.Fatal() true) on InvalidInput or
// InternalInvariantViolation; any other condition degrades the search in
// place per spec 7's propagation policy and is reflected in the result
// (possibly an empty call list) rather than an error.
func Call(ctx context.Context, r Region) ([]VariantCall, error) {
	params := NewParameters(r.Params)
	if len(r.Block) == 0 {
		return nil, newError(InvalidInput, "cellcaller: empty haplotype block")
	}

	block := r.Block
	if params.DeduplicateHaplotypesWithPriorModel && len(block) >= 2 {
		population := r.Population
		if population == nil {
			population = priors.NewCoalescentModel(block[0], priors.DefaultCoalescentModelParameters)
		}
		deduped, _ := haplotype.Deduplicate(block, priors.CoalescentProbabilityGreater{Model: population})
		block = deduped
	}

	genotypes := haplotype.EnumerateGenotypes(block, params.Ploidy)
	if len(genotypes) == 0 {
		return nil, newError(InvalidInput, "cellcaller: ploidy must be positive")
	}

	rootPrior := r.Root
	if rootPrior == nil {
		rootPrior = priors.UniformGenotypePriorModel{}
	}

	samplePriors := make([]cellmodel.SamplePrior, len(r.Samples))
	for i, s := range r.Samples {
		if params.IsNormal(s) {
			samplePriors[i] = cellmodel.Pinned(0)
		}
	}

	model := cellmodel.NewModel(
		r.Samples,
		cellmodel.PriorModel{Root: rootPrior, Mutation: r.Mutation, CopyNumberLogProbability: params.SomaticCNVMutationRate},
		cellmodel.NewGenotypeOracle(r.Oracle),
		cellmodel.Parameters{
			DropoutConcentration:        params.DropoutConcentration,
			SampleDropoutConcentrations: params.SampleDropoutConcentrations,
			SamplePriors:                samplePriors,
		},
		r.Algorithm,
	)

	driver := &Driver{Model: model, Genotypes: genotypes, Block: block, Params: params}
	topologies, err := driver.Search(ctx)
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, nil
	}
	if math.IsInf(topologies[0].inferences.LogEvidence, -1) {
		// Every seed of the K=1 topology underflowed: no calls.
		return nil, nil
	}

	latents := driver.Aggregate(ctx, topologies)
	if ctx.Err() != nil {
		return nil, nil
	}
	return CallVariants(latents, r.Variants, params.MinVariantPosterior), nil
}
