package cellcaller

import (
	"bytes"

	"github.com/biogo/store/llrb"
	"github.com/gunjanbaid/octopus/genome"
	"github.com/gunjanbaid/octopus/haplotype"
	"github.com/gunjanbaid/octopus/numeric"
	"github.com/gunjanbaid/octopus/phylogeny"
)

// Variant is a candidate ref/alt allele pair to score against the posterior
// (spec 4.8: "Given candidate variants (ref/alt pairs)").
type Variant struct {
	Region genome.Region
	Ref    haplotype.Haplotype
	Alt    haplotype.Haplotype
}

// GenotypeCall is a sample's MAP genotype call with its Phred confidence.
type GenotypeCall struct {
	Genotype haplotype.Genotype
	Phred    float64
}

// PhylogenySummary is the phylogeny context carried with every emitted call
// (spec 4.8: "phylogeny_summary: {topology with values elided, map_posterior,
// size_posteriors}").
type PhylogenySummary struct {
	Topology       *phylogeny.Tree[struct{}]
	MAPPosterior   float64 // Phred
	SizePosteriors []float64
}

// VariantCall is one emitted call (spec 6 output record).
type VariantCall struct {
	Variant          Variant
	GenotypeCalls    map[string]GenotypeCall
	Quality          float64 // Phred
	PhylogenySummary PhylogenySummary
}

// CallVariants implements spec 4.8's variant calling policy: emit a
// candidate iff any sample's alt posterior is at least minVariantPosterior
// AND at least one sample's MAP genotype contains the alt allele. Calls are
// returned ordered by variant start then alt allele (spec 5), backed by an
// llrb.Tree exactly as encoding/bampair/shard_info.go orders shard entries
// by a Comparable key rather than an ad hoc sort call.
func CallVariants(latents *Latents, variants []Variant, minVariantPosterior float64) []VariantCall {
	marginals := make(map[string][]float64, len(latents.Samples))
	for _, s := range latents.Samples {
		marginals[s] = latents.SampleGenotypePosteriors(s)
	}

	summary := phylogenySummary(latents)

	tree := &llrb.Tree{}
	for _, v := range variants {
		call, ok := buildCall(latents, v, marginals, summary, minVariantPosterior)
		if !ok {
			continue
		}
		tree.Insert(callKey{start: v.Region.Start, alt: v.Alt.Sequence, call: call})
	}

	var calls []VariantCall
	tree.Do(func(c llrb.Comparable) bool {
		calls = append(calls, c.(callKey).call)
		return false
	})
	return calls
}

func buildCall(latents *Latents, v Variant, marginals map[string][]float64, summary PhylogenySummary, minVariantPosterior float64) (VariantCall, bool) {
	altIndices := containingIndices(latents.Genotypes, v.Alt)
	if len(altIndices) == 0 {
		return VariantCall{}, false
	}

	genotypeCalls := make(map[string]GenotypeCall, len(latents.Samples))
	maxAltPosterior := 0.0
	anyMAPContainsAlt := false
	for _, sample := range latents.Samples {
		marginal := marginals[sample]
		altPosterior := sumIndices(marginal, altIndices)
		if altPosterior > maxAltPosterior {
			maxAltPosterior = altPosterior
		}
		mapIdx := numeric.ArgMax(marginal)
		if latents.Genotypes[mapIdx].Contains(v.Alt) {
			anyMAPContainsAlt = true
		}
		genotypeCalls[sample] = GenotypeCall{
			Genotype: latents.Genotypes[mapIdx],
			Phred:    numeric.ProbabilityFalseToPhred(1 - marginal[mapIdx]),
		}
	}

	if maxAltPosterior < minVariantPosterior || !anyMAPContainsAlt {
		return VariantCall{}, false
	}

	return VariantCall{
		Variant:          v,
		GenotypeCalls:    genotypeCalls,
		Quality:          numeric.ProbabilityFalseToPhred(1 - maxAltPosterior),
		PhylogenySummary: summary,
	}, true
}

func phylogenySummary(latents *Latents) PhylogenySummary {
	var topology *phylogeny.Tree[struct{}]
	if best := latents.Topologies[latents.MAPPhylogenyIdx]; best.shape != nil {
		topology = phylogeny.Transform(best.shape, func(int, struct{}) struct{} { return struct{}{} })
	}

	maxSize := 0
	for size := range latents.SizePosteriors {
		if size > maxSize {
			maxSize = size
		}
	}
	sizePosteriors := make([]float64, maxSize+1)
	for size, p := range latents.SizePosteriors {
		sizePosteriors[size] = numeric.ProbabilityFalseToPhred(1 - p)
	}

	return PhylogenySummary{
		Topology:       topology,
		MAPPosterior:   numeric.ProbabilityFalseToPhred(1 - latents.PhylogenyPosteriors[latents.MAPPhylogenyIdx]),
		SizePosteriors: sizePosteriors,
	}
}

func containingIndices(genotypes []haplotype.Genotype, h haplotype.Haplotype) []int {
	var out []int
	for i, g := range genotypes {
		if g.Contains(h) {
			out = append(out, i)
		}
	}
	return out
}

func sumIndices(v []float64, indices []int) float64 {
	sum := 0.0
	for _, i := range indices {
		sum += v[i]
	}
	return sum
}

// callKey is the llrb.Comparable ordering calls by variant start then
// lexicographic alt-allele bytes.
type callKey struct {
	start int64
	alt   []byte
	call  VariantCall
}

func (k callKey) Compare(other llrb.Comparable) int {
	o := other.(callKey)
	if k.start != o.start {
		if k.start < o.start {
			return -1
		}
		return 1
	}
	return bytes.Compare(k.alt, o.alt)
}
