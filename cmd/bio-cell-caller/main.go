/*
bio-cell-caller is a demo binary wiring the phylogenetic single-cell
variant-calling core (packages haplotype, priors, phylogeny, cellmodel,
cellcaller) behind command-line flags. It does not itself align reads or
compute haplotype likelihoods: those collaborators are out of scope for the
core (see cellcaller.Region), so this binary only exercises the core against
a synthetic single-variant, two-sample region to demonstrate wiring.
*/
package main

import (
	"flag"
	"fmt"
	"math"
	"os"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/gunjanbaid/octopus/cellcaller"
	"github.com/gunjanbaid/octopus/cellmodel"
	"github.com/gunjanbaid/octopus/diagnostics"
	"github.com/gunjanbaid/octopus/genome"
	"github.com/gunjanbaid/octopus/haplotype"
	"github.com/gunjanbaid/octopus/priors"
)

var (
	ploidy               = flag.Int("ploidy", 2, "Default per-cell ploidy")
	maxClones            = flag.Int("max-clones", 4, "Maximum phylogeny size (K) to search")
	maxCopyLoss          = flag.Int("max-copy-loss", 0, "Maximum ploidy loss the copy-number extension may try")
	maxCopyGain          = flag.Int("max-copy-gain", 0, "Maximum ploidy gain the copy-number extension may try")
	somaticCNVRate       = flag.Float64("somatic-cnv-rate", 1e-4, "log-space prior weight given to a copy-number change at an edge")
	dropoutConcentration = flag.Float64("dropout-concentration", 1.0, "Dirichlet concentration for the per-sample dropout weight prior")
	minVariantPosterior  = flag.Float64("min-variant-posterior", 0.5, "Minimum alt-allele posterior (probability scale) required to emit a call")
	maxGenotypeCombos    = flag.Int("max-genotype-combinations", 10000, "Cap on the joint genotype-assignment space searched per topology")
	maxSeeds             = flag.Int("max-seeds", 12, "Maximum number of VB seeds run per topology")
	dedupHaplotypes      = flag.Bool("dedup-haplotypes", false, "Deduplicate input haplotypes under a coalescent-probability-greater ordering before calling")
	diagnosticsPath      = flag.String("diagnostics", "", "If set, local path to record a diagnostic to when cell calling fails")
)

func main() {
	shutdown := grail.Init()
	defer shutdown()

	ctx := vcontext.Background()

	block, variant, samples, oracle := demoRegion()

	var sink *diagnostics.Sink
	if *diagnosticsPath != "" {
		sink = diagnostics.NewSink(*diagnosticsPath)
		defer func() {
			if err := sink.Flush(ctx); err != nil {
				log.Error.Printf("flushing diagnostics: %v", err)
			}
		}()
	}

	region := cellcaller.Region{
		Block:    block,
		Samples:  samples,
		Oracle:   oracle,
		Variants: []cellcaller.Variant{variant},
		Params: cellcaller.Parameters{
			Ploidy:                              *ploidy,
			MaxClones:                           *maxClones,
			MaxCopyLoss:                         *maxCopyLoss,
			MaxCopyGain:                         *maxCopyGain,
			SomaticCNVMutationRate:              *somaticCNVRate,
			DropoutConcentration:                *dropoutConcentration,
			MaxJointGenotypes:                   *maxGenotypeCombos,
			MaxVBSeeds:                          *maxSeeds,
			MinVariantPosterior:                 *minVariantPosterior,
			DeduplicateHaplotypesWithPriorModel: *dedupHaplotypes,
		},
		Algorithm: cellmodel.AlgorithmParameters{
			MaxGenotypeCombinations: *maxGenotypeCombos,
			MaxSeeds:                *maxSeeds,
			ExecutionPolicy:         cellmodel.ParBySeed,
			ConvergenceEpsilon:      cellmodel.DefaultAlgorithmParameters.ConvergenceEpsilon,
			MaxIterations:           cellmodel.DefaultAlgorithmParameters.MaxIterations,
		},
	}

	calls, err := cellcaller.Call(ctx, region)
	if err != nil {
		if cerr, ok := err.(*cellcaller.Error); ok && sink != nil {
			sink.Record(ctx, diagnostics.Record{
				Kind:       diagnosticsKind(cerr.Kind),
				RegionName: variant.Region.String(),
				Detail:     cerr.Error(),
			})
			// log.Fatalf exits without running deferred calls.
			if ferr := sink.Flush(ctx); ferr != nil {
				log.Error.Printf("flushing diagnostics: %v", ferr)
			}
		}
		log.Fatalf("cell calling failed: %v", err)
	}

	for _, c := range calls {
		fmt.Fprintf(os.Stdout, "%s\tQUAL=%.1f\n", c.Variant.Region.String(), c.Quality)
		for sample, gc := range c.GenotypeCalls {
			fmt.Fprintf(os.Stdout, "  %s\tGT=%v\tGQ=%.1f\n", sample, gc.Genotype, gc.Phred)
		}
	}
	log.Debug.Printf("exiting, %d calls emitted", len(calls))
}

func diagnosticsKind(k cellcaller.Kind) diagnostics.Kind {
	switch k {
	case cellcaller.CapacityExceeded:
		return diagnostics.CapacityExceeded
	case cellcaller.InferenceUnderflow:
		return diagnostics.InferenceUnderflow
	case cellcaller.Cancelled:
		return diagnostics.Cancelled
	default:
		return diagnostics.CapacityExceeded
	}
}

// demoRegion builds a small synthetic two-haplotype, two-sample region so
// this binary has something to call without wiring an actual pileup/pair-HMM
// collaborator (those are injected interfaces, out of scope for the core).
func demoRegion() (haplotype.Block, cellcaller.Variant, []string, demoOracle) {
	region := genome.Region{Contig: "chr1", Start: 1000, End: 1001}
	ref := haplotype.New(region, []byte("A"))
	alt := haplotype.New(region, []byte("T"))
	block := haplotype.Block{ref, alt}

	variant := cellcaller.Variant{Region: region, Ref: ref, Alt: alt}
	samples := []string{"tumor-1", "tumor-2"}

	oracle := demoOracle{altSupport: map[string]float64{"tumor-1": 0.9, "tumor-2": 0.1}, alt: alt}
	return block, variant, samples, oracle
}

// demoOracle is a placeholder HaplotypeOracle standing in for a real
// pair-HMM likelihood collaborator: it favors the alt haplotype in
// proportion to altSupport[sample].
type demoOracle struct {
	altSupport map[string]float64
	alt        haplotype.Haplotype
}

func (o demoOracle) LogLikelihood(sample string, h haplotype.Haplotype) float64 {
	support := o.altSupport[sample]
	if h.Equal(o.alt) {
		return math.Log(support)
	}
	return math.Log(1 - support)
}
