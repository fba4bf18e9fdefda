package cellcaller

import (
	"context"
	"testing"

	"github.com/gunjanbaid/octopus/cellmodel"
	"github.com/gunjanbaid/octopus/genome"
	"github.com/gunjanbaid/octopus/haplotype"
	"github.com/gunjanbaid/octopus/phylogeny"
	"github.com/gunjanbaid/octopus/priors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testRegion = genome.Region{Contig: "chr1", Start: 0, End: 1}

type constantOracle struct {
	byHaplotype map[string]float64
}

func (o constantOracle) LogLikelihood(_ string, h haplotype.Haplotype) float64 {
	return o.byHaplotype[string(h.Sequence)]
}

func TestNewParametersClampsMaxCopyLoss(t *testing.T) {
	p := NewParameters(Parameters{Ploidy: 2, MaxCopyLoss: 5})
	assert.Equal(t, 1, p.MaxCopyLoss)

	p = NewParameters(Parameters{Ploidy: 2, MaxCopyLoss: -3})
	assert.Equal(t, 0, p.MaxCopyLoss)
}

func TestNewParametersSortsNormalSamples(t *testing.T) {
	p := NewParameters(Parameters{Ploidy: 2, NormalSamples: []string{"z", "a", "m"}})
	assert.Equal(t, []string{"a", "m", "z"}, p.NormalSamples)
	assert.True(t, p.IsNormal("a"))
	assert.False(t, p.IsNormal("q"))
}

func TestNewParametersDefaultsMaxClones(t *testing.T) {
	p := NewParameters(Parameters{Ploidy: 2, MaxClones: 0})
	assert.Equal(t, 1, p.MaxClones)
}

func TestKindFatal(t *testing.T) {
	assert.True(t, InvalidInput.Fatal())
	assert.True(t, InternalInvariantViolation.Fatal())
	assert.False(t, CapacityExceeded.Fatal())
	assert.False(t, Cancelled.Fatal())
	assert.False(t, InferenceUnderflow.Fatal())
}

func TestNextPermutation(t *testing.T) {
	a := []int{1, 2, 3}
	var seen [][]int
	for {
		seen = append(seen, append([]int(nil), a...))
		if !nextPermutation(a) {
			break
		}
	}
	require.Len(t, seen, 6, "3 distinct elements have 3! permutations")
	assert.Equal(t, []int{1, 2, 3}, seen[0])
	assert.Equal(t, []int{3, 2, 1}, seen[len(seen)-1])
	assert.Equal(t, []int{1, 2, 3}, a, "next_permutation resets to ascending order after the last permutation")
}

func TestEnumerateAssignmentsVisitsFullCartesianProduct(t *testing.T) {
	values := []int{1, 2}
	got := enumerateAssignments(values, 3)
	assert.Equal(t, 8, len(got), "2 values over 3 slots should visit 2^3 assignments")

	seen := map[string]bool{}
	for _, a := range got {
		key := ""
		for _, v := range a {
			key += string(rune('0' + v))
		}
		assert.False(t, seen[key], "assignment %v repeated", a)
		seen[key] = true
	}
}

func TestPloidyRangeClampsAtOne(t *testing.T) {
	got := ploidyRange(2, 5, 1)
	assert.Equal(t, []int{1, 2, 3}, got)
}

func TestDriverSearchSingleSample(t *testing.T) {
	ref := haplotype.New(testRegion, []byte("A"))
	alt := haplotype.New(testRegion, []byte("T"))
	block := haplotype.Block{ref, alt}
	genotypes := haplotype.EnumerateGenotypes(block, 2)

	oracle := constantOracle{byHaplotype: map[string]float64{
		string(ref.Sequence): -10,
		string(alt.Sequence): 0,
	}}
	model := cellmodel.NewModel(
		[]string{"sample-1"},
		cellmodel.PriorModel{Root: priors.UniformGenotypePriorModel{}, Mutation: noopMutation{}, CopyNumberLogProbability: -5},
		cellmodel.NewGenotypeOracle(oracle),
		cellmodel.Parameters{DropoutConcentration: 10},
		cellmodel.AlgorithmParameters{
			MaxGenotypeCombinations: 1000,
			MaxSeeds:                12,
			ExecutionPolicy:         cellmodel.Serial,
			ConvergenceEpsilon:      1e-6,
			MaxIterations:           50,
		},
	)

	driver := &Driver{Model: model, Genotypes: genotypes, Block: block, Params: NewParameters(Parameters{Ploidy: 2, MaxClones: 1})}
	topologies, err := driver.Search(context.Background())
	require.NoError(t, err)
	require.Len(t, topologies, 1)
	assert.NotNil(t, topologies[0].inferences.Phylogeny)
}

func TestDriverSearchRejectsEmptyGenotypes(t *testing.T) {
	model := cellmodel.NewModel([]string{"s"}, cellmodel.PriorModel{Root: priors.UniformGenotypePriorModel{}}, cellmodel.NewGenotypeOracle(constantOracle{}), cellmodel.Parameters{}, cellmodel.DefaultAlgorithmParameters)
	driver := &Driver{Model: model, Genotypes: nil, Params: NewParameters(Parameters{Ploidy: 2, MaxClones: 1})}
	_, err := driver.Search(context.Background())
	require.Error(t, err)
	cerr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, InvalidInput, cerr.Kind)
}

type noopMutation struct{}

func (noopMutation) LogMutation(haplotype.Haplotype, haplotype.Haplotype) float64 { return -1 }

func TestCallEndToEnd(t *testing.T) {
	ref := haplotype.New(testRegion, []byte("A"))
	alt := haplotype.New(testRegion, []byte("T"))
	block := haplotype.Block{ref, alt}

	oracle := constantOracle{byHaplotype: map[string]float64{
		string(ref.Sequence): -10,
		string(alt.Sequence): 0,
	}}

	region := Region{
		Block:   block,
		Samples: []string{"tumor-1"},
		Oracle:  oracle,
		Variants: []Variant{
			{Region: testRegion, Ref: ref, Alt: alt},
		},
		Params: Parameters{
			Ploidy:                  2,
			MaxClones:               1,
			SomaticCNVMutationRate:  -5,
			DropoutConcentration:    10,
			MaxJointGenotypes:       1000,
			MaxVBSeeds:              12,
			MinVariantPosterior:     0.01,
		},
		Algorithm: cellmodel.AlgorithmParameters{
			MaxGenotypeCombinations: 1000,
			MaxSeeds:                12,
			ExecutionPolicy:         cellmodel.Serial,
			ConvergenceEpsilon:      1e-6,
			MaxIterations:           50,
		},
	}

	calls, err := Call(context.Background(), region)
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, testRegion, calls[0].Variant.Region)
	gc, ok := calls[0].GenotypeCalls["tumor-1"]
	require.True(t, ok)
	assert.True(t, gc.Genotype.Contains(alt))
}

func TestProposeNextPhylogeniesLevelFourExtendsBestBase(t *testing.T) {
	fork := phylogeny.NewTree[struct{}](struct{}{})
	fork.AddDescendant(struct{}{}, 0)
	fork.AddDescendant(struct{}{}, 0)

	chain := phylogeny.NewTree[struct{}](struct{}{})
	a := chain.AddDescendant(struct{}{}, 0)
	chain.AddDescendant(struct{}{}, a)

	previousLevel := []evaluatedTopology{
		{shape: chain, inferences: cellmodel.Inferences{LogEvidence: -100}},
		{shape: fork, inferences: cellmodel.Inferences{LogEvidence: -1}},
	}

	d := &Driver{}
	candidates := d.proposeNextPhylogenies(4, previousLevel)
	// fork's root has 2 children already (full); only its two leaves have
	// room, so level 4 should extend each leaf exactly once.
	require.Len(t, candidates, 2)
	for _, c := range candidates {
		assert.Equal(t, 4, c.Size())
	}
}

func TestCopyNumberExtendPromotesOnBetterEvidence(t *testing.T) {
	ref := haplotype.New(testRegion, []byte("A"))
	alt := haplotype.New(testRegion, []byte("T"))
	block := haplotype.Block{ref, alt}

	chain := phylogeny.NewTree[struct{}](struct{}{})
	chain.AddDescendant(struct{}{}, 0)

	oracle := constantOracle{byHaplotype: map[string]float64{
		string(ref.Sequence): -10,
		string(alt.Sequence): 0,
	}}
	model := cellmodel.NewModel(
		[]string{"s1", "s2"},
		cellmodel.PriorModel{Root: priors.UniformGenotypePriorModel{}, Mutation: noopMutation{}, CopyNumberLogProbability: -1},
		cellmodel.NewGenotypeOracle(oracle),
		cellmodel.Parameters{DropoutConcentration: 10},
		cellmodel.AlgorithmParameters{
			MaxGenotypeCombinations: 1000,
			MaxSeeds:                12,
			ExecutionPolicy:         cellmodel.Serial,
			ConvergenceEpsilon:      1e-6,
			MaxIterations:           50,
		},
	)

	genotypes := haplotype.EnumerateGenotypes(block, 2)
	d := &Driver{
		Model:     model,
		Genotypes: genotypes,
		Block:     block,
		Params:    NewParameters(Parameters{Ploidy: 2, MaxCopyLoss: 1, MaxCopyGain: 1}),
	}

	base := d.evaluate(context.Background(), chain)
	_, promoted := d.copyNumberExtend(context.Background(), base)
	// Whether or not a strictly better ploidy assignment exists for this
	// toy instance isn't asserted; what matters is that a full pass over
	// every assignment runs to completion without error or panic.
	_ = promoted
}

func TestCopyNumberExtendNoopWhenBothBoundsZero(t *testing.T) {
	chain := phylogeny.NewTree[struct{}](struct{}{})
	chain.AddDescendant(struct{}{}, 0)
	d := &Driver{Params: NewParameters(Parameters{Ploidy: 2})}
	best := evaluatedTopology{shape: chain, inferences: cellmodel.Inferences{LogEvidence: -5}}

	got, promoted := d.copyNumberExtend(context.Background(), best)
	assert.False(t, promoted)
	assert.Equal(t, best, got)
}

func TestCallRejectsEmptyBlock(t *testing.T) {
	_, err := Call(context.Background(), Region{Samples: []string{"s"}})
	require.Error(t, err)
	cerr, ok := err.(*Error)
	require.True(t, ok)
	assert.True(t, cerr.Kind.Fatal())
}
