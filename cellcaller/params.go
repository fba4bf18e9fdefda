package cellcaller

import "sort"

// Parameters mirrors spec 6's external parameter struct field-for-field.
type Parameters struct {
	Ploidy                               int
	MaxClones                            int
	MaxCopyLoss                          int
	MaxCopyGain                          int
	SomaticCNVMutationRate               float64
	MutationModelParameters              map[string]float64
	DropoutConcentration                 float64
	SampleDropoutConcentrations          map[string]float64
	NormalSamples                        []string
	PriorModelParams                     *CoalescentModelParams
	MaxJointGenotypes                    int
	MaxVBSeeds                           int
	MinVariantPosterior                  float64 // probability scale, not Phred
	DeduplicateHaplotypesWithPriorModel  bool
}

// CoalescentModelParams mirrors priors.CoalescentModelParameters, kept as a
// distinct type here so cellcaller does not need to import priors just to
// describe the optional override (spec 6: prior_model_params?).
type CoalescentModelParams struct {
	SNVHeterozygosity   float64
	IndelHeterozygosity float64
}

// NewParameters applies the invariants spec 6 requires: max_copy_loss
// clamped to ploidy-1, normal_samples kept sorted - mirroring
// CellCaller::CellCaller's two-line invariant enforcement in cell_caller.cpp.
func NewParameters(p Parameters) Parameters {
	if p.MaxCopyLoss > p.Ploidy-1 {
		p.MaxCopyLoss = p.Ploidy - 1
	}
	if p.MaxCopyLoss < 0 {
		p.MaxCopyLoss = 0
	}
	if len(p.NormalSamples) > 0 {
		sorted := make([]string, len(p.NormalSamples))
		copy(sorted, p.NormalSamples)
		sort.Strings(sorted)
		p.NormalSamples = sorted
	}
	if p.MaxClones < 1 {
		p.MaxClones = 1
	}
	return p
}

// IsNormal reports whether sample is in p.NormalSamples (binary search since
// NewParameters keeps the slice sorted).
func (p Parameters) IsNormal(sample string) bool {
	i := sort.SearchStrings(p.NormalSamples, sample)
	return i < len(p.NormalSamples) && p.NormalSamples[i] == sample
}
