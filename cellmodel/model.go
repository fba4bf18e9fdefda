package cellmodel

import (
	"github.com/gunjanbaid/octopus/phylogeny"
	"github.com/gunjanbaid/octopus/priors"
)

// GroupLatents is the value held at each phylogeny node after inference
// (spec section 3).
type GroupLatents struct {
	// GenotypePosteriors is a discrete distribution (sums to 1) over the
	// enumerated genotype set.
	GenotypePosteriors []float64
	// SampleAttachmentPosteriors[s] is the probability that this group is
	// sample s's origin; across groups it sums to 1 per sample.
	SampleAttachmentPosteriors []float64
}

// Inferences is the result of evaluating one phylogeny topology (spec
// section 3): the phylogeny with GroupLatents filled in, and the model's
// log-evidence (ELBO), used as the model-selection criterion.
type Inferences struct {
	Phylogeny   *phylogeny.Tree[GroupLatents]
	LogEvidence float64
	// Cancelled is set when the engine observed a cancelled context; in
	// that case LogEvidence is meaningless and callers must not use this
	// Inferences for model selection (spec 5, spec 7 "Cancelled").
	Cancelled bool
}

// SamplePriorKind distinguishes an unconstrained sample attachment from one
// pinned to a specific group (Design Notes 9: "replace 'optional list of
// optionals' with an enum {Unconstrained, PinnedTo(group_id)}").
type SamplePriorKind int

const (
	Unconstrained SamplePriorKind = iota
	PinnedTo
)

// SamplePrior is the per-sample attachment constraint. The zero value is
// Unconstrained.
type SamplePrior struct {
	Kind    SamplePriorKind
	GroupID int
}

// Pinned returns a SamplePrior that pins a sample's attachment to groupID
// (used for spec 6's normal_samples, always pinned to the root group 0).
func Pinned(groupID int) SamplePrior {
	return SamplePrior{Kind: PinnedTo, GroupID: groupID}
}

// ExecutionPolicy selects how the engine parallelizes within one region
// (spec section 5).
type ExecutionPolicy int

const (
	Serial ExecutionPolicy = iota
	ParByTopology
	ParBySeed
)

// Parameters holds the model hyperparameters from spec section 4.4/6.
type Parameters struct {
	DropoutConcentration float64
	// SampleDropoutConcentrations overrides DropoutConcentration for
	// specific samples, keyed by sample name (spec 6:
	// sample_dropout_concentrations).
	SampleDropoutConcentrations map[string]float64
	GroupConcentration          float64
	// SamplePriors, if non-nil, must have one entry per sample (same order
	// as Model.Samples).
	SamplePriors []SamplePrior
}

func (p Parameters) dropoutConcentration(sample string) float64 {
	if c, ok := p.SampleDropoutConcentrations[sample]; ok {
		return c
	}
	return p.DropoutConcentration
}

// AlgorithmParameters holds the search/convergence knobs from spec 4.4/6.
type AlgorithmParameters struct {
	MaxGenotypeCombinations int
	MaxSeeds                int
	ExecutionPolicy         ExecutionPolicy
	ConvergenceEpsilon      float64
	MaxIterations           int
}

// DefaultAlgorithmParameters mirrors the fallbacks cell_caller.cpp applies
// when max_joint_genotypes/max_vb_seeds are not supplied.
var DefaultAlgorithmParameters = AlgorithmParameters{
	MaxGenotypeCombinations: 10000,
	MaxSeeds:                12,
	ExecutionPolicy:         Serial,
	ConvergenceEpsilon:      1e-4,
	MaxIterations:           200,
}

// PriorModel is the Single-Cell Prior Model (spec 4.3): a root prior plus an
// edge (parent-to-child) prior, used by the engine when updating q(G).
type PriorModel struct {
	Root                     priors.GenotypePriorProvider
	Mutation                 priors.DeNovoMutationProvider
	CopyNumberLogProbability float64
}
