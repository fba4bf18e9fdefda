package cellmodel

import (
	"context"
	"math"

	"github.com/grailbio/base/traverse"
	"github.com/gunjanbaid/octopus/haplotype"
	"github.com/gunjanbaid/octopus/numeric"
	"github.com/gunjanbaid/octopus/phylogeny"
)

// Model is the Variational Inference Engine (spec 4.4): a factorized
// posterior q(G,Z,W) = q(G)*q(Z)*q(W) over joint group genotypes (G),
// sample-to-group attachments (Z), and per-sample dropout weights (W),
// fit by coordinate-ascent mean-field for a fixed phylogeny topology.
type Model struct {
	Samples    []string
	Prior      PriorModel
	Likelihood GenotypeOracle
	Params     Parameters
	Algorithm  AlgorithmParameters
}

// NewModel constructs a Model for one phylogeny evaluation.
func NewModel(samples []string, prior PriorModel, likelihood GenotypeOracle, params Parameters, algorithm AlgorithmParameters) *Model {
	return &Model{Samples: samples, Prior: prior, Likelihood: likelihood, Params: params, Algorithm: algorithm}
}

// Evaluate runs the coordinate-ascent mean-field algorithm over a single
// genotype set shared by every group, from every seed spec 4.2 generates (up
// to AlgorithmParameters.MaxSeeds), and returns the Inferences of the seed
// whose converged ELBO is highest (spec 4.4 step 2). shape is the phylogeny
// topology to fill in; block is the haplotype block the seed RNG key is
// derived from (spec 4.2, spec 5 determinism).
func (m *Model) Evaluate(ctx context.Context, shape TreeShape, genotypes []haplotype.Genotype, block haplotype.Block) Inferences {
	return m.EvaluateGroupGenotypes(ctx, shape, Replicate(genotypes, shape.Size()), block)
}

// EvaluateGroupGenotypes is the general form of Evaluate: groupGenotypes[id]
// is the candidate genotype set available to group id. The copy-number
// extension (spec 4.6) is the one caller that gives each group a distinct,
// ploidy-specific set; every other caller uses Replicate to share one set.
func (m *Model) EvaluateGroupGenotypes(ctx context.Context, shape TreeShape, groupGenotypes [][]haplotype.Genotype, block haplotype.Block) Inferences {
	k := shape.Size()
	if k == 0 || len(groupGenotypes) != k || len(m.Samples) == 0 {
		return Inferences{LogEvidence: numeric.NegInf}
	}
	for _, gs := range groupGenotypes {
		if len(gs) == 0 {
			return Inferences{LogEvidence: numeric.NegInf}
		}
	}

	seedKey := DeriveSeedKey(block, k)
	seeds := GenerateSeeds(groupGenotypes, shape, m.Prior, m.Algorithm.MaxGenotypeCombinations, seedKey)
	maxSeeds := m.Algorithm.MaxSeeds
	if maxSeeds <= 0 || maxSeeds > len(seeds) {
		maxSeeds = len(seeds)
	}
	seeds = seeds[:maxSeeds]

	results := make([]seedResult, len(seeds))
	runOne := func(i int) error {
		results[i] = m.runSeed(ctx, shape, groupGenotypes, seeds[i])
		return nil
	}
	if m.Algorithm.ExecutionPolicy == ParBySeed && len(seeds) > 1 {
		_ = traverse.Each(len(seeds), runOne) // runOne never errors
	} else {
		for i := range seeds {
			_ = runOne(i)
		}
	}

	best := -1
	bestEvidence := numeric.NegInf
	anyCancelled := false
	for i, r := range results {
		if r.cancelled {
			anyCancelled = true
			continue
		}
		if r.logEvidence > bestEvidence {
			bestEvidence = r.logEvidence
			best = i
		}
	}
	if best == -1 {
		if anyCancelled {
			return Inferences{Cancelled: true}
		}
		return Inferences{LogEvidence: numeric.NegInf}
	}
	return Inferences{Phylogeny: buildTree(shape, results[best].groups), LogEvidence: bestEvidence}
}

type groupResult struct {
	genotypePosteriors         []float64
	sampleAttachmentPosteriors []float64 // indexed by sample
}

type seedResult struct {
	logEvidence float64
	groups      []groupResult // indexed by group id
	cancelled   bool
}

func (m *Model) runSeed(ctx context.Context, shape TreeShape, groupGenotypes [][]haplotype.Genotype, seed []int) seedResult {
	k := shape.Size()
	s := len(m.Samples)

	qG := make([][]float64, k)
	for id := range qG {
		qG[id] = onehotSoft(seed[id], len(groupGenotypes[id]))
	}

	attachPrior := make([][]float64, s)
	qZ := make([][]float64, s)
	pinned := make([]bool, s)
	for si := range m.Samples {
		attachPrior[si] = make([]float64, k)
		qZ[si] = make([]float64, k)
		if m.Params.SamplePriors != nil && m.Params.SamplePriors[si].Kind == PinnedTo {
			group := m.Params.SamplePriors[si].GroupID
			attachPrior[si][group] = 1
			qZ[si][group] = 1
			pinned[si] = true
		} else {
			for gi := range attachPrior[si] {
				attachPrior[si][gi] = 1 / float64(k)
				qZ[si][gi] = 1 / float64(k)
			}
		}
	}

	w := make([]float64, s)
	for i := range w {
		w[i] = 1
	}
	maxLL := make([]float64, s)
	for si, sample := range m.Samples {
		max := numeric.NegInf
		for id := range groupGenotypes {
			for _, gt := range groupGenotypes[id] {
				if v := m.Likelihood.LogLikelihood(sample, gt); v > max {
					max = v
				}
			}
		}
		maxLL[si] = max
	}

	prevELBO := numeric.NegInf
	for iter := 0; iter < m.Algorithm.MaxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return seedResult{cancelled: true}
		}

		newQG, underflow := m.updateQG(shape, groupGenotypes, qG, qZ, w)
		if underflow {
			return seedResult{logEvidence: numeric.NegInf}
		}
		qG = newQG

		qZ = m.updateQZ(groupGenotypes, qG, attachPrior, pinned, w)
		w = m.updateW(groupGenotypes, qG, qZ, maxLL)

		elbo := m.computeELBO(shape, groupGenotypes, qG, qZ, attachPrior, w)
		if math.IsInf(elbo, -1) {
			return seedResult{logEvidence: numeric.NegInf}
		}
		if iter > 0 && math.Abs(elbo-prevELBO) < m.Algorithm.ConvergenceEpsilon {
			prevELBO = elbo
			break
		}
		prevELBO = elbo
	}

	groups := make([]groupResult, k)
	for id := 0; id < k; id++ {
		attach := make([]float64, s)
		for si := range m.Samples {
			attach[si] = qZ[si][id]
		}
		groups[id] = groupResult{genotypePosteriors: qG[id], sampleAttachmentPosteriors: attach}
	}
	return seedResult{logEvidence: prevELBO, groups: groups}
}

func onehotSoft(idx, n int) []float64 {
	const mass = 0.98
	out := make([]float64, n)
	if n == 1 {
		out[0] = 1
		return out
	}
	rest := (1 - mass) / float64(n-1)
	for i := range out {
		out[i] = rest
	}
	out[idx] = mass
	return out
}

// priorTerm returns log prior_g(i | parent) for every candidate genotype i
// in group id's own set, expecting over the parent group's CURRENT q(G) when
// id is not the root (spec 4.4: "log prior_g(i | parents via 4.3)").
func (m *Model) priorTerm(shape TreeShape, groupGenotypes [][]haplotype.Genotype, qG [][]float64, id int) []float64 {
	genotypes := groupGenotypes[id]
	out := make([]float64, len(genotypes))
	parent := shape.Parent(id)
	if parent < 0 {
		for i, gt := range genotypes {
			out[i] = m.Prior.LogPriorRoot(gt)
		}
		return out
	}
	parentGenotypes := groupGenotypes[parent]
	for i, child := range genotypes {
		terms := make([]float64, len(parentGenotypes))
		for j, pg := range parentGenotypes {
			terms[j] = math.Log(qG[parent][j]) + m.Prior.LogPriorEdge(pg, child)
		}
		out[i] = numeric.LogSumExp(terms)
	}
	return out
}

// updateQG performs one Jacobi-style sweep of q(G) for every group,
// computed entirely from the previous iteration's qG/qZ/w (spec 4.4 step
// 2a), so the result does not depend on the order groups are visited in.
func (m *Model) updateQG(shape TreeShape, groupGenotypes [][]haplotype.Genotype, qG [][]float64, qZ [][]float64, w []float64) ([][]float64, bool) {
	k := shape.Size()
	out := make([][]float64, k)
	for id := 0; id < k; id++ {
		logQ := m.priorTerm(shape, groupGenotypes, qG, id)
		for i, gt := range groupGenotypes[id] {
			sum := 0.0
			for si, sample := range m.Samples {
				sum += qZ[si][id] * w[si] * m.Likelihood.LogLikelihood(sample, gt)
			}
			logQ[i] += sum
		}
		if math.IsInf(numeric.LogSumExp(logQ), -1) {
			return nil, true
		}
		out[id] = numeric.ExpNormalize(logQ)
	}
	return out, false
}

// updateQZ updates every unconstrained sample's attachment distribution
// from the NEW q(G) computed this iteration and the previous iteration's
// w (spec 4.4 step 2b); pinned samples are left untouched.
func (m *Model) updateQZ(groupGenotypes [][]haplotype.Genotype, qG [][]float64, attachPrior [][]float64, pinned []bool, w []float64) [][]float64 {
	k := len(qG)
	out := make([][]float64, len(m.Samples))
	for si, sample := range m.Samples {
		if pinned[si] {
			out[si] = attachPrior[si]
			continue
		}
		logQ := make([]float64, k)
		for gid := 0; gid < k; gid++ {
			expectedLL := 0.0
			for i, p := range qG[gid] {
				expectedLL += p * m.Likelihood.LogLikelihood(sample, groupGenotypes[gid][i])
			}
			logQ[gid] = math.Log(attachPrior[si][gid]) + w[si]*expectedLL
		}
		out[si] = numeric.ExpNormalize(logQ)
	}
	return out
}

// updateW applies a Dirichlet-flavoured shrinkage update to each sample's
// dropout weight: samples whose attachment-weighted expected likelihood
// falls far short of the best likelihood any genotype offers them are
// pulled toward zero, with DropoutConcentration controlling how readily
// that happens (spec 4.4 step 2c, spec 6 sample_dropout_concentrations).
func (m *Model) updateW(groupGenotypes [][]haplotype.Genotype, qG [][]float64, qZ [][]float64, maxLL []float64) []float64 {
	w := make([]float64, len(m.Samples))
	for si, sample := range m.Samples {
		expectedLL := 0.0
		for gid := range qG {
			inner := 0.0
			for i, p := range qG[gid] {
				inner += p * m.Likelihood.LogLikelihood(sample, groupGenotypes[gid][i])
			}
			expectedLL += qZ[si][gid] * inner
		}
		shortfall := maxLL[si] - expectedLL
		if shortfall < 0 {
			shortfall = 0
		}
		c := m.Params.dropoutConcentration(sample)
		if c <= 0 {
			c = 1
		}
		w[si] = c / (c + shortfall)
	}
	return w
}

func (m *Model) computeELBO(shape TreeShape, groupGenotypes [][]haplotype.Genotype, qG [][]float64, qZ [][]float64, attachPrior [][]float64, w []float64) float64 {
	total := 0.0
	for id := range qG {
		prior := m.priorTerm(shape, groupGenotypes, qG, id)
		for i, p := range qG[id] {
			if p <= 0 {
				continue
			}
			total += p * (prior[i] - math.Log(p))
		}
	}
	for si := range m.Samples {
		for gid, p := range qZ[si] {
			if p <= 0 {
				continue
			}
			total += p * (math.Log(attachPrior[si][gid]) - math.Log(p))
		}
	}
	for si, sample := range m.Samples {
		for gid, pz := range qZ[si] {
			if pz == 0 {
				continue
			}
			inner := 0.0
			for i, pg := range qG[gid] {
				inner += pg * m.Likelihood.LogLikelihood(sample, groupGenotypes[gid][i])
			}
			total += pz * w[si] * inner
		}
	}
	if math.IsNaN(total) {
		return numeric.NegInf
	}
	return total
}

func buildTree(shape TreeShape, groups []groupResult) *phylogeny.Tree[GroupLatents] {
	t := phylogeny.NewTree[GroupLatents](GroupLatents{
		GenotypePosteriors:         groups[0].genotypePosteriors,
		SampleAttachmentPosteriors: groups[0].sampleAttachmentPosteriors,
	})
	for id := 1; id < len(groups); id++ {
		t.AddDescendant(GroupLatents{
			GenotypePosteriors:         groups[id].genotypePosteriors,
			SampleAttachmentPosteriors: groups[id].sampleAttachmentPosteriors,
		}, shape.Parent(id))
	}
	return t
}
