package cellcaller

import (
	"context"

	"github.com/gunjanbaid/octopus/cellmodel"
	"github.com/gunjanbaid/octopus/haplotype"
	"github.com/gunjanbaid/octopus/numeric"
	"github.com/gunjanbaid/octopus/phylogeny"
)

// shape is the bare tree template the driver proposes; cellmodel.Model
// fills in GroupLatents during evaluation.
type shape = phylogeny.Tree[struct{}]

// evaluatedTopology pairs a proposed topology with its Inferences and the
// per-group ploidy it was evaluated with (all default ploidy unless the
// copy-number extension promoted a different assignment, spec 4.6).
type evaluatedTopology struct {
	shape         *shape
	inferences    cellmodel.Inferences
	groupPloidies []int
}

// Driver implements the Phylogeny Search Driver (spec 4.5): propose
// topologies of increasing size, score each with the engine, and stop once
// the marginal evidence no longer improves.
type Driver struct {
	Model     *cellmodel.Model
	Genotypes []haplotype.Genotype
	Block     haplotype.Block
	Params    Parameters
}

// Search runs the iterative-deepening model-selection loop. It preserves
// the documented quirk that the losing level's inferences are appended to
// the result before the loop breaks (Design Notes 9, Open Question 1):
// downstream aggregation normalizes over every topology returned here,
// including that one "over-shot" level.
func (d *Driver) Search(ctx context.Context) ([]evaluatedTopology, error) {
	if len(d.Genotypes) == 0 {
		return nil, newError(InvalidInput, "cellcaller: empty genotype set")
	}
	if d.Params.Ploidy <= 0 {
		return nil, newError(InvalidInput, "cellcaller: ploidy must be positive")
	}
	if len(d.Model.Samples) == 0 {
		return nil, newError(InvalidInput, "cellcaller: no samples")
	}

	k1 := phylogeny.NewTree[struct{}](struct{}{})
	best := d.evaluate(ctx, k1)
	results := []evaluatedTopology{best}
	bestEvidence := best.inferences.LogEvidence
	logTopologyTrace(1, best)

	if d.Params.MaxClones < 2 {
		return results, nil
	}

	level := []evaluatedTopology{best}
	for k := 2; k <= d.Params.MaxClones; k++ {
		if ctx.Err() != nil {
			return results, nil
		}
		candidates := d.proposeNextPhylogenies(k, level)
		evaluated := make([]evaluatedTopology, len(candidates))
		for i, c := range candidates {
			evaluated[i] = d.evaluate(ctx, c)
			logTopologyTrace(k, evaluated[i])
		}
		results = append(results, evaluated...)

		levelBest := argmaxEvidence(evaluated)
		if evaluated[levelBest].inferences.LogEvidence < bestEvidence {
			break
		}
		bestEvidence = evaluated[levelBest].inferences.LogEvidence
		level = evaluated
	}
	return results, nil
}

func (d *Driver) evaluate(ctx context.Context, s *shape) evaluatedTopology {
	ploidies := make([]int, s.Size())
	for i := range ploidies {
		ploidies[i] = d.Params.Ploidy
	}
	inf := d.Model.EvaluateGroupGenotypes(ctx, s, cellmodel.Replicate(d.Genotypes, s.Size()), d.Block)
	return evaluatedTopology{shape: s, inferences: inf, groupPloidies: ploidies}
}

// proposeNextPhylogenies implements spec 4.5.1's topology extension exactly:
// K=2 is a single topology (one child at the root); K=3 proposes both the
// linear chain and the fork; K>=4 extends the single best topology from
// level K-1 by adding a leaf under every group that still has room for one
// (breadth-first, single-parent expansion - deliberately a local heuristic,
// not exhaustive), mirroring cell_caller.cpp's propose_next_phylogenies.
func (d *Driver) proposeNextPhylogenies(k int, previousLevel []evaluatedTopology) []*shape {
	switch k {
	case 2:
		t := phylogeny.NewTree[struct{}](struct{}{})
		t.AddDescendant(struct{}{}, 0)
		return []*shape{t}
	case 3:
		chain := phylogeny.NewTree[struct{}](struct{}{})
		a := chain.AddDescendant(struct{}{}, 0)
		chain.AddDescendant(struct{}{}, a)

		fork := phylogeny.NewTree[struct{}](struct{}{})
		fork.AddDescendant(struct{}{}, 0)
		fork.AddDescendant(struct{}{}, 0)
		return []*shape{chain, fork}
	default:
		base := previousLevel[argmaxEvidence(previousLevel)].shape
		var out []*shape
		for id := 0; id < base.Size(); id++ {
			if base.NumDescendants(id) >= 2 {
				continue
			}
			ext := base.Clone()
			ext.AddDescendant(struct{}{}, id)
			out = append(out, ext)
		}
		return out
	}
}

func argmaxEvidence(topologies []evaluatedTopology) int {
	best := 0
	bestEvidence := numeric.NegInf
	for i, t := range topologies {
		if t.inferences.LogEvidence > bestEvidence {
			bestEvidence = t.inferences.LogEvidence
			best = i
		}
	}
	return best
}
