package cellcaller

import (
	"context"

	"github.com/gunjanbaid/octopus/cellmodel"
	"github.com/gunjanbaid/octopus/haplotype"
	"github.com/gunjanbaid/octopus/numeric"
	"github.com/gunjanbaid/octopus/phylogeny"
)

// combinedLayout is the concatenated copy-number genotype set spec 4.7.5
// describes: loss ploidies (ascending delta), the default ploidy, then gain
// ploidies (ascending delta) - in that exact order (Design Notes 9, Open
// Question 3). offsetForPloidy[p] is where ploidy p's genotypes start in
// the concatenation; defaultPloidyIdx is offsetForPloidy[defaultPloidy].
type combinedLayout struct {
	genotypes        []haplotype.Genotype
	offsetForPloidy  map[int]int
	defaultPloidyIdx int
}

func buildCombinedLayout(block haplotype.Block, ploidy, maxLoss, maxGain int) combinedLayout {
	layout := combinedLayout{offsetForPloidy: map[int]int{}}
	offset := 0
	for p := ploidy - maxLoss; p < ploidy; p++ {
		if p < 1 {
			continue
		}
		gs := haplotype.EnumerateGenotypes(block, p)
		layout.offsetForPloidy[p] = offset
		layout.genotypes = append(layout.genotypes, gs...)
		offset += len(gs)
	}
	layout.defaultPloidyIdx = offset
	defaultSet := haplotype.EnumerateGenotypes(block, ploidy)
	layout.offsetForPloidy[ploidy] = offset
	layout.genotypes = append(layout.genotypes, defaultSet...)
	offset += len(defaultSet)
	for p := ploidy + 1; p <= ploidy+maxGain; p++ {
		gs := haplotype.EnumerateGenotypes(block, p)
		layout.offsetForPloidy[p] = offset
		layout.genotypes = append(layout.genotypes, gs...)
		offset += len(gs)
	}
	return layout
}

// align right-pads v with zeros to the combined set's size and places it at
// ploidy's offset, which is exactly a right-pad-then-cyclic-rotate-by-
// defaultPloidyIdx of a plain default-ploidy-only vector when ploidy is the
// default (spec 4.7 bullet 5).
func (l combinedLayout) align(v []float64, ploidy int) []float64 {
	out := make([]float64, len(l.genotypes))
	offset := l.offsetForPloidy[ploidy]
	copy(out[offset:offset+len(v)], v)
	return out
}

// Latents holds everything derived for one call region after the driver's
// search and the copy-number extension have run (spec section 3's
// "Latents"): the explored topologies, their normalized evidences, and the
// genotype index space every per-group posterior vector is aligned to.
type Latents struct {
	Samples             []string
	Genotypes           []haplotype.Genotype
	Topologies          []evaluatedTopology
	PhylogenyPosteriors []float64
	MAPPhylogenyIdx     int
	SizePosteriors      map[int]float64
	CopyChangePredicted bool
}

// Aggregate implements the Posterior Aggregator (spec 4.7): it applies the
// copy-number extension (spec 4.6) to the best explored topology, then
// normalizes evidences into phylogeny posteriors, per-size posteriors, and
// (when a copy-number promotion occurred) realigns every topology's
// per-group genotype posteriors into the combined genotype-set layout.
func (d *Driver) Aggregate(ctx context.Context, topologies []evaluatedTopology) *Latents {
	bestIdx := argmaxEvidence(topologies)
	extended, promoted := d.copyNumberExtend(ctx, topologies[bestIdx])
	if promoted {
		topologies = append([]evaluatedTopology(nil), topologies...)
		topologies[bestIdx] = extended
	}

	genotypes := d.Genotypes
	working := topologies
	if promoted {
		layout := buildCombinedLayout(d.Block, d.Params.Ploidy, d.Params.MaxCopyLoss, d.Params.MaxCopyGain)
		genotypes = layout.genotypes
		working = make([]evaluatedTopology, len(topologies))
		for i, t := range topologies {
			working[i] = alignTopology(t, layout)
		}
	}

	logEvidences := make([]float64, len(working))
	for i, t := range working {
		logEvidences[i] = t.inferences.LogEvidence
	}
	posteriors := numeric.ExpNormalize(append([]float64(nil), logEvidences...))
	mapIdx := numeric.ArgMax(posteriors)

	sizePosteriors := map[int]float64{}
	for i, t := range working {
		sizePosteriors[t.shape.Size()] += posteriors[i]
	}

	return &Latents{
		Samples:             d.Model.Samples,
		Genotypes:           genotypes,
		Topologies:          working,
		PhylogenyPosteriors: posteriors,
		MAPPhylogenyIdx:     mapIdx,
		SizePosteriors:      sizePosteriors,
		CopyChangePredicted: promoted,
	}
}

func alignTopology(t evaluatedTopology, layout combinedLayout) evaluatedTopology {
	if t.inferences.Phylogeny == nil {
		return t
	}
	aligned := phylogeny.Transform(t.inferences.Phylogeny, func(id int, v cellmodel.GroupLatents) cellmodel.GroupLatents {
		return cellmodel.GroupLatents{
			GenotypePosteriors:         layout.align(v.GenotypePosteriors, t.groupPloidies[id]),
			SampleAttachmentPosteriors: v.SampleAttachmentPosteriors,
		}
	})
	return evaluatedTopology{
		shape:         t.shape,
		groupPloidies: t.groupPloidies,
		inferences:    cellmodel.Inferences{Phylogeny: aligned, LogEvidence: t.inferences.LogEvidence},
	}
}

// SampleGenotypePosteriors computes the per-sample marginal genotype
// posterior (spec section 3): Σ_t phylogeny_posteriors[t] · Σ_g
// attachment_posteriors[t,g,s] · genotype_posteriors[t,g].
func (l *Latents) SampleGenotypePosteriors(sample string) []float64 {
	si := indexOfString(l.Samples, sample)
	marginal := make([]float64, len(l.Genotypes))
	if si < 0 {
		return marginal
	}
	for t, topo := range l.Topologies {
		if topo.inferences.Phylogeny == nil {
			continue
		}
		pt := l.PhylogenyPosteriors[t]
		if pt == 0 {
			continue
		}
		for _, gv := range topo.inferences.Phylogeny.Groups() {
			attach := gv.Value.SampleAttachmentPosteriors[si]
			if attach == 0 {
				continue
			}
			for i, p := range gv.Value.GenotypePosteriors {
				marginal[i] += pt * attach * p
			}
		}
	}
	return marginal
}

// HaplotypePosterior implements spec 4.8's haplotype-observed posterior:
// 1 minus the probability mass placed on genotypes not containing h.
func (l *Latents) HaplotypePosterior(h haplotype.Haplotype, sample string) float64 {
	marginal := l.SampleGenotypePosteriors(sample)
	notContaining := 0.0
	for i, gt := range l.Genotypes {
		if !gt.Contains(h) {
			notContaining += marginal[i]
		}
	}
	return 1 - notContaining
}

func indexOfString(ss []string, s string) int {
	for i, v := range ss {
		if v == s {
			return i
		}
	}
	return -1
}
