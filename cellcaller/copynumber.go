package cellcaller

import (
	"context"

	"github.com/gunjanbaid/octopus/haplotype"
)

// ploidyRange returns {ploidy-maxLoss, ..., ploidy+maxGain} ascending,
// clamped so a ploidy never drops below 1.
func ploidyRange(ploidy, maxLoss, maxGain int) []int {
	lo := ploidy - maxLoss
	if lo < 1 {
		lo = 1
	}
	hi := ploidy + maxGain
	out := make([]int, 0, hi-lo+1)
	for p := lo; p <= hi; p++ {
		out = append(out, p)
	}
	return out
}

// nextPermutation rearranges a into the next lexicographically greater
// permutation, porting std::next_permutation's contract: returns false and
// resets a to ascending order once the last permutation has been reached.
func nextPermutation(a []int) bool {
	n := len(a)
	if n < 2 {
		return false
	}
	i := n - 2
	for i >= 0 && a[i] >= a[i+1] {
		i--
	}
	if i < 0 {
		reverseInts(a, 0, n-1)
		return false
	}
	j := n - 1
	for a[j] <= a[i] {
		j--
	}
	a[i], a[j] = a[j], a[i]
	reverseInts(a, i+1, n-1)
	return true
}

func reverseInts(a []int, i, j int) {
	for i < j {
		a[i], a[j] = a[j], a[i]
		i++
		j--
	}
}

// combinationsWithRepetition returns every non-decreasing sequence of
// length size drawn (with repetition) from values.
func combinationsWithRepetition(values []int, size int) [][]int {
	var result [][]int
	combo := make([]int, size)
	var rec func(start, depth int)
	rec = func(start, depth int) {
		if depth == size {
			cp := make([]int, size)
			copy(cp, combo)
			result = append(result, cp)
			return
		}
		for i := start; i < len(values); i++ {
			combo[depth] = values[i]
			rec(i, depth+1)
		}
	}
	rec(0, 0)
	return result
}

// enumerateAssignments visits every one of len(values)^size assignments of
// size slots drawn from values exactly once: for each distinct multiset
// (combinationsWithRepetition), nextPermutation is applied repeatedly to
// emit every distinct arrangement of that multiset (spec 4.6: "use
// next_permutation over a flat assignment vector to visit each distinct
// multiset exactly once").
func enumerateAssignments(values []int, size int) [][]int {
	if size <= 0 {
		return [][]int{{}}
	}
	var result [][]int
	for _, multiset := range combinationsWithRepetition(values, size) {
		cur := append([]int(nil), multiset...)
		for {
			result = append(result, append([]int(nil), cur...))
			if !nextPermutation(cur) {
				break
			}
		}
	}
	return result
}

// copyNumberExtend implements spec 4.6: applied only when
// max_copy_loss>0 or max_copy_gain>0 and K>=2, it tries every assignment of
// ploidies to the K-1 non-root groups (root stays at the default ploidy)
// and promotes the topology's Inferences if the re-scored evidence improves,
// reporting whether a promotion occurred (the copy_change_predicted flag).
func (d *Driver) copyNumberExtend(ctx context.Context, best evaluatedTopology) (evaluatedTopology, bool) {
	maxLoss, maxGain := d.Params.MaxCopyLoss, d.Params.MaxCopyGain
	k := best.shape.Size()
	if (maxLoss <= 0 && maxGain <= 0) || k < 2 {
		return best, false
	}

	ploidy := d.Params.Ploidy
	values := ploidyRange(ploidy, maxLoss, maxGain)
	genotypeSets := make(map[int][]haplotype.Genotype, len(values)+1)
	genotypeSets[ploidy] = haplotype.EnumerateGenotypes(d.Block, ploidy)
	for _, p := range values {
		if _, ok := genotypeSets[p]; !ok {
			genotypeSets[p] = haplotype.EnumerateGenotypes(d.Block, p)
		}
	}

	promotedTopology := best
	promoted := false
	for _, assignment := range enumerateAssignments(values, k-1) {
		if ctx.Err() != nil {
			break
		}
		groupGenotypes := make([][]haplotype.Genotype, k)
		groupGenotypes[0] = genotypeSets[ploidy]
		ploidies := make([]int, k)
		ploidies[0] = ploidy
		for i, p := range assignment {
			groupGenotypes[i+1] = genotypeSets[p]
			ploidies[i+1] = p
		}
		inf := d.Model.EvaluateGroupGenotypes(ctx, best.shape, groupGenotypes, d.Block)
		if inf.LogEvidence > promotedTopology.inferences.LogEvidence {
			promotedTopology = evaluatedTopology{shape: best.shape, inferences: inf, groupPloidies: ploidies}
			promoted = true
		}
	}
	return promotedTopology, promoted
}
