package cellmodel

import (
	"math"
	"math/rand"

	"github.com/gunjanbaid/octopus/haplotype"
)

// TreeShape captures just the parent-pointers the seed generator needs,
// independent of the value type stored at each node.
type TreeShape interface {
	Size() int
	Parent(id int) int
}

// Replicate returns the same genotype set for every one of k groups, the
// shape GenerateSeeds/Model.Evaluate need whenever every group shares one
// genotype index space (the common case; the copy-number extension is the
// one caller that instead gives each group its own ploidy-specific set).
func Replicate(genotypes []haplotype.Genotype, k int) [][]haplotype.Genotype {
	out := make([][]haplotype.Genotype, k)
	for i := range out {
		out[i] = genotypes
	}
	return out
}

// GenerateSeeds implements spec 4.2's seeding policy: enumerate every joint
// assignment when the space is small enough, otherwise seed with the
// diagonal (all groups on the same genotype, when every group shares one
// genotype set), prior-ranked singletons extended along tree edges via the
// mutation model, and deterministic random perturbations. groupGenotypes[id]
// is the candidate set available to group id (ordinarily identical across
// groups; the copy-number extension gives each group a distinct, ploidy-
// specific set, per spec 4.6). Each returned seed has length shape.Size();
// seed[id] is an index into groupGenotypes[id]. Seeds are deterministic for
// a fixed rngKey (spec 4.2: "Seeds must be deterministic given a fixed RNG
// key").
func GenerateSeeds(groupGenotypes [][]haplotype.Genotype, shape TreeShape, prior PriorModel, maxGenotypeCombinations int, rngKey uint64) [][]int {
	k := shape.Size()
	if k == 0 || len(groupGenotypes) != k {
		return nil
	}
	for _, gs := range groupGenotypes {
		if len(gs) == 0 {
			return nil
		}
	}

	uniform := sameGenotypeSetEveryGroup(groupGenotypes)
	if uniform {
		g := len(groupGenotypes[0])
		if fitsUnderCap(g, k, maxGenotypeCombinations) {
			return enumerateAllAssignments(g, k)
		}
	}

	rng := rand.New(rand.NewSource(int64(rngKey)))
	var seeds [][]int

	if uniform {
		g := len(groupGenotypes[0])
		genotypes := groupGenotypes[0]
		// (i) diagonal: every group on the same genotype.
		for i := 0; i < g; i++ {
			seed := make([]int, k)
			for pos := range seed {
				seed[pos] = i
			}
			seeds = append(seeds, seed)
		}
		// (ii) top-M-by-prior singletons, extended to non-root groups via the
		// mutation-compatible argmax child along each tree edge.
		topM := topGenotypesByPrior(genotypes, prior, seedTopM(g))
		for _, root := range topM {
			seed := make([]int, k)
			seed[0] = root
			for id := 1; id < k; id++ {
				parent := shape.Parent(id)
				seed[id] = bestMutationChild(genotypes, genotypes, prior, seed[parent])
			}
			seeds = append(seeds, seed)
		}
		limit := maxGenotypeCombinations
		if practicalLimit := (len(topM) + g) * 4; practicalLimit < limit {
			limit = practicalLimit
		}
		for len(seeds) < limit {
			seed := make([]int, k)
			for pos := range seed {
				seed[pos] = rng.Intn(g)
			}
			seeds = append(seeds, seed)
		}
		return seeds
	}

	// Per-group genotype sets (copy-number extension): seed each group at its
	// own top-prior genotype (extended to children via the mutation model
	// across the edge, scored against the CHILD's own set), plus a handful of
	// independent random draws within each group's own set.
	seed := make([]int, k)
	seed[0] = topGenotypesByPrior(groupGenotypes[0], prior, 1)[0]
	for id := 1; id < k; id++ {
		parent := shape.Parent(id)
		seed[id] = bestMutationChild(groupGenotypes[parent], groupGenotypes[id], prior, seed[parent])
	}
	seeds = append(seeds, seed)

	const perGroupRandomSeeds = 4
	for n := 0; n < perGroupRandomSeeds; n++ {
		s := make([]int, k)
		for id := range s {
			s[id] = rng.Intn(len(groupGenotypes[id]))
		}
		seeds = append(seeds, s)
	}
	return seeds
}

func sameGenotypeSetEveryGroup(groupGenotypes [][]haplotype.Genotype) bool {
	first := groupGenotypes[0]
	for _, gs := range groupGenotypes[1:] {
		if len(gs) != len(first) {
			return false
		}
		for i := range gs {
			if !gs[i].Equal(first[i]) {
				return false
			}
		}
	}
	return true
}

func seedTopM(g int) int {
	if g <= 8 {
		return g
	}
	return 8
}

func fitsUnderCap(g, k, cap int) bool {
	total := int64(1)
	for i := 0; i < k; i++ {
		total *= int64(g)
		if total > int64(cap) {
			return false
		}
	}
	return true
}

func enumerateAllAssignments(g, k int) [][]int {
	var result [][]int
	assignment := make([]int, k)
	var rec func(pos int)
	rec = func(pos int) {
		if pos == k {
			cp := make([]int, k)
			copy(cp, assignment)
			result = append(result, cp)
			return
		}
		for i := 0; i < g; i++ {
			assignment[pos] = i
			rec(pos + 1)
		}
	}
	rec(0)
	return result
}

func topGenotypesByPrior(genotypes []haplotype.Genotype, prior PriorModel, m int) []int {
	type scored struct {
		idx   int
		score float64
	}
	scores := make([]scored, len(genotypes))
	for i, gt := range genotypes {
		scores[i] = scored{i, prior.LogPriorRoot(gt)}
	}
	for i := 1; i < len(scores); i++ {
		for j := i; j > 0 && scores[j].score > scores[j-1].score; j-- {
			scores[j], scores[j-1] = scores[j-1], scores[j]
		}
	}
	if m > len(scores) {
		m = len(scores)
	}
	out := make([]int, m)
	for i := 0; i < m; i++ {
		out[i] = scores[i].idx
	}
	return out
}

// bestMutationChild returns the index into childSet of the genotype scoring
// highest under the edge prior from parentSet[parentIdx].
func bestMutationChild(parentSet, childSet []haplotype.Genotype, prior PriorModel, parentIdx int) int {
	best := 0
	bestScore := math.Inf(-1)
	for i, gt := range childSet {
		score := prior.LogPriorEdge(parentSet[parentIdx], gt)
		if score > bestScore {
			bestScore = score
			best = i
		}
	}
	return best
}
