package cellmodel

import (
	"sync"

	"blainsmith.com/go/seahash"
	"github.com/gunjanbaid/octopus/haplotype"
)

// HaplotypeOracle is the external Likelihood Oracle collaborator (spec
// section 6): log P(reads | haplotype) for one sample and one haplotype.
// Implementations are expected to be safe for concurrent read-only use
// (spec 5: "All shared inputs ... must be safe to share concurrently").
type HaplotypeOracle interface {
	LogLikelihood(sample string, h haplotype.Haplotype) float64
}

// GenotypeOracle is what the variational engine actually consumes:
// LogLik(sample, genotype) from spec 4.4's update equations.
type GenotypeOracle interface {
	LogLikelihood(sample string, g haplotype.Genotype) float64
}

// haplotypeGenotypeOracle adapts a HaplotypeOracle into a GenotypeOracle by
// averaging the per-allele haplotype likelihoods: with no per-read access,
// the mean of a genotype's constituent haplotype likelihoods is the natural
// ploidy-invariant combination (it keeps genotypes of different ploidy -
// relevant once the copy-number extension is in play - on a comparable
// scale, unlike a raw sum which would favor higher ploidy).
type haplotypeGenotypeOracle struct {
	oracle HaplotypeOracle
	cache  shardedCache
}

// NewGenotypeOracle wraps a HaplotypeOracle (the injected pair-HMM
// collaborator) with the genotype-level combination policy the engine
// needs, plus a per-worker-sharded memoization cache (spec 5: "any caches
// ... must be internally synchronized or partitioned per worker"), grounded
// on the seahash-sharded concurrent map in
// encoding/bamprovider/concurrentmap.go.
func NewGenotypeOracle(oracle HaplotypeOracle) GenotypeOracle {
	return &haplotypeGenotypeOracle{oracle: oracle, cache: newShardedCache()}
}

func (o *haplotypeGenotypeOracle) LogLikelihood(sample string, g haplotype.Genotype) float64 {
	key := cacheKey(sample, g)
	if v, ok := o.cache.get(key); ok {
		return v
	}
	sum := 0.0
	for _, h := range g.Haplotypes {
		sum += o.oracle.LogLikelihood(sample, h)
	}
	v := sum / float64(len(g.Haplotypes))
	o.cache.put(key, v)
	return v
}

func cacheKey(sample string, g haplotype.Genotype) uint64 {
	h := uint64(14695981039346656037) // FNV offset basis, mixed with seahash below
	for _, hap := range g.Haplotypes {
		h ^= hap.Hash()
		h *= 1099511628211
	}
	return h ^ seahash.Sum64([]byte(sample))
}

const numCacheShards = 64

type cacheShard struct {
	mu sync.Mutex
	m  map[uint64]float64
}

// shardedCache is a fixed-shard-count concurrent map, sharded by seahash of
// the lookup key so concurrent per-seed/per-topology workers (execution
// policies ParByTopology/ParBySeed) rarely contend on the same shard's
// mutex. Mirrors encoding/bamprovider/concurrentmap.go's concurrentMap.
type shardedCache struct {
	shards [numCacheShards]*cacheShard
}

func newShardedCache() shardedCache {
	var c shardedCache
	for i := range c.shards {
		c.shards[i] = &cacheShard{m: make(map[uint64]float64)}
	}
	return c
}

func (c shardedCache) shardFor(key uint64) *cacheShard {
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(key >> (8 * i))
	}
	return c.shards[seahash.Sum64(buf[:])%numCacheShards]
}

func (c shardedCache) get(key uint64) (float64, bool) {
	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[key]
	return v, ok
}

func (c shardedCache) put(key uint64, v float64) {
	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = v
}
