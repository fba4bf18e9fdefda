package cellmodel

import (
	"encoding/binary"

	"github.com/gunjanbaid/octopus/haplotype"
	"github.com/minio/highwayhash"
)

// zeroHighwayKey is the (fixed, all-zero) 256-bit key highwayhash requires.
// We only need a deterministic, well-distributed fingerprint here, not a
// keyed MAC, so a fixed key is appropriate - mirroring the
// `zeroSeed := hashKey{}` pattern in fusion/postprocess.go.
var zeroHighwayKey = make([]byte, highwayhash.Size)

// DeriveSeedKey computes the deterministic RNG key spec 4.2 requires for
// seed generation: a 64-bit fingerprint of the haplotype block's sorted
// hashes and the phylogeny's group count, so identical inputs always
// produce identical seeds (spec 5: determinism) while different topologies
// or haplotype blocks get independent seed streams.
func DeriveSeedKey(block haplotype.Block, groupCount int) uint64 {
	hashes := make([]uint64, len(block))
	for i, h := range block {
		hashes[i] = h.Hash()
	}
	// Sort so the key doesn't depend on the caller's haplotype ordering.
	for i := 1; i < len(hashes); i++ {
		for j := i; j > 0 && hashes[j] < hashes[j-1]; j-- {
			hashes[j], hashes[j-1] = hashes[j-1], hashes[j]
		}
	}
	buf := make([]byte, len(hashes)*8+8)
	for i, h := range hashes {
		binary.LittleEndian.PutUint64(buf[i*8:], h)
	}
	binary.LittleEndian.PutUint64(buf[len(hashes)*8:], uint64(groupCount))
	sum := highwayhash.Sum(buf, zeroHighwayKey)
	return binary.LittleEndian.Uint64(sum[:8])
}
