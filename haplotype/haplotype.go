// Package haplotype implements the Haplotype and Genotype value types, the
// joint-genotype enumerator, and the haplotype deduplication policy (spec
// sections 4.2, 4.9).
package haplotype

import (
	"sort"

	"github.com/dgryski/go-farm"
	"github.com/gunjanbaid/octopus/biosimd"
	"github.com/gunjanbaid/octopus/genome"
)

// Haplotype is a concrete candidate sequence over a genomic region. Equality
// is by sequence value, not pointer identity.
type Haplotype struct {
	Region   genome.Region
	Sequence []byte

	// packed is a one-byte-per-base encoding of Sequence, built by New with
	// biosimd.ASCIIToSeq8. It exists purely to give Equal a cheap,
	// branch-light comparison buffer for long sequences; callers never see
	// it directly.
	packed []byte
}

// New constructs a Haplotype and eagerly packs its sequence.
func New(region genome.Region, sequence []byte) Haplotype {
	packed := make([]byte, len(sequence))
	biosimd.ASCIIToSeq8(packed, sequence)
	return Haplotype{Region: region, Sequence: sequence, packed: packed}
}

// Equal reports whether h and other have the same mapped region and sequence.
func (h Haplotype) Equal(other Haplotype) bool {
	if h.Region != other.Region || len(h.packed) != len(other.packed) {
		return false
	}
	for i := range h.packed {
		if h.packed[i] != other.packed[i] {
			return false
		}
	}
	return true
}

// Hash returns a deterministic 64-bit fingerprint of h, used as the map key
// for the inverse-genotype table and for RNG-seed derivation. Grounded on the
// farm.Hash64 k-mer fingerprinting in fusion/kmer_index.go.
func (h Haplotype) Hash() uint64 {
	return farm.Hash64(h.Sequence)
}

func (h Haplotype) String() string {
	return h.Region.String() + ":" + string(h.Sequence)
}

// Less provides a total, deterministic ordering over haplotypes (lexical by
// region, then by sequence bytes), used to break ties in the dedup ordering
// (spec 4.9) and to canonicalize Genotype storage order.
func (h Haplotype) Less(other Haplotype) bool {
	if c := h.Region.Compare(other.Region); c != 0 {
		return c < 0
	}
	n := len(h.Sequence)
	if len(other.Sequence) < n {
		n = len(other.Sequence)
	}
	for i := 0; i < n; i++ {
		if h.Sequence[i] != other.Sequence[i] {
			return h.Sequence[i] < other.Sequence[i]
		}
	}
	return len(h.Sequence) < len(other.Sequence)
}

// Genotype is an unordered multiset of haplotype references of fixed ploidy.
// Haplotypes is always kept in canonical (Less-sorted) order so that two
// Genotypes built from the same multiset compare and hash identically
// regardless of construction order.
type Genotype struct {
	Haplotypes []Haplotype
}

// NewGenotype builds a Genotype from haplotypes, canonicalizing their order.
func NewGenotype(haplotypes ...Haplotype) Genotype {
	hs := make([]Haplotype, len(haplotypes))
	copy(hs, haplotypes)
	sort.Slice(hs, func(i, j int) bool { return hs[i].Less(hs[j]) })
	return Genotype{Haplotypes: hs}
}

// Ploidy returns the number of haplotype copies in g.
func (g Genotype) Ploidy() int { return len(g.Haplotypes) }

// Contains reports whether g includes h (by value equality).
func (g Genotype) Contains(h Haplotype) bool {
	for _, gh := range g.Haplotypes {
		if gh.Equal(h) {
			return true
		}
	}
	return false
}

// Equal reports value-equality of two genotypes (both are canonically
// ordered, so this is an element-wise comparison).
func (g Genotype) Equal(other Genotype) bool {
	if len(g.Haplotypes) != len(other.Haplotypes) {
		return false
	}
	for i := range g.Haplotypes {
		if !g.Haplotypes[i].Equal(other.Haplotypes[i]) {
			return false
		}
	}
	return true
}

// Block is a set of haplotypes sharing a single mapped region, as consumed
// by the enumerator and the deduplication policy.
type Block []Haplotype

// Region returns the shared mapped region of the block, panicking if it is
// empty (callers must validate non-emptiness first; see cellcaller.Kind).
func (b Block) Region() genome.Region {
	return b[0].Region
}
