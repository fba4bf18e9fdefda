package haplotype

import (
	"testing"

	"github.com/gunjanbaid/octopus/genome"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testRegion = genome.Region{Contig: "chr1", Start: 100, End: 101}

func TestHaplotypeEqual(t *testing.T) {
	a := New(testRegion, []byte("A"))
	b := New(testRegion, []byte("A"))
	c := New(testRegion, []byte("T"))
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestGenotypeCanonicalOrder(t *testing.T) {
	a := New(testRegion, []byte("A"))
	t_ := New(testRegion, []byte("T"))
	g1 := NewGenotype(t_, a)
	g2 := NewGenotype(a, t_)
	assert.True(t, g1.Equal(g2), "genotypes built from the same multiset in different orders must compare equal")
}

func TestGenotypeContains(t *testing.T) {
	a := New(testRegion, []byte("A"))
	t_ := New(testRegion, []byte("T"))
	g := NewGenotype(a, a)
	assert.True(t, g.Contains(a))
	assert.False(t, g.Contains(t_))
	assert.Equal(t, 2, g.Ploidy())
}

func TestEnumerateGenotypesCount(t *testing.T) {
	a := New(testRegion, []byte("A"))
	c := New(testRegion, []byte("C"))
	g := New(testRegion, []byte("G"))
	block := Block{a, c, g}

	got := EnumerateGenotypes(block, 2)
	want := CombinationCount(len(block), 2)
	require.Equal(t, int(want), len(got))
	assert.EqualValues(t, 6, want) // C(3+2-1, 2) = 6
}

func TestEnumerateGenotypesEmpty(t *testing.T) {
	assert.Nil(t, EnumerateGenotypes(nil, 2))
	assert.Nil(t, EnumerateGenotypes(Block{New(testRegion, []byte("A"))}, 0))
}

func TestDeduplicateDefaultOrdering(t *testing.T) {
	a1 := New(testRegion, []byte("A"))
	a2 := New(testRegion, []byte("A"))
	c := New(testRegion, []byte("C"))
	block := Block{a1, c, a2}

	deduped, removed := Deduplicate(block, nil)
	assert.Equal(t, 1, removed)
	assert.Len(t, deduped, 2)
}

func TestDeduplicateCustomOrdering(t *testing.T) {
	a := New(testRegion, []byte("A"))
	c := New(testRegion, []byte("C"))
	block := Block{a, a, c}

	// Force c to be kept over a's duplicates by always sorting c first.
	cmp := lessFunc(func(x, y Haplotype) bool {
		if x.Equal(c) != y.Equal(c) {
			return x.Equal(c)
		}
		return x.Less(y)
	})
	deduped, removed := Deduplicate(block, cmp)
	assert.Equal(t, 1, removed)
	require.Len(t, deduped, 2)
	assert.True(t, deduped[0].Equal(c))
}
