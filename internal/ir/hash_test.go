package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestHashWithDomain_Separation tests that domains change the digest.
func TestHashWithDomain_Separation(t *testing.T) {
	data := []byte("same")
	assert.NotEqual(t, hashWithDomain(DomainSupport, data), hashWithDomain(DomainBatch, data))
	assert.Len(t, hashWithDomain(DomainSupport, data), 64)
}

func TestSupportID_Deterministic(t *testing.T) {
	f := NewFact("related", Int(1), Int(2))
	s := Support{Rule: "r1", Bindings: Tuple{Int(1), Int(2)}}

	id1 := MustSupportID(f, s)
	id2 := MustSupportID(f, s)
	assert.Equal(t, id1, id2)

	other := Support{Rule: "r2", Bindings: Tuple{Int(1), Int(2)}}
	assert.NotEqual(t, id1, MustSupportID(f, other))
}

// TestBatchChecksum_OrderSensitive tests that the checksum covers order and direction.
func TestBatchChecksum_OrderSensitive(t *testing.T) {
	a := NewFact("issue", Int(1))
	b := NewFact("issue", Int(2))

	ab, err := BatchChecksum([]Fact{a, b}, nil)
	require.NoError(t, err)
	ba, err := BatchChecksum([]Fact{b, a}, nil)
	require.NoError(t, err)
	retracted, err := BatchChecksum(nil, []Fact{a, b})
	require.NoError(t, err)

	assert.NotEqual(t, ab, ba)
	assert.NotEqual(t, ab, retracted)
}

func TestProgramHash(t *testing.T) {
	r := Rule{Head: Literal{Predicate: "p", Args: []Atom{Variable("X")}},
		Body: []Literal{{Predicate: "q", Args: []Atom{Variable("X")}}}}
	assert.Equal(t, ProgramHash([]Rule{r}), ProgramHash([]Rule{r}))
	assert.NotEqual(t, ProgramHash([]Rule{r}), ProgramHash(nil))
}
