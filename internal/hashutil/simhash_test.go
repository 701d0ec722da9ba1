package hashutil_test

import (
	"testing"

	"github.com/couchcryptid/sigwatch/internal/hashutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimHash64_Deterministic(t *testing.T) {
	a := hashutil.SimHash64("earthquake near tokyo")
	b := hashutil.SimHash64("earthquake near tokyo")
	assert.Equal(t, a, b)
}

func TestSimHash64_SimilarTextsAreClose(t *testing.T) {
	a := hashutil.SimHash64("earthquake near tokyo")
	b := hashutil.SimHash64("earthquake near tokyo japan")
	c := hashutil.SimHash64("sports results premier league")

	require.LessOrEqual(t, hashutil.Hamming(a, b), 12)
	assert.Greater(t, hashutil.Hamming(a, c), 12)
}

func TestBucket16_UsesUnsignedView(t *testing.T) {
	// A value with the sign bit set must still bucket consistently: bucketing
	// operates on the unsigned reinterpretation, never the signed value.
	neg := hashutil.UnsignedToSigned(0xFFFF000000000000)
	require.Less(t, neg, int64(0))
	assert.Equal(t, uint16(0xFFFF), hashutil.Bucket16(neg))
}

func TestHamming_SelfIsZero(t *testing.T) {
	h := hashutil.SimHash64("volcano alert level orange")
	assert.Equal(t, 0, hashutil.Hamming(h, h))
}

func TestJaccardTokens(t *testing.T) {
	assert.InDelta(t, 1.0, hashutil.JaccardTokens("storm warning issued", "Storm Warning Issued"), 1e-9)
	assert.Less(t, hashutil.JaccardTokens("storm warning issued", "completely different text"), 0.3)
}
