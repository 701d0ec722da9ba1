package hashutil_test

import (
	"testing"

	"github.com/couchcryptid/sigwatch/internal/hashutil"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeTitle(t *testing.T) {
	assert.Equal(t, "hello world", hashutil.NormalizeTitle("  Hello,   World!! "))
}

func TestNormalizeTitle_Idempotent(t *testing.T) {
	inputs := []string{
		"  Hello,   World!! ",
		"M5.8 - 10km SSE of Tōkyō, Japan",
		"ALL CAPS WARNING!!!",
		"",
		"already normalized",
	}
	for _, in := range inputs {
		once := hashutil.NormalizeTitle(in)
		twice := hashutil.NormalizeTitle(once)
		assert.Equal(t, once, twice, "NormalizeTitle must be idempotent for %q", in)
	}
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, "hello", hashutil.Summarize("hello", 10))
	long := hashutil.Summarize("this is a very long summary that exceeds the limit", 10)
	assert.Len(t, []rune(long), 10)
}

func TestTokenSignature(t *testing.T) {
	sig := hashutil.TokenSignature("Magnitude 5.8 earthquake strikes near Tokyo Japan today", 6)
	assert.Equal(t, "magnitude 5 8 earthquake strikes near", sig)
}
