package contenthash

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSum_Deterministic(t *testing.T) {
	a := Sum("hello world")
	b := Sum("hello world")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestSum_KnownVector(t *testing.T) {
	// sha256("") is a fixed, well-known digest.
	assert.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		Sum(""))
	assert.Equal(t,
		"b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9",
		Sum("hello world"))
}

func TestSum_DiffersOnContent(t *testing.T) {
	assert.NotEqual(t, Sum("v1"), Sum("v2"))
}

func TestSumBytes_MatchesSum(t *testing.T) {
	assert.Equal(t, Sum("payload"), SumBytes([]byte("payload")))
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal("same", "same"))
	assert.False(t, Equal("same", "different"))
}
