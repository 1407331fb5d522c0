package verify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	t.Parallel()

	t.Run("CJK text becomes bigrams", func(t *testing.T) {
		t.Parallel()
		tokens := Tokenize("市场规模")
		assert.Contains(t, tokens, "市场")
		assert.Contains(t, tokens, "场规")
		assert.Contains(t, tokens, "规模")
	})

	t.Run("latin words kept whole", func(t *testing.T) {
		t.Parallel()
		tokens := Tokenize("Market size analysis")
		assert.Contains(t, tokens, "market")
		assert.Contains(t, tokens, "analysis")
	})
}

func TestSimilarity(t *testing.T) {
	t.Parallel()

	t.Run("identical text scores 1", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, 1.0, Similarity("奶茶店市场规模持续增长", "奶茶店市场规模持续增长"))
	})

	t.Run("disjoint text scores 0", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, 0.0, Similarity("奶茶店投资", "semiconductor exports"))
	})

	t.Run("overlapping CJK text scores between", func(t *testing.T) {
		t.Parallel()
		s := Similarity("奶茶店市场规模增长迅速", "奶茶店市场前景广阔")
		assert.Greater(t, s, 0.0)
		assert.Less(t, s, 1.0)
	})

	t.Run("empty input scores 0", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, 0.0, Similarity("", "任意文本"))
	})
}
