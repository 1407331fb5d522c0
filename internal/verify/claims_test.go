package verify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractClaims(t *testing.T) {
	t.Parallel()

	t.Run("money and percent become claims", func(t *testing.T) {
		t.Parallel()
		claims := ExtractClaims("启动资金约12万元。预期回报率15%左右。")
		require.Len(t, claims, 2)
		assert.Equal(t, 120000.0, claims[0].Value)
		assert.Equal(t, "元", claims[0].Unit)
		assert.Equal(t, 15.0, claims[1].Value)
		assert.Equal(t, "%", claims[1].Unit)
	})

	t.Run("claim text is the containing sentence", func(t *testing.T) {
		t.Parallel()
		claims := ExtractClaims("第一句没有数字。门店月租金8000元偏高。第三句也没有。")
		require.Len(t, claims, 1)
		assert.Equal(t, "门店月租金8000元偏高。", claims[0].Text)
	})

	t.Run("data type inferred from context", func(t *testing.T) {
		t.Parallel()
		claims := ExtractClaims("市场规模预计达到500万元")
		require.Len(t, claims, 1)
		assert.Equal(t, "market", claims[0].DataType)
	})

	t.Run("bare numbers are not claims", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, ExtractClaims("分为3个阶段共5步"))
	})
}
