package verify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractAmounts(t *testing.T) {
	t.Parallel()

	t.Run("CJK scale normalizes to base yuan", func(t *testing.T) {
		t.Parallel()
		amounts := ExtractAmounts("初期投资12万元，月租金8000元")
		require.Len(t, amounts, 2)
		assert.Equal(t, 120000.0, amounts[0].Value)
		assert.True(t, amounts[0].Money)
		assert.Equal(t, 8000.0, amounts[1].Value)
	})

	t.Run("亿 scale", func(t *testing.T) {
		t.Parallel()
		amounts := ExtractAmounts("市场规模达3.5亿元")
		require.Len(t, amounts, 1)
		assert.Equal(t, 3.5e8, amounts[0].Value)
	})

	t.Run("percent flagged not scaled", func(t *testing.T) {
		t.Parallel()
		amounts := ExtractAmounts("预期回报率25%")
		require.Len(t, amounts, 1)
		assert.True(t, amounts[0].Percent)
		assert.False(t, amounts[0].Money)
		assert.Equal(t, 25.0, amounts[0].Value)
	})

	t.Run("dollar prefix marks money", func(t *testing.T) {
		t.Parallel()
		amounts := ExtractAmounts("startup cost around $5000 total")
		require.Len(t, amounts, 1)
		assert.True(t, amounts[0].Money)
		assert.Equal(t, 5000.0, amounts[0].Value)
	})

	t.Run("thousands separators", func(t *testing.T) {
		t.Parallel()
		amounts := ExtractAmounts("revenue of 1,250,000 yuan per year")
		require.Len(t, amounts, 1)
		assert.Equal(t, 1250000.0, amounts[0].Value)
	})

	t.Run("CJK scale without unit still money", func(t *testing.T) {
		t.Parallel()
		amounts := ExtractAmounts("总投入约50万")
		require.Len(t, amounts, 1)
		assert.True(t, amounts[0].Money)
		assert.Equal(t, 500000.0, amounts[0].Value)
	})

	t.Run("context window is lowercased", func(t *testing.T) {
		t.Parallel()
		amounts := ExtractAmounts("Initial INVESTMENT of 100 dollars")
		require.Len(t, amounts, 1)
		assert.Contains(t, amounts[0].Context, "investment")
	})

	t.Run("raw preserved for rewrite", func(t *testing.T) {
		t.Parallel()
		text := "投资15万元即可启动"
		amounts := ExtractAmounts(text)
		require.Len(t, amounts, 1)
		assert.Equal(t, amounts[0].Raw, text[amounts[0].Pos:amounts[0].Pos+len(amounts[0].Raw)])
	})
}

func TestExtractDates(t *testing.T) {
	t.Parallel()

	t.Run("CJK full date", func(t *testing.T) {
		t.Parallel()
		dates := ExtractDates("数据截至2024年3月15日")
		require.Len(t, dates, 1)
		assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), dates[0].Date)
	})

	t.Run("year month only defaults day", func(t *testing.T) {
		t.Parallel()
		dates := ExtractDates("2023年8月的统计")
		require.NotEmpty(t, dates)
		assert.Equal(t, time.Date(2023, 8, 1, 0, 0, 0, 0, time.UTC), dates[0].Date)
	})

	t.Run("ISO form", func(t *testing.T) {
		t.Parallel()
		dates := ExtractDates("updated 2024-01-20 per the report")
		require.Len(t, dates, 1)
		assert.Equal(t, time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC), dates[0].Date)
	})

	t.Run("implausible year rejected", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, ExtractDates("编号1234年的档案"))
	})
}

func TestNearestDate(t *testing.T) {
	t.Parallel()

	text := "2020年的旧数据。新数据为100万元，2024年3月发布。"
	pos := len("2020年的旧数据。新数据为")
	date, ok := NearestDate(text, pos)
	require.True(t, ok)
	assert.Equal(t, 2024, date.Year())

	_, ok = NearestDate("没有任何日期", 0)
	assert.False(t, ok)
}
