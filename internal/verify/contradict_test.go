package verify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-group/decision-cli/internal/model"
)

func TestDetector_Scan(t *testing.T) {
	t.Parallel()

	d := NewDetector(nil)

	t.Run("feasibility conflict is a warning", func(t *testing.T) {
		t.Parallel()
		findings := d.Scan("综合评估后该项目可行。但从资金角度看完全不可行。")
		require.NotEmpty(t, findings)
		assert.Equal(t, "feasibility assessment conflicts", findings[0].Label)
		assert.Equal(t, model.SeverityWarning, findings[0].Severity)
	})

	t.Run("market direction conflict is critical", func(t *testing.T) {
		t.Parallel()
		findings := d.Scan("the market is growing rapidly, though recent data shows it shrinking")
		require.NotEmpty(t, findings)
		var found bool
		for _, f := range findings {
			if f.Label == "market direction claims conflict" {
				found = true
				assert.Equal(t, model.SeverityCritical, f.Severity)
			}
		}
		assert.True(t, found)
	})

	t.Run("consistent text yields no findings", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, d.Scan("该项目可行，市场持续增长，风险可控。"))
	})

	t.Run("divergent investment figures flagged", func(t *testing.T) {
		t.Parallel()
		findings := d.Scan("前期投资10万元即可。后文却提到总投资需要80万元。")
		require.NotEmpty(t, findings)
		assert.Equal(t, "numeric", findings[0].Category)
		assert.Equal(t, model.SeverityCritical, findings[0].Severity)
	})

	t.Run("figures within ratio tolerated", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, d.Scan("初期投资10万元，后续追加投资20万元。"))
	})
}

func TestScore(t *testing.T) {
	t.Parallel()

	t.Run("no findings scores 100", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, 100.0, Score(nil))
	})

	t.Run("critical costs 20 warning costs 5", func(t *testing.T) {
		t.Parallel()
		findings := []model.Finding{
			{Severity: model.SeverityCritical},
			{Severity: model.SeverityWarning},
			{Severity: model.SeverityWarning},
		}
		assert.Equal(t, 70.0, Score(findings))
	})

	t.Run("score floors at zero", func(t *testing.T) {
		t.Parallel()
		findings := make([]model.Finding, 6)
		for i := range findings {
			findings[i] = model.Finding{Severity: model.SeverityCritical}
		}
		assert.Equal(t, 0.0, Score(findings))
	})
}
