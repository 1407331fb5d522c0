package constraint

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-group/decision-cli/internal/model"
	"github.com/meridian-group/decision-cli/internal/verify"
)

func newTestEnforcer(policy CorrectionPolicy) *Enforcer {
	rules := DefaultRuleSet(13, "万元", 5.0, []string{"赌博", "色情"})
	return NewEnforcer(rules, policy, "万元")
}

func TestEnforcer_PreCheck(t *testing.T) {
	t.Parallel()

	e := newTestEnforcer(PolicyRewrite)

	t.Run("clean request injects nothing", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, e.PreCheck("开一家奶茶店"))
	})

	t.Run("over-budget ask called out", func(t *testing.T) {
		t.Parallel()
		block := e.PreCheck("我想投资50万元开店")
		assert.Contains(t, block, "【硬性约束，必须遵守】")
		assert.Contains(t, block, "budget-ceiling")
		assert.Contains(t, block, "13万元")
	})

	t.Run("banned keyword in request flagged", func(t *testing.T) {
		t.Parallel()
		block := e.PreCheck("想做线上赌博平台")
		assert.Contains(t, block, "赌博")
	})
}

func TestEnforcer_PostCheck(t *testing.T) {
	t.Parallel()

	t.Run("within 1.5x auto-corrects to the limit without blocking", func(t *testing.T) {
		t.Parallel()
		e := newTestEnforcer(PolicyRewrite)
		res := e.PostCheck("建议初期投资15万元，分两期投入。")

		assert.False(t, res.Blocked)
		assert.Contains(t, res.Content, "13万元")
		assert.NotContains(t, strings.Split(res.Content, "[已修正]")[0], "15万元")
		require.Len(t, res.Violations, 1)
		assert.True(t, res.Violations[0].Corrected)
		assert.Equal(t, model.SeverityWarning, res.Violations[0].Severity)
		require.NotEmpty(t, res.Corrections)
	})

	t.Run("beyond 1.5x blocks", func(t *testing.T) {
		t.Parallel()
		e := newTestEnforcer(PolicyRewrite)
		res := e.PostCheck("总投资约30万元才能启动。")

		assert.True(t, res.Blocked)
		assert.Contains(t, res.Content, "[BLOCKED")
		require.Len(t, res.Violations, 1)
		assert.True(t, res.Violations[0].Blocking)
		assert.Equal(t, model.SeverityCritical, res.Violations[0].Severity)
	})

	t.Run("banned term always blocks", func(t *testing.T) {
		t.Parallel()
		e := newTestEnforcer(PolicyRewrite)
		res := e.PostCheck("可以增加赌博类增值服务提高收入。")

		assert.True(t, res.Blocked)
		require.NotEmpty(t, res.Violations)
		assert.Equal(t, model.SeverityCritical, res.Violations[0].Severity)
	})

	t.Run("roi above ceiling corrected", func(t *testing.T) {
		t.Parallel()
		e := newTestEnforcer(PolicyRewrite)
		res := e.PostCheck("预期回报率高达600%")

		assert.False(t, res.Blocked)
		assert.Contains(t, res.Content, "500%")
	})

	t.Run("clean content passes untouched", func(t *testing.T) {
		t.Parallel()
		e := newTestEnforcer(PolicyRewrite)
		content := "建议投资10万元，预期回报率20%。"
		res := e.PostCheck(content)

		assert.False(t, res.Blocked)
		assert.False(t, res.Regenerate)
		assert.Equal(t, content, res.Content)
		assert.Empty(t, res.Violations)
	})

	t.Run("regenerate policy requests re-invocation instead of rewriting", func(t *testing.T) {
		t.Parallel()
		e := newTestEnforcer(PolicyRegenerate)
		res := e.PostCheck("建议初期投资15万元。")

		assert.True(t, res.Regenerate)
		assert.False(t, res.Blocked)
		assert.Contains(t, res.Content, "15万元")
	})

	t.Run("regenerate policy still blocks hard violations", func(t *testing.T) {
		t.Parallel()
		e := newTestEnforcer(PolicyRegenerate)
		res := e.PostCheck("总投资约30万元。")

		assert.True(t, res.Blocked)
		assert.False(t, res.Regenerate)
	})
}

func TestMatchesRule(t *testing.T) {
	t.Parallel()

	budget := DefaultRuleSet(13, "万元", 0, nil).Numeric[0]

	t.Run("keyword in context required", func(t *testing.T) {
		t.Parallel()
		amounts := verify.ExtractAmounts("投资20万元")
		require.Len(t, amounts, 1)
		assert.True(t, matchesRule(budget, amounts[0]))

		amounts = verify.ExtractAmounts("门店面积200平米，月租金2万元")
		for _, a := range amounts {
			assert.False(t, matchesRule(budget, a))
		}
	})

	t.Run("percent amounts never match money rules", func(t *testing.T) {
		t.Parallel()
		amounts := verify.ExtractAmounts("投资回报20%")
		require.Len(t, amounts, 1)
		assert.False(t, matchesRule(budget, amounts[0]))
	})
}
