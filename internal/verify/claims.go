package verify

import (
	"strings"

	"github.com/meridian-group/decision-cli/internal/model"
)

// claimDataTypes maps context keywords to the freshness table's data types.
var claimDataTypes = []struct {
	keywords []string
	dataType string
}{
	{[]string{"price", "价格", "售价", "单价"}, "price"},
	{[]string{"market", "市场", "需求", "规模"}, "market"},
	{[]string{"policy", "regulation", "政策", "法规", "补贴"}, "policy"},
}

// ExtractClaims pulls numeric claims out of generated text: each money or
// percentage token becomes a claim carrying its surrounding sentence. The
// orchestrator attaches candidate sources before triangulation.
func ExtractClaims(text string) []model.Claim {
	amounts := ExtractAmounts(text)
	var claims []model.Claim
	for _, a := range amounts {
		if !a.Money && !a.Percent {
			continue
		}
		claims = append(claims, model.Claim{
			Text:     sentenceAround(text, a.Pos),
			Value:    a.Value,
			Unit:     unitOf(a),
			DataType: dataTypeOf(a.Context),
		})
	}
	return claims
}

func unitOf(a Amount) string {
	switch {
	case a.Percent:
		return "%"
	case a.Money:
		return "元"
	default:
		return ""
	}
}

func dataTypeOf(context string) string {
	for _, m := range claimDataTypes {
		for _, k := range m.keywords {
			if strings.Contains(context, k) {
				return m.dataType
			}
		}
	}
	return "statistics"
}

const sentenceStops = "。！？!?.;\n"

// sentenceAround returns the sentence containing byte offset pos.
func sentenceAround(text string, pos int) string {
	if pos > len(text) {
		pos = len(text)
	}
	start := 0
	for i, r := range text {
		if i >= pos {
			break
		}
		if strings.ContainsRune(sentenceStops, r) {
			start = i + len(string(r))
		}
	}
	end := len(text)
	for i, r := range text[pos:] {
		if strings.ContainsRune(sentenceStops, r) {
			end = pos + i + len(string(r))
			break
		}
	}
	return strings.TrimSpace(text[start:end])
}
