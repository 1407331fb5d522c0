// Package verify implements the verification pipeline: source reliability
// classification, time validity, cross-source triangulation and contradiction
// detection over generated text.
package verify

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Amount is one numeric token extracted from text, normalized to base units
// (元 for CNY amounts, the literal value otherwise).
type Amount struct {
	Value   float64
	Raw     string
	Pos     int    // byte offset in the source text
	Percent bool   // value was a percentage
	Money   bool   // value carried a currency marker
	Context string // surrounding text window, lowercased
}

var amountRe = regexp.MustCompile(`[¥$]?\s*(\d{1,3}(?:,\d{3})+|\d+(?:\.\d+)?)\s*(万亿|亿|千万|百万|万|k|K|m|M)?\s*(元|块|美元|yuan|rmb|usd|dollars?|%|％)?`)

var scaleFactors = map[string]float64{
	"万亿": 1e12,
	"亿":  1e8,
	"千万": 1e7,
	"百万": 1e6,
	"万":  1e4,
	"k":  1e3,
	"K":  1e3,
	"m":  1e6,
	"M":  1e6,
}

const contextWindow = 40

// ExtractAmounts finds numeric tokens in text, applying CJK and western scale
// suffixes. Percentages are flagged rather than scaled.
func ExtractAmounts(text string) []Amount {
	matches := amountRe.FindAllStringSubmatchIndex(text, -1)
	out := make([]Amount, 0, len(matches))
	for _, m := range matches {
		raw := text[m[0]:m[1]]
		numStr := strings.ReplaceAll(text[m[2]:m[3]], ",", "")
		val, err := strconv.ParseFloat(numStr, 64)
		if err != nil {
			continue
		}

		var scale, unit string
		if m[4] >= 0 {
			scale = text[m[4]:m[5]]
		}
		if m[6] >= 0 {
			unit = text[m[6]:m[7]]
		}

		a := Amount{
			Raw: strings.TrimSpace(raw),
			Pos: m[0],
		}
		if f, ok := scaleFactors[scale]; ok {
			val *= f
		}
		switch {
		case unit == "%" || unit == "％":
			a.Percent = true
		case unit != "" || strings.HasPrefix(strings.TrimSpace(raw), "¥") || strings.HasPrefix(strings.TrimSpace(raw), "$"):
			a.Money = true
		case scale != "" && (scale == "万" || scale == "亿" || scale == "万亿" || scale == "千万" || scale == "百万"):
			// CJK scale without a unit is still almost always money in this domain.
			a.Money = true
		}
		a.Value = val

		start := m[0] - contextWindow
		if start < 0 {
			start = 0
		}
		end := m[1] + contextWindow
		if end > len(text) {
			end = len(text)
		}
		a.Context = strings.ToLower(text[start:end])

		out = append(out, a)
	}
	return out
}

var dateRes = []*regexp.Regexp{
	regexp.MustCompile(`(\d{4})[-/年](\d{1,2})[-/月](\d{1,2})日?`),
	regexp.MustCompile(`(\d{4})[-/年](\d{1,2})月?`),
	regexp.MustCompile(`(\d{4})年`),
}

// DateToken is a date found in text with its byte position.
type DateToken struct {
	Date time.Time
	Pos  int
}

// ExtractDates finds date tokens (ISO-ish and CJK forms) in text.
func ExtractDates(text string) []DateToken {
	var out []DateToken
	seen := make(map[int]bool)
	for _, re := range dateRes {
		for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
			if seen[m[0]] {
				continue
			}
			year, _ := strconv.Atoi(text[m[2]:m[3]])
			month, day := 1, 1
			if len(m) > 5 && m[4] >= 0 {
				month, _ = strconv.Atoi(text[m[4]:m[5]])
			}
			if len(m) > 7 && m[6] >= 0 {
				day, _ = strconv.Atoi(text[m[6]:m[7]])
			}
			if year < 1990 || year > 2100 || month < 1 || month > 12 || day < 1 || day > 31 {
				continue
			}
			seen[m[0]] = true
			out = append(out, DateToken{
				Date: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC),
				Pos:  m[0],
			})
		}
	}
	return out
}

// NearestDate returns the date token closest to byte offset pos, or false if
// the text contains no dates.
func NearestDate(text string, pos int) (time.Time, bool) {
	tokens := ExtractDates(text)
	if len(tokens) == 0 {
		return time.Time{}, false
	}
	best := tokens[0]
	bestDist := abs(best.Pos - pos)
	for _, t := range tokens[1:] {
		if d := abs(t.Pos - pos); d < bestDist {
			best, bestDist = t, d
		}
	}
	return best.Date, true
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
