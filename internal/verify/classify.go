package verify

import (
	"net/url"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/meridian-group/decision-cli/internal/model"
)

// TierTable holds ordered domain patterns per reliability tier. Patterns are
// suffix matches against the host ("gov.cn" matches "stats.gov.cn").
type TierTable struct {
	Banned []string `yaml:"banned"`
	Tier1  []string `yaml:"tier1"`
	Tier2  []string `yaml:"tier2"`
	Tier3  []string `yaml:"tier3"`
}

// DefaultTierTable returns the built-in source reliability lists.
func DefaultTierTable() TierTable {
	return TierTable{
		Banned: []string{
			"baijiahao.baidu.com",
			"tieba.baidu.com",
			"weibo.com",
			"blog.sina.com.cn",
			"zhuanlan.zhihu.com",
		},
		Tier1: []string{
			"gov.cn",
			"stats.gov.cn",
			".gov",
			"worldbank.org",
			"imf.org",
			"oecd.org",
			"un.org",
		},
		Tier2: []string{
			"xinhuanet.com",
			"people.com.cn",
			"reuters.com",
			"bloomberg.com",
			"caixin.com",
			"ft.com",
			"economist.com",
			"iresearch.com.cn",
		},
		Tier3: []string{
			"36kr.com",
			"sohu.com",
			"163.com",
			"qq.com",
		},
	}
}

// LoadTierTable reads a tier table from a YAML file.
func LoadTierTable(path string) (TierTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return TierTable{}, eris.Wrapf(err, "verify: read tier table %s", path)
	}
	var t TierTable
	if err := yaml.Unmarshal(data, &t); err != nil {
		return TierTable{}, eris.Wrap(err, "verify: parse tier table")
	}
	return t, nil
}

// Classifier maps source URLs to reliability tiers.
type Classifier struct {
	table TierTable
}

// NewClassifier creates a classifier over the given tier table.
func NewClassifier(table TierTable) *Classifier {
	return &Classifier{table: table}
}

// Classify is a pure function from URL to tier. The banned list is checked
// first, then tier1 before tier2 before tier3; unmatched hosts default to
// tier3.
func (c *Classifier) Classify(rawURL string) model.SourceTier {
	host := hostOf(rawURL)
	if host == "" {
		return model.TierThree
	}

	if matchAny(host, c.table.Banned) {
		return model.TierBanned
	}
	if matchAny(host, c.table.Tier1) {
		return model.TierOne
	}
	if matchAny(host, c.table.Tier2) {
		return model.TierTwo
	}
	return model.TierThree
}

func hostOf(rawURL string) string {
	if !strings.Contains(rawURL, "://") {
		rawURL = "https://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimPrefix(u.Hostname(), "www."))
}

func matchAny(host string, patterns []string) bool {
	for _, p := range patterns {
		p = strings.ToLower(p)
		if host == p || strings.HasSuffix(host, "."+strings.TrimPrefix(p, ".")) || (strings.HasPrefix(p, ".") && strings.HasSuffix(host, p)) {
			return true
		}
	}
	return false
}
