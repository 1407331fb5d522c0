package verify

import (
	"time"

	"github.com/meridian-group/decision-cli/internal/model"
)

// DefaultMaxAges is the per-data-type freshness table, in days.
var DefaultMaxAges = map[string]int{
	"price":      7,
	"market":     30,
	"statistics": 90,
	"policy":     180,
}

const warningFraction = 0.8

// StalenessChecker flags extracted data as stale using a per-data-type
// max-age table.
type StalenessChecker struct {
	maxAges map[string]int
	now     func() time.Time
}

// NewStalenessChecker builds a checker; a nil or empty table falls back to
// DefaultMaxAges.
func NewStalenessChecker(maxAgeDays map[string]int) *StalenessChecker {
	if len(maxAgeDays) == 0 {
		maxAgeDays = DefaultMaxAges
	}
	return &StalenessChecker{maxAges: maxAgeDays, now: time.Now}
}

// WithNow fixes the clock for testing.
func (c *StalenessChecker) WithNow(now func() time.Time) *StalenessChecker {
	c.now = now
	return c
}

// MaxAge returns the freshness window for a data type. Unknown types get the
// most conservative window in the table.
func (c *StalenessChecker) MaxAge(dataType string) time.Duration {
	if days, ok := c.maxAges[dataType]; ok {
		return time.Duration(days) * 24 * time.Hour
	}
	min := 0
	for _, days := range c.maxAges {
		if min == 0 || days < min {
			min = days
		}
	}
	return time.Duration(min) * 24 * time.Hour
}

// Check evaluates the data date nearest to the claim's position in sourceText.
// Returns ok=false when no date token is present (the claim is then treated
// as undated, which downgrades recency but is not itself a failure).
func (c *StalenessChecker) Check(dataType, sourceText string, claimPos int) (model.StalenessCheck, bool) {
	date, found := NearestDate(sourceText, claimPos)
	if !found {
		return model.StalenessCheck{DataType: dataType}, false
	}
	return c.CheckDate(dataType, date), true
}

// CheckDate evaluates a known data date against the max-age table.
func (c *StalenessChecker) CheckDate(dataType string, date time.Time) model.StalenessCheck {
	maxAge := c.MaxAge(dataType)
	age := c.now().Sub(date)

	urgency := model.UrgencyNormal
	switch {
	case age > maxAge:
		urgency = model.UrgencyCritical
	case float64(age) > warningFraction*float64(maxAge):
		urgency = model.UrgencyWarning
	}

	return model.StalenessCheck{
		DataType: dataType,
		DataDate: date,
		Age:      age,
		MaxAge:   maxAge,
		Valid:    age <= maxAge,
		Urgency:  urgency,
	}
}

// RecencyScore maps a staleness check to a 0-100 score used in the
// triangulation confidence blend. Fresh data scores 100, data at the max age
// scores 40, and the score keeps degrading linearly to 0 at twice the max age.
func RecencyScore(check model.StalenessCheck, dated bool) float64 {
	if !dated {
		return 50 // undated: neutral, neither fresh nor provably stale
	}
	ratio := float64(check.Age) / float64(check.MaxAge)
	switch {
	case ratio <= 0:
		return 100
	case ratio <= 1:
		return 100 - 60*ratio
	case ratio <= 2:
		return 40 - 40*(ratio-1)
	default:
		return 0
	}
}
