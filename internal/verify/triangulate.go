package verify

import (
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/meridian-group/decision-cli/internal/model"
)

const (
	sameDomainPenalty     = 30
	similarContentPenalty = 20
	sharedOriginPenalty   = 25
	contentSimThreshold   = 0.6
	independenceFloor     = 60
	minConsistentSources  = 2
)

// Triangulator cross-validates a single numeric claim against multiple
// sources.
type Triangulator struct {
	classifier *Classifier
	staleness  *StalenessChecker
	tolerance  float64 // ±fraction for a source value to count as in range
	now        func() time.Time
}

// NewTriangulator wires the triangulation engine. tolerance <= 0 defaults to
// 0.2 (±20%).
func NewTriangulator(classifier *Classifier, staleness *StalenessChecker, tolerance float64) *Triangulator {
	if tolerance <= 0 {
		tolerance = 0.2
	}
	return &Triangulator{
		classifier: classifier,
		staleness:  staleness,
		tolerance:  tolerance,
		now:        time.Now,
	}
}

// Verify triangulates the claim in place: classifies its sources, scores
// independence and numeric consistency, and assigns status, grade and
// confidence (0.4·independence + 0.4·consistency + 0.2·recency).
func (t *Triangulator) Verify(claim *model.Claim) {
	for i := range claim.Sources {
		if claim.Sources[i].Tier == "" {
			claim.Sources[i].Tier = t.classifier.Classify(claim.Sources[i].URL)
		}
	}

	// Banned sources never contribute to verification.
	usable := make([]model.Source, 0, len(claim.Sources))
	for _, s := range claim.Sources {
		if s.Tier != model.TierBanned {
			usable = append(usable, s)
		}
	}

	independence := t.independenceScore(usable)
	consistency, inRange, spread := t.crossValidate(claim.Value, usable)
	recency := t.recencyScore(claim, usable)

	independent := independence >= independenceFloor && distinctDomains(usable) >= 2
	consistent := inRange >= minConsistentSources

	switch {
	case independent && consistent:
		claim.Status = model.VerificationVerified
	case spread:
		claim.Status = model.VerificationConflict
	case independent || consistent:
		claim.Status = model.VerificationPartial
	default:
		claim.Status = model.VerificationUnverified
	}

	claim.Confidence = 0.4*independence + 0.4*consistency + 0.2*recency
	claim.Grade = t.grade(claim.Status, usable)
	claim.CheckedAt = t.now()

	zap.L().Debug("triangulated claim",
		zap.String("claim", claim.Text),
		zap.String("status", string(claim.Status)),
		zap.Float64("independence", independence),
		zap.Float64("consistency", consistency),
		zap.Float64("recency", recency),
		zap.Float64("confidence", claim.Confidence),
	)
}

// independenceScore starts at 100 and penalizes same-domain pairs, highly
// similar source contents and shared original-source citations.
func (t *Triangulator) independenceScore(sources []model.Source) float64 {
	if len(sources) < 2 {
		return 0
	}

	score := 100.0
	for i := 0; i < len(sources); i++ {
		for j := i + 1; j < len(sources); j++ {
			a, b := sources[i], sources[j]
			if hostOf(a.URL) != "" && hostOf(a.URL) == hostOf(b.URL) {
				score -= sameDomainPenalty
			}
			if Similarity(a.Snippet, b.Snippet) > contentSimThreshold {
				score -= similarContentPenalty
			}
			if a.Original != "" && a.Original == b.Original {
				score -= sharedOriginPenalty
			}
		}
	}
	return math.Max(0, score)
}

// crossValidate extracts numeric tokens from each source and counts how many
// fall within ±tolerance of the asserted value. spread reports an explicitly
// inconsistent numeric distribution (sources with numbers, fewer than two in
// range, and at least one value deviating more than twice the tolerance).
func (t *Triangulator) crossValidate(asserted float64, sources []model.Source) (score float64, inRange int, spread bool) {
	if asserted == 0 {
		return 0, 0, false
	}

	withNumbers := 0
	farOff := 0
	for _, s := range sources {
		amounts := ExtractAmounts(s.Snippet)
		if len(amounts) == 0 {
			continue
		}
		withNumbers++

		best := math.Inf(1)
		for _, a := range amounts {
			if a.Value == 0 {
				continue
			}
			dev := math.Abs(a.Value-asserted) / math.Abs(asserted)
			if dev < best {
				best = dev
			}
		}
		switch {
		case best <= t.tolerance:
			inRange++
		case best > 2*t.tolerance && !math.IsInf(best, 1):
			farOff++
		}
	}

	if withNumbers == 0 {
		return 0, 0, false
	}
	score = 100 * float64(inRange) / float64(withNumbers)
	spread = inRange < minConsistentSources && farOff >= 1 && withNumbers >= 2
	return score, inRange, spread
}

func (t *Triangulator) recencyScore(claim *model.Claim, sources []model.Source) float64 {
	dataType := claim.DataType
	if dataType == "" {
		dataType = "statistics"
	}

	best := 0.0
	dated := false
	for _, s := range sources {
		check, ok := t.staleness.Check(dataType, s.Snippet, 0)
		if !ok {
			continue
		}
		dated = true
		if sc := RecencyScore(check, true); sc > best {
			best = sc
		}
	}
	if !dated {
		return RecencyScore(model.StalenessCheck{}, false)
	}
	return best
}

// grade maps verification status onto a confidence grade. Grade A requires a
// verified claim with at least two independent domains, one of them tier-1.
func (t *Triangulator) grade(status model.VerificationStatus, sources []model.Source) model.ConfidenceGrade {
	switch status {
	case model.VerificationVerified:
		if distinctDomains(sources) >= 2 && hasTier(sources, model.TierOne) {
			return model.GradeA
		}
		return model.GradeB
	case model.VerificationPartial:
		return model.GradeB
	default:
		return model.GradeC
	}
}

func distinctDomains(sources []model.Source) int {
	seen := make(map[string]struct{})
	for _, s := range sources {
		if h := hostOf(s.URL); h != "" {
			seen[h] = struct{}{}
		}
	}
	return len(seen)
}

func hasTier(sources []model.Source, tier model.SourceTier) bool {
	for _, s := range sources {
		if s.Tier == tier {
			return true
		}
	}
	return false
}
