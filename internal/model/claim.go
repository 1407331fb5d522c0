package model

import "time"

// SourceTier classifies the reliability of a source URL.
type SourceTier string

const (
	TierOne    SourceTier = "tier1"
	TierTwo    SourceTier = "tier2"
	TierThree  SourceTier = "tier3"
	TierBanned SourceTier = "banned"
)

// Source is one search result backing a claim.
type Source struct {
	Title    string     `json:"title"`
	URL      string     `json:"url"`
	Snippet  string     `json:"snippet"`
	Tier     SourceTier `json:"tier,omitempty"`
	Provider string     `json:"provider,omitempty"` // which search gateway returned it
	Original string     `json:"original,omitempty"` // cited original-source string, if any
}

// VerificationStatus is the triangulation outcome for a claim.
type VerificationStatus string

const (
	VerificationVerified   VerificationStatus = "verified"
	VerificationPartial    VerificationStatus = "partial"
	VerificationUnverified VerificationStatus = "unverified"
	VerificationConflict   VerificationStatus = "conflict"
)

// ConfidenceGrade buckets claim confidence.
//
// Invariant: GradeA requires at least two independent sources, at least one of
// them tier-1.
type ConfidenceGrade string

const (
	GradeA ConfidenceGrade = "A"
	GradeB ConfidenceGrade = "B"
	GradeC ConfidenceGrade = "C"
)

// Claim is a single numeric assertion extracted from generated text, together
// with its verification trace.
type Claim struct {
	Text       string             `json:"text"`
	Value      float64            `json:"value"`
	Unit       string             `json:"unit,omitempty"`
	DataType   string             `json:"data_type,omitempty"` // key into the max-age table
	Sources    []Source           `json:"sources"`
	Status     VerificationStatus `json:"status"`
	Grade      ConfidenceGrade    `json:"grade"`
	Confidence float64            `json:"confidence"` // 0-100
	CheckedAt  time.Time          `json:"checked_at"`
}

// StalenessUrgency classifies how close extracted data is to its max age.
type StalenessUrgency string

const (
	UrgencyNormal   StalenessUrgency = "normal"
	UrgencyWarning  StalenessUrgency = "warning"  // age > 0.8 * max age
	UrgencyCritical StalenessUrgency = "critical" // age > max age
)

// StalenessCheck is the outcome of a time-validity check on one claim.
type StalenessCheck struct {
	DataType string           `json:"data_type"`
	DataDate time.Time        `json:"data_date"`
	Age      time.Duration    `json:"age"`
	MaxAge   time.Duration    `json:"max_age"`
	Valid    bool             `json:"valid"`
	Urgency  StalenessUrgency `json:"urgency"`
}
