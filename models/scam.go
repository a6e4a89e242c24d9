package models

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

type RiskLevel string

const (
	RiskSafe   RiskLevel = "safe"
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// RiskLevelFor buckets a scam score.
func RiskLevelFor(score float64) RiskLevel {
	switch {
	case score < 0.15:
		return RiskSafe
	case score < 0.35:
		return RiskLow
	case score < 0.6:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// ScamFlag is one heuristic that fired for a listing.
type ScamFlag struct {
	Type        string
	Severity    Severity
	Description string
	Score       float64
}

// ScamAnalysis is the scored result for a listing. Score is in [0, 1].
type ScamAnalysis struct {
	Score     float64
	Flags     []ScamFlag
	RiskLevel RiskLevel
}

// FlagTypes returns the flag type names, in order.
func (a ScamAnalysis) FlagTypes() []string {
	out := make([]string, 0, len(a.Flags))
	for _, f := range a.Flags {
		out = append(out, f.Type)
	}
	return out
}
