// Package insight derives short, rule-based observations from an aggregate
// snapshot for display next to the dashboard charts.
package insight

import (
	"fmt"

	"churnboard/internal/churn/aggregate"
)

// Severity ranks how urgently an insight deserves attention.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Insight is one observation.
type Insight struct {
	Kind     string   `json:"kind"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

const (
	// trendShiftPoints is the month-over-month change in average churn
	// probability worth reporting.
	trendShiftPoints = 5.0
	// dominantFactorPercent marks a factor present in most churners.
	dominantFactorPercent = 50.0
)

// Generate returns insights in display order. An empty snapshot yields a
// single onboarding hint.
func Generate(s aggregate.Snapshot) []Insight {
	if s.TotalCount == 0 {
		return []Insight{{
			Kind:     "empty",
			Severity: SeverityInfo,
			Message:  "No predictions yet. Run a prediction to populate the dashboard.",
		}}
	}

	var out []Insight
	out = append(out, overallRisk(s))
	if in, ok := churnedShare(s); ok {
		out = append(out, in)
	}
	if in, ok := trendShift(s.Trend[aggregate.PeriodMonth]); ok {
		out = append(out, in)
	}
	if in, ok := topFactor(s.FactorBreakdown); ok {
		out = append(out, in)
	}
	if in, ok := largestSegment("age", "Customers aged %s make up %.1f%% of likely churners.", s.AgeBreakdown); ok {
		out = append(out, in)
	}
	if in, ok := largestSegment("gender", "%s customers make up %.1f%% of likely churners.", s.GenderBreakdown); ok {
		out = append(out, in)
	}
	return out
}

func overallRisk(s aggregate.Snapshot) Insight {
	avg := s.AverageChurnProbability
	switch {
	case avg >= 70:
		return Insight{Kind: "overall_risk", Severity: SeverityCritical,
			Message: fmt.Sprintf("Average churn probability is %.1f%%, in the high-risk band.", avg)}
	case avg >= 30:
		return Insight{Kind: "overall_risk", Severity: SeverityWarning,
			Message: fmt.Sprintf("Average churn probability is %.1f%%, in the medium-risk band.", avg)}
	default:
		return Insight{Kind: "overall_risk", Severity: SeverityInfo,
			Message: fmt.Sprintf("Average churn probability is %.1f%%, in the low-risk band.", avg)}
	}
}

func churnedShare(s aggregate.Snapshot) (Insight, bool) {
	if s.ChurnedCount == 0 {
		return Insight{}, false
	}
	share := float64(s.ChurnedCount) / float64(s.TotalCount) * 100
	severity := SeverityInfo
	if share >= 50 {
		severity = SeverityWarning
	}
	return Insight{
		Kind:     "churned_share",
		Severity: severity,
		Message:  fmt.Sprintf("%d of %d customers (%.1f%%) are likely to churn.", s.ChurnedCount, s.TotalCount, share),
	}, true
}

func trendShift(months []aggregate.TrendPoint) (Insight, bool) {
	if len(months) < 2 {
		return Insight{}, false
	}
	prev, last := months[len(months)-2], months[len(months)-1]
	delta := last.ChurnRate - prev.ChurnRate
	switch {
	case delta >= trendShiftPoints:
		return Insight{
			Kind:     "trend",
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("Churn risk rose %.1f points from %s to %s.", delta, prev.Label, last.Label),
		}, true
	case delta <= -trendShiftPoints:
		return Insight{
			Kind:     "trend",
			Severity: SeverityInfo,
			Message:  fmt.Sprintf("Churn risk fell %.1f points from %s to %s.", -delta, prev.Label, last.Label),
		}, true
	}
	return Insight{}, false
}

func topFactor(factors []aggregate.Factor) (Insight, bool) {
	if len(factors) == 0 {
		return Insight{}, false
	}
	top := factors[0]
	severity := SeverityInfo
	if top.PercentOfChurned >= dominantFactorPercent {
		severity = SeverityWarning
	}
	return Insight{
		Kind:     "top_factor",
		Severity: severity,
		Message:  fmt.Sprintf("%s applies to %.1f%% of likely churners. %s", top.Name, top.PercentOfChurned, top.Description),
	}, true
}

func largestSegment(kind, format string, segments []aggregate.Segment) (Insight, bool) {
	if len(segments) == 0 {
		return Insight{}, false
	}
	best := segments[0]
	for _, seg := range segments[1:] {
		if seg.PercentOfChurned > best.PercentOfChurned {
			best = seg
		}
	}
	return Insight{
		Kind:     kind + "_segment",
		Severity: SeverityInfo,
		Message:  fmt.Sprintf(format, best.Name, best.PercentOfChurned),
	}, true
}
