// Package aggregate turns a snapshot of one owner's prediction records into
// dashboard statistics: averages, churn-rate trends, a ranked churn-factor
// breakdown and age/gender breakdowns of the churned cohort.
//
// Compute is pure and cheap; callers recompute from the latest full record
// set whenever it changes, so duplicate or out-of-order change notifications
// are harmless.
package aggregate

import (
	"cmp"
	"fmt"
	"slices"

	"churnboard/internal/churn"
)

// ChurnedThreshold is the churn probability above which a record joins the
// churned cohort used for factor and segment analysis.
const ChurnedThreshold = 50.0

// HighChargesThreshold is the monthly charge above which the high-charges
// factor applies.
const HighChargesThreshold = 80.0

// Period names a trend granularity.
type Period string

const (
	PeriodMonth   Period = "month"
	PeriodQuarter Period = "quarter"
	PeriodYear    Period = "year"
)

// Snapshot is the derived view of a record set. It is never persisted.
type Snapshot struct {
	TotalCount              int                     `json:"totalCount"`
	AverageTenure           float64                 `json:"averageTenure"`
	AverageMonthlyCharges   float64                 `json:"averageMonthlyCharges"`
	AverageChurnProbability float64                 `json:"averageChurnProbability"`
	ChurnedCount            int                     `json:"churnedCount"`
	Trend                   map[Period][]TrendPoint `json:"trend"`
	FactorBreakdown         []Factor                `json:"factorBreakdown"`
	AgeBreakdown            []Segment               `json:"ageBreakdown"`
	GenderBreakdown         []Segment               `json:"genderBreakdown"`
}

// TrendPoint is the average churn probability of one time bucket.
type TrendPoint struct {
	Label     string  `json:"label"`
	ChurnRate float64 `json:"churnRate"`
}

// Factor is the share of churned records exhibiting one churn driver.
// Factors are not mutually exclusive, so counts may sum past ChurnedCount.
type Factor struct {
	Name             string  `json:"factorName"`
	PercentOfChurned float64 `json:"percentOfChurned"`
	Count            int     `json:"count"`
	Description      string  `json:"description"`
}

// Segment is the share of churned records falling into one age or gender
// group. Only churned records are bucketed, so Total always equals Churned.
type Segment struct {
	Name             string  `json:"groupName"`
	PercentOfChurned float64 `json:"percentOfChurned"`
	Churned          int     `json:"churned"`
	Total            int     `json:"total"`
}

type factorRule struct {
	name        string
	description string
	applies     func(r churn.Record) bool
}

// factorRules are evaluated per churned record; their order breaks
// percentage ties in the breakdown.
var factorRules = []factorRule{
	{
		name:        "Month-to-month contract",
		description: "No long-term commitment makes switching providers easy.",
		applies:     func(r churn.Record) bool { return r.Features.Contract == churn.ContractMonthToMonth },
	},
	{
		name:        "No tech support",
		description: "Customers without tech support leave when problems go unresolved.",
		applies:     func(r churn.Record) bool { return r.Features.TechSupport == churn.No },
	},
	{
		name:        "Fiber optic service",
		description: "Fiber customers are price sensitive and targeted by competitors.",
		applies:     func(r churn.Record) bool { return r.Features.InternetService == churn.InternetFiber },
	},
	{
		name:        "Electronic check payment",
		description: "Manual electronic check payments correlate with weaker engagement.",
		applies:     func(r churn.Record) bool { return r.Features.PaymentMethod == churn.PaymentElectronicCheck },
	},
	{
		name:        "No online security",
		description: "Customers without add-on security services have fewer reasons to stay.",
		applies:     func(r churn.Record) bool { return r.Features.OnlineSecurity == churn.No },
	},
	{
		name:        "High monthly charges",
		description: "Monthly charges above $80 push customers to look for cheaper plans.",
		applies:     func(r churn.Record) bool { return churn.SafeNumber(r.Features.MonthlyCharges) > HighChargesThreshold },
	},
}

var genderPriority = map[string]int{
	churn.GenderMale:        0,
	churn.GenderFemale:      1,
	churn.GenderUndisclosed: 2,
}

type bucket struct {
	year, sub int
	label     string
	sum       float64
	count     int
}

type segmentCount struct {
	churned, total int
}

// Compute derives a Snapshot from records. It never fails: non-finite or
// negative numbers are treated as 0 and empty input yields zeros and empty
// slices.
func Compute(records []churn.Record) Snapshot {
	var sumTenure, sumCharges, sumProbability float64

	months := map[string]*bucket{}
	quarters := map[string]*bucket{}
	years := map[string]*bucket{}

	factorCounts := make([]int, len(factorRules))
	ages := map[string]*segmentCount{}
	genders := map[string]*segmentCount{}
	churned := 0

	for _, r := range records {
		probability := churn.SafeNumber(r.Prediction.ChurnProbability)
		sumTenure += churn.SafeNumber(r.Features.Tenure)
		sumCharges += churn.SafeNumber(r.Features.MonthlyCharges)
		sumProbability += probability

		if r.Timestamp != nil {
			ts := r.Timestamp.UTC()
			year, month := ts.Year(), int(ts.Month())
			quarter := (month-1)/3 + 1
			accumulate(months, fmt.Sprintf("%d-%d", year, month-1), year, month, ts.Format("Jan 2006"), probability)
			accumulate(quarters, fmt.Sprintf("%d-Q%d", year, quarter), year, quarter, fmt.Sprintf("Q%d %d", quarter, year), probability)
			accumulate(years, fmt.Sprintf("%d", year), year, 0, fmt.Sprintf("%d", year), probability)
		}

		if probability <= ChurnedThreshold {
			continue
		}
		churned++
		for i, rule := range factorRules {
			if rule.applies(r) {
				factorCounts[i]++
			}
		}
		countSegment(ages, AgeGroup(float64(r.Customer.Age)))
		countSegment(genders, churn.NormalizeGender(r.Customer.Gender))
	}

	total := len(records)
	return Snapshot{
		TotalCount:              total,
		AverageTenure:           churn.Round(ratio(sumTenure, float64(total)), 1),
		AverageMonthlyCharges:   churn.Round(ratio(sumCharges, float64(total)), 2),
		AverageChurnProbability: churn.Round(ratio(sumProbability, float64(total)), 1),
		ChurnedCount:            churned,
		Trend: map[Period][]TrendPoint{
			PeriodMonth:   chronological(months),
			PeriodQuarter: chronological(quarters),
			PeriodYear:    byLabel(years),
		},
		FactorBreakdown: factors(factorCounts, churned),
		AgeBreakdown:    ageSegments(ages, churned),
		GenderBreakdown: genderSegments(genders, churned),
	}
}

// AgeGroup buckets an age into the closed bands 18-30, 31-50 and 51+.
// Anything between bands, such as 30.5, and ages under 18, including the 0
// used for missing values, land in Unknown.
func AgeGroup(age float64) string {
	switch {
	case age >= 18 && age <= 30:
		return "18-30"
	case age >= 31 && age <= 50:
		return "31-50"
	case age >= 51:
		return "51+"
	default:
		return "Unknown"
	}
}

func accumulate(buckets map[string]*bucket, key string, year, sub int, label string, probability float64) {
	b, ok := buckets[key]
	if !ok {
		b = &bucket{year: year, sub: sub, label: label}
		buckets[key] = b
	}
	b.sum += probability
	b.count++
}

func countSegment(segments map[string]*segmentCount, name string) {
	s, ok := segments[name]
	if !ok {
		s = &segmentCount{}
		segments[name] = s
	}
	s.churned++
	s.total++
}

func chronological(buckets map[string]*bucket) []TrendPoint {
	sorted := collect(buckets)
	slices.SortFunc(sorted, func(a, b *bucket) int {
		if c := cmp.Compare(a.year, b.year); c != 0 {
			return c
		}
		return cmp.Compare(a.sub, b.sub)
	})
	return points(sorted)
}

func byLabel(buckets map[string]*bucket) []TrendPoint {
	sorted := collect(buckets)
	slices.SortFunc(sorted, func(a, b *bucket) int { return cmp.Compare(a.label, b.label) })
	return points(sorted)
}

func collect(buckets map[string]*bucket) []*bucket {
	out := make([]*bucket, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, b)
	}
	return out
}

func points(buckets []*bucket) []TrendPoint {
	out := make([]TrendPoint, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, TrendPoint{Label: b.label, ChurnRate: churn.Round(ratio(b.sum, float64(b.count)), 1)})
	}
	return out
}

func factors(counts []int, churned int) []Factor {
	out := make([]Factor, 0, len(counts))
	for i, count := range counts {
		if count == 0 {
			continue
		}
		out = append(out, Factor{
			Name:             factorRules[i].name,
			PercentOfChurned: percent(count, churned),
			Count:            count,
			Description:      factorRules[i].description,
		})
	}
	slices.SortStableFunc(out, func(a, b Factor) int {
		return cmp.Compare(b.PercentOfChurned, a.PercentOfChurned)
	})
	return out
}

func ageSegments(groups map[string]*segmentCount, churned int) []Segment {
	out := segments(groups, churned)
	slices.SortFunc(out, func(a, b Segment) int { return cmp.Compare(a.Name, b.Name) })
	return out
}

func genderSegments(groups map[string]*segmentCount, churned int) []Segment {
	out := segments(groups, churned)
	slices.SortFunc(out, func(a, b Segment) int {
		if c := cmp.Compare(genderRank(a.Name), genderRank(b.Name)); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return out
}

func genderRank(name string) int {
	if rank, ok := genderPriority[name]; ok {
		return rank
	}
	return len(genderPriority)
}

func segments(groups map[string]*segmentCount, churned int) []Segment {
	out := make([]Segment, 0, len(groups))
	for name, s := range groups {
		out = append(out, Segment{
			Name:             name,
			PercentOfChurned: percent(s.churned, churned),
			Churned:          s.churned,
			Total:            s.total,
		})
	}
	return out
}

func percent(part, whole int) float64 {
	return churn.Round(ratio(float64(part)*100, float64(whole)), 1)
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}
