package aggregate

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"churnboard/internal/churn"
)

type recordOpt func(*churn.Record)

func at(ts time.Time) recordOpt {
	return func(r *churn.Record) { r.Timestamp = &ts }
}

func age(a float64) recordOpt {
	return func(r *churn.Record) { r.Customer.Age = churn.Age(a) }
}

func gender(g string) recordOpt {
	return func(r *churn.Record) { r.Customer.Gender = g }
}

func features(f churn.Features) recordOpt {
	return func(r *churn.Record) { r.Features = f }
}

// newRecord builds a record with no churn factors present.
func newRecord(probability float64, opts ...recordOpt) churn.Record {
	r := churn.Record{
		Customer: churn.CustomerInfo{Name: "Customer", Age: 40, Gender: churn.GenderFemale},
		Features: churn.Features{
			Tenure:          12,
			MonthlyCharges:  50,
			Contract:        churn.ContractTwoYear,
			InternetService: churn.InternetDSL,
			OnlineSecurity:  churn.Yes,
			TechSupport:     churn.Yes,
			PaymentMethod:   churn.PaymentCreditCard,
		},
		Prediction: churn.Prediction{
			ChurnProbability: probability,
			RiskLevel:        churn.RiskLevelFor(probability),
			Model:            churn.ModelLogistic,
		},
	}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 12, 0, 0, 0, time.UTC)
}

func TestCompute_EmptySet(t *testing.T) {
	s := Compute(nil)

	assert.Equal(t, 0, s.TotalCount)
	assert.Equal(t, 0.0, s.AverageTenure)
	assert.Equal(t, 0.0, s.AverageMonthlyCharges)
	assert.Equal(t, 0.0, s.AverageChurnProbability)
	assert.Equal(t, 0, s.ChurnedCount)
	assert.Empty(t, s.Trend[PeriodMonth])
	assert.NotNil(t, s.Trend[PeriodMonth])
	assert.Empty(t, s.Trend[PeriodQuarter])
	assert.Empty(t, s.Trend[PeriodYear])
	assert.Empty(t, s.FactorBreakdown)
	assert.NotNil(t, s.FactorBreakdown)
	assert.Empty(t, s.AgeBreakdown)
	assert.Empty(t, s.GenderBreakdown)
}

func TestCompute_ThreeRecordsSameMonth(t *testing.T) {
	ts := date(2025, time.March, 10)
	s := Compute([]churn.Record{
		newRecord(20, at(ts)),
		newRecord(60, at(ts)),
		newRecord(80, at(ts)),
	})

	assert.Equal(t, 3, s.TotalCount)
	assert.Equal(t, 53.3, s.AverageChurnProbability)
	assert.Equal(t, 2, s.ChurnedCount)
	require.Len(t, s.Trend[PeriodMonth], 1)
	assert.Equal(t, TrendPoint{Label: "Mar 2025", ChurnRate: 53.3}, s.Trend[PeriodMonth][0])
	assert.Equal(t, []TrendPoint{{Label: "Q1 2025", ChurnRate: 53.3}}, s.Trend[PeriodQuarter])
	assert.Equal(t, []TrendPoint{{Label: "2025", ChurnRate: 53.3}}, s.Trend[PeriodYear])
}

func TestCompute_Averages(t *testing.T) {
	s := Compute([]churn.Record{
		newRecord(10, features(churn.Features{Tenure: 1, MonthlyCharges: 70.10})),
		newRecord(20, features(churn.Features{Tenure: 2, MonthlyCharges: 70.25})),
		newRecord(30, features(churn.Features{Tenure: 4, MonthlyCharges: 71.66})),
	})

	assert.Equal(t, 2.3, s.AverageTenure)
	assert.Equal(t, 70.67, s.AverageMonthlyCharges)
	assert.Equal(t, 20.0, s.AverageChurnProbability)
}

func TestCompute_UntimedRecordsCountInAveragesOnly(t *testing.T) {
	s := Compute([]churn.Record{
		newRecord(40, at(date(2025, time.January, 3))),
		newRecord(90),
	})

	assert.Equal(t, 2, s.TotalCount)
	assert.Equal(t, 65.0, s.AverageChurnProbability)
	assert.Equal(t, []TrendPoint{{Label: "Jan 2025", ChurnRate: 40}}, s.Trend[PeriodMonth])
}

func TestCompute_TrendsAreChronological(t *testing.T) {
	s := Compute([]churn.Record{
		newRecord(10, at(date(2025, time.January, 5))),
		newRecord(20, at(date(2024, time.December, 5))),
		newRecord(30, at(date(2024, time.February, 5))),
		newRecord(40, at(date(2024, time.October, 1))),
		newRecord(50, at(date(2023, time.November, 1))),
	})

	labels := func(points []TrendPoint) []string {
		out := make([]string, 0, len(points))
		for _, p := range points {
			out = append(out, p.Label)
		}
		return out
	}

	assert.Equal(t, []string{"Nov 2023", "Feb 2024", "Oct 2024", "Dec 2024", "Jan 2025"}, labels(s.Trend[PeriodMonth]))
	assert.Equal(t, []string{"Q4 2023", "Q1 2024", "Q4 2024", "Q1 2025"}, labels(s.Trend[PeriodQuarter]))
	assert.Equal(t, []string{"2023", "2024", "2025"}, labels(s.Trend[PeriodYear]))

	q4 := s.Trend[PeriodQuarter][2]
	assert.Equal(t, 30.0, q4.ChurnRate)
}

func TestCompute_ChurnThresholdIsExclusive(t *testing.T) {
	s := Compute([]churn.Record{newRecord(50), newRecord(50.1)})
	assert.Equal(t, 1, s.ChurnedCount)
}

func TestCompute_FactorBreakdown(t *testing.T) {
	risky := churn.Features{
		Contract:        churn.ContractMonthToMonth,
		InternetService: churn.InternetFiber,
		OnlineSecurity:  churn.No,
		TechSupport:     churn.No,
		PaymentMethod:   churn.PaymentElectronicCheck,
		MonthlyCharges:  95,
	}
	onlyContract := churn.Features{
		Contract:        churn.ContractMonthToMonth,
		InternetService: churn.InternetDSL,
		OnlineSecurity:  churn.Yes,
		TechSupport:     churn.Yes,
		PaymentMethod:   churn.PaymentMailedCheck,
		MonthlyCharges:  80,
	}

	s := Compute([]churn.Record{
		newRecord(90, features(risky)),
		newRecord(75, features(onlyContract)),
		newRecord(10, features(risky)),
	})

	require.Equal(t, 2, s.ChurnedCount)
	require.Len(t, s.FactorBreakdown, 6)

	first := s.FactorBreakdown[0]
	assert.Equal(t, "Month-to-month contract", first.Name)
	assert.Equal(t, 100.0, first.PercentOfChurned)
	assert.Equal(t, 2, first.Count)
	assert.NotEmpty(t, first.Description)

	// Remaining factors tie at 50% and keep declaration order.
	names := make([]string, 0, 5)
	for _, f := range s.FactorBreakdown[1:] {
		assert.Equal(t, 50.0, f.PercentOfChurned)
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{
		"No tech support",
		"Fiber optic service",
		"Electronic check payment",
		"No online security",
		"High monthly charges",
	}, names)

	sum := 0
	for _, f := range s.FactorBreakdown {
		sum += f.Count
	}
	assert.Greater(t, sum, s.ChurnedCount)
}

func TestCompute_FactorsSortedDescending(t *testing.T) {
	fiberOnly := churn.Features{
		Contract: churn.ContractOneYear, InternetService: churn.InternetFiber,
		OnlineSecurity: churn.Yes, TechSupport: churn.Yes, PaymentMethod: churn.PaymentCreditCard,
	}
	fiberNoSupport := fiberOnly
	fiberNoSupport.TechSupport = churn.No

	s := Compute([]churn.Record{
		newRecord(70, features(fiberOnly)),
		newRecord(70, features(fiberOnly)),
		newRecord(70, features(fiberNoSupport)),
	})

	require.Len(t, s.FactorBreakdown, 2)
	assert.Equal(t, "Fiber optic service", s.FactorBreakdown[0].Name)
	assert.Equal(t, 100.0, s.FactorBreakdown[0].PercentOfChurned)
	assert.Equal(t, 33.3, s.FactorBreakdown[1].PercentOfChurned)
}

func TestAgeGroup(t *testing.T) {
	tests := []struct {
		age  float64
		want string
	}{
		{0, "Unknown"},
		{17, "Unknown"},
		{18, "18-30"},
		{30, "18-30"},
		{31, "31-50"},
		{50, "31-50"},
		{51, "51+"},
		{88, "51+"},
		{29.5, "18-30"},
		{30.5, "Unknown"},
		{50.5, "Unknown"},
		{51.5, "51+"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, AgeGroup(tt.age), "age %v", tt.age)
	}
}

func TestCompute_AgeBreakdown(t *testing.T) {
	s := Compute([]churn.Record{
		newRecord(80, age(0)),
		newRecord(80, age(30)),
		newRecord(80, age(31)),
		newRecord(80, age(51)),
		newRecord(80, age(45)),
		newRecord(20, age(22)),
	})

	require.Equal(t, 5, s.ChurnedCount)
	assert.Equal(t, []Segment{
		{Name: "18-30", PercentOfChurned: 20, Churned: 1, Total: 1},
		{Name: "31-50", PercentOfChurned: 40, Churned: 2, Total: 2},
		{Name: "51+", PercentOfChurned: 20, Churned: 1, Total: 1},
		{Name: "Unknown", PercentOfChurned: 20, Churned: 1, Total: 1},
	}, s.AgeBreakdown)
}

func TestCompute_GenderBreakdownOrder(t *testing.T) {
	s := Compute([]churn.Record{
		newRecord(90, gender("Undisclosed")),
		newRecord(90, gender("")),
		newRecord(90, gender("Non-binary")),
		newRecord(90, gender("Female")),
		newRecord(90, gender("Male")),
		newRecord(90, gender("Male")),
	})

	names := make([]string, 0, len(s.GenderBreakdown))
	for _, g := range s.GenderBreakdown {
		names = append(names, g.Name)
		assert.Equal(t, g.Churned, g.Total)
	}
	assert.Equal(t, []string{"Male", "Female", "Undisclosed", "Non-binary", "Unknown"}, names)
	assert.Equal(t, 33.3, s.GenderBreakdown[0].PercentOfChurned)
}

func TestCompute_MalformedNumbersAreCoerced(t *testing.T) {
	s := Compute([]churn.Record{
		newRecord(math.NaN(), features(churn.Features{Tenure: math.Inf(1), MonthlyCharges: -5})),
		newRecord(60, features(churn.Features{Tenure: 10, MonthlyCharges: 40})),
	})

	assert.Equal(t, 5.0, s.AverageTenure)
	assert.Equal(t, 20.0, s.AverageMonthlyCharges)
	assert.Equal(t, 30.0, s.AverageChurnProbability)
	assertPercentagesInRange(t, s)
}

func TestCompute_PercentagesInRange(t *testing.T) {
	records := make([]churn.Record, 0, 200)
	for i := 0; i < 200; i++ {
		ts := date(2024, time.Month(i%12+1), 1)
		records = append(records, newRecord(float64(i%101), at(ts), age(float64(i%70)), gender([]string{"Male", "Female", "Other"}[i%3])))
	}
	assertPercentagesInRange(t, Compute(records))
}

func TestCompute_Idempotent(t *testing.T) {
	records := []churn.Record{
		newRecord(55, at(date(2024, time.May, 1)), gender("Male")),
		newRecord(85, at(date(2024, time.June, 1)), gender("Female")),
	}
	assert.Equal(t, Compute(records), Compute(records))
}

func assertPercentagesInRange(t *testing.T, s Snapshot) {
	t.Helper()
	inRange := func(v float64) {
		assert.False(t, math.IsNaN(v))
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 100.0)
	}
	inRange(s.AverageChurnProbability)
	for _, points := range s.Trend {
		for _, p := range points {
			inRange(p.ChurnRate)
		}
	}
	for _, f := range s.FactorBreakdown {
		inRange(f.PercentOfChurned)
	}
	for _, seg := range append(append([]Segment{}, s.AgeBreakdown...), s.GenderBreakdown...) {
		inRange(seg.PercentOfChurned)
	}
}
