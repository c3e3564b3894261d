// Package table projects prediction records into flat rows for the
// sortable, searchable prediction table and its CSV export.
package table

import (
	"cmp"
	"encoding/csv"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"churnboard/internal/churn"
	id "churnboard/pkg/domain"
)

// Row is one table line.
type Row struct {
	ID          id.PredictionID `json:"id"`
	CustomerID  int64           `json:"customerId"`
	Customer    string          `json:"customer"`
	Region      string          `json:"region"`
	Date        *time.Time      `json:"date"`
	Probability float64         `json:"probability"`
	Model       string          `json:"model"`
	Status      churn.RiskLevel `json:"status"`
}

// SortKey names a sortable column.
type SortKey string

const (
	SortCustomer    SortKey = "customer"
	SortRegion      SortKey = "region"
	SortDate        SortKey = "date"
	SortProbability SortKey = "probability"
	SortModel       SortKey = "model"
	SortStatus      SortKey = "status"
)

// Query selects and orders rows. The zero value returns every row by date,
// oldest first.
type Query struct {
	Search     string
	Risk       []churn.RiskLevel
	SortBy     SortKey
	Descending bool
}

// ParseSortKey validates a column name; empty input selects the date column.
func ParseSortKey(s string) (SortKey, bool) {
	switch key := SortKey(strings.ToLower(strings.TrimSpace(s))); key {
	case "":
		return SortDate, true
	case SortCustomer, SortRegion, SortDate, SortProbability, SortModel, SortStatus:
		return key, true
	}
	return "", false
}

// Project builds rows from records. Status is recomputed from the stored
// probability so it always agrees with the risk thresholds.
func Project(records []churn.Record) []Row {
	rows := make([]Row, 0, len(records))
	for _, r := range records {
		probability := churn.SafeNumber(r.Prediction.ChurnProbability)
		rows = append(rows, Row{
			ID:          r.ID,
			CustomerID:  r.CustomerID,
			Customer:    r.Customer.Name,
			Region:      r.Customer.Region,
			Date:        r.Timestamp,
			Probability: probability,
			Model:       r.Prediction.Model,
			Status:      churn.RiskLevelFor(probability),
		})
	}
	return rows
}

// Apply filters and sorts rows according to q. The input slice is not
// modified.
func Apply(rows []Row, q Query) []Row {
	needle := strings.ToLower(strings.TrimSpace(q.Search))
	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		if len(q.Risk) > 0 && !slices.Contains(q.Risk, row.Status) {
			continue
		}
		if needle != "" && !row.matches(needle) {
			continue
		}
		out = append(out, row)
	}

	key := q.SortBy
	if key == "" {
		key = SortDate
	}
	slices.SortStableFunc(out, func(a, b Row) int {
		c := compareBy(key, a, b)
		if c == 0 {
			c = cmp.Compare(a.CustomerID, b.CustomerID)
		}
		if q.Descending {
			return -c
		}
		return c
	})
	return out
}

func (r Row) matches(needle string) bool {
	return strings.Contains(strings.ToLower(r.Customer), needle) ||
		strings.Contains(strings.ToLower(r.Region), needle) ||
		strings.Contains(strings.ToLower(r.Model), needle) ||
		strings.Contains(strings.ToLower(string(r.Status)), needle) ||
		strings.Contains(fmt.Sprintf("%d", r.CustomerID), needle)
}

var statusRank = map[churn.RiskLevel]int{
	churn.RiskLow:    0,
	churn.RiskMedium: 1,
	churn.RiskHigh:   2,
}

func compareBy(key SortKey, a, b Row) int {
	switch key {
	case SortCustomer:
		return cmp.Compare(strings.ToLower(a.Customer), strings.ToLower(b.Customer))
	case SortRegion:
		return cmp.Compare(strings.ToLower(a.Region), strings.ToLower(b.Region))
	case SortProbability:
		return cmp.Compare(a.Probability, b.Probability)
	case SortModel:
		return cmp.Compare(a.Model, b.Model)
	case SortStatus:
		return cmp.Compare(statusRank[a.Status], statusRank[b.Status])
	default:
		return compareDates(a.Date, b.Date)
	}
}

// compareDates orders pending (nil) dates after every recorded date, since
// they will receive the latest server time.
func compareDates(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	default:
		return a.Compare(*b)
	}
}

// CSVHeader is the fixed export column order.
var CSVHeader = []string{"Customer", "Region", "Date", "Probability", "Model", "Status"}

// PendingDate is written for rows still waiting for a server timestamp.
const PendingDate = "Pending"

// WriteCSV writes rows with standard CSV quoting.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range rows {
		date := PendingDate
		if row.Date != nil {
			date = row.Date.UTC().Format(time.DateOnly)
		}
		record := []string{
			row.Customer,
			row.Region,
			date,
			fmt.Sprintf("%.1f%%", row.Probability),
			row.Model,
			string(row.Status),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
