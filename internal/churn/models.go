// Package churn defines prediction records, the unit every dashboard,
// table and export is computed from.
package churn

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	id "churnboard/pkg/domain"
)

// RiskLevel buckets a churn probability.
type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

// RiskLevelFor derives the risk level from a churn probability in percent.
func RiskLevelFor(probability float64) RiskLevel {
	switch {
	case probability < 30:
		return RiskLow
	case probability < 70:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// ParseRiskLevel accepts a risk level name in any letter case.
func ParseRiskLevel(s string) (RiskLevel, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return RiskLow, true
	case "medium":
		return RiskMedium, true
	case "high":
		return RiskHigh, true
	}
	return "", false
}

// Categorical values of the prediction form.
const (
	ContractMonthToMonth = "Month-to-month"
	ContractOneYear      = "One year"
	ContractTwoYear      = "Two year"

	InternetDSL   = "DSL"
	InternetFiber = "Fiber optic"
	InternetNone  = "No"

	PaymentElectronicCheck = "Electronic check"
	PaymentMailedCheck     = "Mailed check"
	PaymentBankTransfer    = "Bank transfer (automatic)"
	PaymentCreditCard      = "Credit card (automatic)"

	Yes = "Yes"
	No  = "No"

	GenderMale        = "Male"
	GenderFemale      = "Female"
	GenderUndisclosed = "Undisclosed"
	GenderUnknown     = "Unknown"
)

// Model names accepted by the predictor.
const (
	ModelLogistic     = "logistic"
	ModelRandomForest = "randomForest"
)

// Threshold types accepted by the predictor.
const (
	ThresholdF1   = "f1"
	ThresholdCost = "cost"
)

// Record is one stored prediction. Records are immutable once written.
// Timestamp is nil while the record waits for its server-assigned time.
type Record struct {
	ID         id.PredictionID `json:"id"`
	OwnerID    id.UserID       `json:"ownerId"`
	CustomerID int64           `json:"customerId"`
	Timestamp  *time.Time      `json:"timestamp"`
	Customer   CustomerInfo    `json:"customerInfo"`
	Features   Features        `json:"features"`
	Prediction Prediction      `json:"prediction"`
}

// CustomerInfo describes the customer a prediction was made for.
type CustomerInfo struct {
	Name   string `json:"name"`
	Age    Age    `json:"age"`
	Gender string `json:"gender"`
	Region string `json:"region"`
}

// Features are the predictor inputs captured from the form.
type Features struct {
	Tenure           float64 `json:"tenure"`
	MonthlyCharges   float64 `json:"monthlyCharges"`
	TotalCharges     float64 `json:"totalCharges"`
	Contract         string  `json:"contract"`
	InternetService  string  `json:"internetService"`
	OnlineSecurity   string  `json:"onlineSecurity"`
	TechSupport      string  `json:"techSupport"`
	PaymentMethod    string  `json:"paymentMethod"`
	StreamingTV      string  `json:"streamingTV"`
	PaperlessBilling string  `json:"paperlessBilling"`
}

// Prediction is the predictor's verdict as stored with the record.
type Prediction struct {
	ChurnProbability float64   `json:"churnProbability"`
	RiskLevel        RiskLevel `json:"riskLevel"`
	Model            string    `json:"model"`
	ThresholdType    string    `json:"thresholdType"`
	Threshold        float64   `json:"threshold"`
	Churn            bool      `json:"churn"`
}

// Age is a customer age. Missing or non-numeric JSON values decode to 0.
type Age float64

func (a *Age) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*a = Age(SafeNumber(f))
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			*a = Age(SafeNumber(f))
			return nil
		}
	}
	*a = 0
	return nil
}

// SafeNumber coerces non-finite and negative values to 0.
func SafeNumber(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	return f
}

// NormalizeGender maps empty input to Unknown and keeps anything else verbatim.
func NormalizeGender(g string) string {
	g = strings.TrimSpace(g)
	if g == "" {
		return GenderUnknown
	}
	return g
}

// Round rounds f to the given number of decimal places.
func Round(f float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(f*p) / p
}
