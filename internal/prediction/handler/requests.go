package handler

import (
	"math"
	"net/url"
	"slices"
	"strings"

	"churnboard/internal/churn"
	"churnboard/internal/churn/table"
	"churnboard/internal/prediction/service"
	dErrors "churnboard/pkg/domain-errors"
)

const maxTextLength = 200

var (
	contracts        = []string{churn.ContractMonthToMonth, churn.ContractOneYear, churn.ContractTwoYear}
	internetServices = []string{churn.InternetDSL, churn.InternetFiber, churn.InternetNone}
	paymentMethods   = []string{churn.PaymentElectronicCheck, churn.PaymentMailedCheck, churn.PaymentBankTransfer, churn.PaymentCreditCard}
	yesNo            = []string{churn.Yes, churn.No}
	models           = []string{churn.ModelLogistic, churn.ModelRandomForest}
	thresholdTypes   = []string{churn.ThresholdF1, churn.ThresholdCost}
)

// CreatePredictionRequest is the HTTP request body for POST /predictions.
type CreatePredictionRequest struct {
	Customer      churn.CustomerInfo `json:"customerInfo"`
	Features      churn.Features     `json:"features"`
	Model         string             `json:"model"`
	ThresholdType string             `json:"thresholdType"`
}

// Validate normalizes and validates the prediction form.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *CreatePredictionRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	r.Customer.Name = strings.TrimSpace(r.Customer.Name)
	r.Customer.Region = strings.TrimSpace(r.Customer.Region)
	r.Customer.Gender = strings.TrimSpace(r.Customer.Gender)
	if r.Customer.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "customerInfo.name is required")
	}
	if len(r.Customer.Name) > maxTextLength || len(r.Customer.Region) > maxTextLength || len(r.Customer.Gender) > maxTextLength {
		return dErrors.New(dErrors.CodeValidation, "customerInfo fields must be at most 200 characters")
	}

	f := &r.Features
	for name, v := range map[string]float64{
		"tenure":         f.Tenure,
		"monthlyCharges": f.MonthlyCharges,
		"totalCharges":   f.TotalCharges,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return dErrors.New(dErrors.CodeValidation, "features."+name+" must be a non-negative number")
		}
	}

	checks := []struct {
		field   string
		value   *string
		allowed []string
	}{
		{"features.contract", &f.Contract, contracts},
		{"features.internetService", &f.InternetService, internetServices},
		{"features.onlineSecurity", &f.OnlineSecurity, yesNo},
		{"features.techSupport", &f.TechSupport, yesNo},
		{"features.paymentMethod", &f.PaymentMethod, paymentMethods},
		{"features.streamingTV", &f.StreamingTV, yesNo},
		{"features.paperlessBilling", &f.PaperlessBilling, yesNo},
	}
	for _, c := range checks {
		*c.value = strings.TrimSpace(*c.value)
		if !slices.Contains(c.allowed, *c.value) {
			return dErrors.New(dErrors.CodeValidation, c.field+" must be one of: "+strings.Join(c.allowed, ", "))
		}
	}

	r.Model = strings.TrimSpace(r.Model)
	if r.Model != "" && !slices.Contains(models, r.Model) {
		return dErrors.New(dErrors.CodeValidation, "model must be logistic or randomForest")
	}
	r.ThresholdType = strings.TrimSpace(r.ThresholdType)
	if r.ThresholdType != "" && !slices.Contains(thresholdTypes, r.ThresholdType) {
		return dErrors.New(dErrors.CodeValidation, "thresholdType must be f1 or cost")
	}
	return nil
}

// ToInput converts the validated request to a service input.
func (r *CreatePredictionRequest) ToInput() service.CreateInput {
	return service.CreateInput{
		Customer:      r.Customer,
		Features:      r.Features,
		Model:         r.Model,
		ThresholdType: r.ThresholdType,
	}
}

// parseTableQuery reads ?q=&risk=High,Medium&sort=&order=asc|desc.
func parseTableQuery(values url.Values) (table.Query, error) {
	q := table.Query{Search: strings.TrimSpace(values.Get("q"))}

	sortBy, ok := table.ParseSortKey(values.Get("sort"))
	if !ok {
		return table.Query{}, dErrors.New(dErrors.CodeBadRequest, "sort must be one of customer, region, date, probability, model, status")
	}
	q.SortBy = sortBy

	switch strings.ToLower(strings.TrimSpace(values.Get("order"))) {
	case "", "desc":
		q.Descending = true
	case "asc":
	default:
		return table.Query{}, dErrors.New(dErrors.CodeBadRequest, "order must be asc or desc")
	}

	for _, raw := range values["risk"] {
		for _, part := range strings.Split(raw, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			level, ok := churn.ParseRiskLevel(part)
			if !ok {
				return table.Query{}, dErrors.New(dErrors.CodeBadRequest, "risk must be Low, Medium or High")
			}
			if !slices.Contains(q.Risk, level) {
				q.Risk = append(q.Risk, level)
			}
		}
	}
	return q, nil
}
