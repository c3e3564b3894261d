package predictor

import "churnboard/internal/churn"

// VectorLength is the number of features the predictor expects.
const VectorLength = 14

// Encode turns form features into the predictor's input vector:
//
//	tenure, monthlyCharges, totalCharges,
//	contract One year, contract Two year,
//	payment Credit card, payment Electronic check, payment Mailed check,
//	internet Fiber optic, internet No,
//	onlineSecurity, techSupport, streamingTV, paperlessBilling
//
// Categorical flags are 1 or 0. Bank transfer, month-to-month and DSL are the
// all-zero baselines.
func Encode(f churn.Features) []float64 {
	return []float64{
		churn.SafeNumber(f.Tenure),
		churn.SafeNumber(f.MonthlyCharges),
		churn.SafeNumber(f.TotalCharges),
		flag(f.Contract == churn.ContractOneYear),
		flag(f.Contract == churn.ContractTwoYear),
		flag(f.PaymentMethod == churn.PaymentCreditCard),
		flag(f.PaymentMethod == churn.PaymentElectronicCheck),
		flag(f.PaymentMethod == churn.PaymentMailedCheck),
		flag(f.InternetService == churn.InternetFiber),
		flag(f.InternetService == churn.InternetNone),
		flag(f.OnlineSecurity == churn.Yes),
		flag(f.TechSupport == churn.Yes),
		flag(f.StreamingTV == churn.Yes),
		flag(f.PaperlessBilling == churn.Yes),
	}
}

func flag(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
