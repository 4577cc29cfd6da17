package ledger

// DiscomStatus is a utility-side completion flag reported by the ledger.
type DiscomStatus string

const (
	DiscomPending   DiscomStatus = "PENDING"
	DiscomCompleted DiscomStatus = "COMPLETED"
)

// Validation metric types carried in ledger records.
const (
	MetricActualPushed    = "ACTUAL_PUSHED"
	MetricActualDelivered = "ACTUAL_DELIVERED"
)

// ValidationMetric is a single measured value attached to a ledger record.
type ValidationMetric struct {
	Type  string  `json:"validationMetricType"`
	Value float64 `json:"validationMetricValue"`
}

// Record is one settlement record as reported by the external ledger.
type Record struct {
	TransactionID      string             `json:"transactionId"`
	DiscomIDBuyer      string             `json:"discomIdBuyer"`
	DiscomIDSeller     string             `json:"discomIdSeller"`
	StatusBuyerDiscom  DiscomStatus       `json:"statusBuyerDiscom"`
	StatusSellerDiscom DiscomStatus       `json:"statusSellerDiscom"`
	BuyerMetrics       []ValidationMetric `json:"validationMetricsBuyer"`
	SellerMetrics      []ValidationMetric `json:"validationMetricsSeller"`
}

// BuyerMetric returns the buyer-side metric value for a type, if present.
func (r *Record) BuyerMetric(metricType string) (float64, bool) {
	return findMetric(r.BuyerMetrics, metricType)
}

// SellerMetric returns the seller-side metric value for a type, if present.
func (r *Record) SellerMetric(metricType string) (float64, bool) {
	return findMetric(r.SellerMetrics, metricType)
}

func findMetric(metrics []ValidationMetric, metricType string) (float64, bool) {
	for _, m := range metrics {
		if m.Type == metricType {
			return m.Value, true
		}
	}
	return 0, false
}

// Filter narrows a QueryMany call.
type Filter struct {
	TransactionID string
	DiscomIDBuyer string
	Limit         int
	Offset        int
	Sort          string
	SortOrder     string
}
