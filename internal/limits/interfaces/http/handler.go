package http

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"time"

	limitsapp "energytrade-cloud/internal/limits/application"
)

// Handler provides trading-limit validation endpoints.
type Handler struct {
	validator *limitsapp.Validator
}

// NewHandler constructs a handler.
func NewHandler(validator *limitsapp.Validator) (*Handler, error) {
	if validator == nil {
		return nil, errors.New("limits handler: nil validator")
	}
	return &Handler{validator: validator}, nil
}

type validateRequest struct {
	Side          string  `json:"side"`
	PartyID       string  `json:"party_id"`
	QuantityKWh   float64 `json:"quantity_kwh"`
	Date          string  `json:"date"`
	StartHour     int     `json:"start_hour"`
	DurationHours int     `json:"duration_hours"`
}

// validateResponse mirrors the validator result. Infinite limits (checks
// disabled by configuration) are omitted rather than sent as +Inf, which
// encoding/json rejects.
type validateResponse struct {
	Allowed      bool     `json:"allowed"`
	Limit        *float64 `json:"limit_kwh,omitempty"`
	CurrentUsage float64  `json:"current_usage_kwh"`
	Remaining    *float64 `json:"remaining_kwh,omitempty"`
	Reason       string   `json:"reason,omitempty"`
}

func toResponse(result limitsapp.Result) validateResponse {
	resp := validateResponse{
		Allowed:      result.Allowed,
		CurrentUsage: result.CurrentUsage,
		Reason:       result.Reason,
	}
	if !math.IsInf(result.Limit, 1) {
		resp.Limit = &result.Limit
	}
	if !math.IsInf(result.Remaining, 1) {
		resp.Remaining = &result.Remaining
	}
	return resp
}

// ServeHTTP handles POST /api/v1/limits/validate.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body error", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var req validateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	var result limitsapp.Result
	switch req.Side {
	case "seller":
		result, err = h.validator.ValidateSellerLimit(r.Context(), req.PartyID, req.QuantityKWh, date, req.StartHour, req.DurationHours)
	case "buyer":
		result, err = h.validator.ValidateBuyerLimit(r.Context(), req.PartyID, req.QuantityKWh, date, req.StartHour, req.DurationHours)
	default:
		http.Error(w, "side must be seller or buyer", http.StatusBadRequest)
		return
	}
	if err != nil {
		http.Error(w, "limit check error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(toResponse(result))
}
