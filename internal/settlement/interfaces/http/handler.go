package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	settlementapp "energytrade-cloud/internal/settlement/application"
	settlement "energytrade-cloud/internal/settlement/domain"
)

// Handler provides settlement HTTP endpoints.
type Handler struct {
	store  *settlementapp.Store
	poller *settlementapp.Poller
}

// NewHandler constructs a handler.
func NewHandler(store *settlementapp.Store, poller *settlementapp.Poller) (*Handler, error) {
	if store == nil {
		return nil, errors.New("settlement handler: nil store")
	}
	if poller == nil {
		return nil, errors.New("settlement handler: nil poller")
	}
	return &Handler{store: store, poller: poller}, nil
}

// ServeHTTP routes /api/v1/settlements and its subpaths.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case strings.HasSuffix(r.URL.Path, "/refresh"):
		h.handleRefresh(w, r)
	case strings.HasSuffix(r.URL.Path, "/poll"):
		h.handlePoll(w, r)
	case r.Method == http.MethodPost:
		h.handleCreate(w, r)
	case r.Method == http.MethodGet:
		h.handleGet(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

type createRequest struct {
	TransactionID          string  `json:"transaction_id"`
	OrderItemID            string  `json:"order_item_id"`
	Role                   string  `json:"role"`
	ContractedQuantity     float64 `json:"contracted_quantity_kwh"`
	CounterpartyPlatformID string  `json:"counterparty_platform_id"`
	CounterpartyDiscomID   string  `json:"counterparty_discom_id"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body error", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var req createRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	created, err := h.store.CreateSettlement(r.Context(), settlementapp.CreateParams{
		TransactionID:          req.TransactionID,
		OrderItemID:            req.OrderItemID,
		Role:                   settlement.Role(req.Role),
		ContractedQuantity:     req.ContractedQuantity,
		CounterpartyPlatformID: req.CounterpartyPlatformID,
		CounterpartyDiscomID:   req.CounterpartyDiscomID,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(created)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	transactionID := r.URL.Query().Get("transaction_id")
	if transactionID == "" {
		http.Error(w, "transaction_id is required", http.StatusBadRequest)
		return
	}
	legs, err := h.store.GetByTransaction(r.Context(), transactionID)
	if err != nil {
		respondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(legs)
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	transactionID := r.URL.Query().Get("transaction_id")
	if transactionID == "" {
		http.Error(w, "transaction_id is required", http.StatusBadRequest)
		return
	}
	legs, err := h.poller.RefreshSettlement(r.Context(), transactionID)
	if err != nil {
		respondError(w, err)
		return
	}
	if legs == nil {
		http.Error(w, "no ledger data for transaction", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(legs)
}

func (h *Handler) handlePoll(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		summary := h.poller.PollOnce(r.Context())
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(summary)
	case http.MethodGet:
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(h.poller.GetPollingStatus())
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, settlement.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, settlement.ErrEmptyTransactionID),
		errors.Is(err, settlement.ErrInvalidRole),
		errors.Is(err, settlement.ErrInvalidQuantity):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
