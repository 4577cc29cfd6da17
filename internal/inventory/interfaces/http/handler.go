package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	inventoryapp "energytrade-cloud/internal/inventory/application"
	inventory "energytrade-cloud/internal/inventory/domain"
)

// Handler provides inventory HTTP endpoints.
type Handler struct {
	service *inventoryapp.Service
}

// NewHandler constructs a handler.
func NewHandler(service *inventoryapp.Service) (*Handler, error) {
	if service == nil {
		return nil, errors.New("inventory handler: nil service")
	}
	return &Handler{service: service}, nil
}

type mutateRequest struct {
	ItemID   string  `json:"item_id"`
	Quantity float64 `json:"quantity"`
	Action   string  `json:"action"`
}

type mutateResponse struct {
	ItemID    string  `json:"item_id"`
	Remaining float64 `json:"remaining"`
}

// ServeHTTP handles POST/GET /api/v1/inventory.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handlePost(w, r)
	case http.MethodGet:
		h.handleGet(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handlePost(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body error", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var req mutateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	var remaining float64
	switch req.Action {
	case "restock":
		remaining, err = h.service.Restock(r.Context(), req.ItemID, req.Quantity)
	default:
		remaining, err = h.service.Reduce(r.Context(), req.ItemID, req.Quantity)
	}
	if err != nil {
		respondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(mutateResponse{ItemID: req.ItemID, Remaining: remaining})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	itemID := r.URL.Query().Get("item_id")
	if itemID == "" {
		http.Error(w, "item_id is required", http.StatusBadRequest)
		return
	}
	item, err := h.service.Get(r.Context(), itemID)
	if err != nil {
		respondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(item)
}

func respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, inventory.ErrItemNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, inventory.ErrInsufficientInventory):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, inventory.ErrInvalidQuantity):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
