package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/ariefcatur/go-order-saga/internal/inventory"
	"github.com/go-chi/chi/v5"
)

type InventoryService interface {
	SaveInventory(ctx context.Context, in inventory.SaveInventory) (inventory.Inventory, error)
	Get(ctx context.Context, id string) (inventory.Inventory, error)
	Search(ctx context.Context, term string) ([]inventory.Inventory, error)
	History(ctx context.Context, id string) (inventory.History, error)
}

type InventoryHandler struct {
	Service InventoryService
}

func (h *InventoryHandler) Register(r chi.Router) {
	r.Post("/inventories", h.saveInventory)
	r.Get("/inventories", h.searchInventories)
	r.Get("/inventories/histories/{id}", h.inventoryHistory)
	r.Get("/inventories/{id}", h.getInventory)
}

func (h *InventoryHandler) saveInventory(w http.ResponseWriter, r *http.Request) {
	var req inventory.SaveInventory
	if !decode(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	inv, err := h.Service.SaveInventory(ctx, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

func (h *InventoryHandler) searchInventories(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	list, err := h.Service.Search(ctx, r.URL.Query().Get("searchTerm"))
	if err != nil {
		writeError(w, err)
		return
	}
	if list == nil {
		list = []inventory.Inventory{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *InventoryHandler) getInventory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !validUUID(w, id) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	inv, err := h.Service.Get(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (h *InventoryHandler) inventoryHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !validUUID(w, id) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	hist, err := h.Service.History(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, hist)
}
