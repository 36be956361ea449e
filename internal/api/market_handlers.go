package api

import (
	"net/http"

	"circlechain-wallet-go/internal/marketplace"
)

// listJSON writes items, replacing a nil slice with [].
func listJSON[T any](w http.ResponseWriter, items []T) {
	if items == nil {
		items = []T{}
	}
	writeJSON(w, http.StatusOK, items)
}

// =============================================================================
// PRODUCER
// =============================================================================

func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var body ProductBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	product, err := h.market.CreateProduct(r.Context(), actor(r), marketplace.ProductInput{
		Name:        body.Name,
		Description: body.Description,
		Category:    body.Category,
		Price:       body.Price,
		Weight:      body.Weight,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, product)
}

func (h *Handler) ListMyProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.market.ListProducerProducts(r.Context(), actor(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	listJSON(w, products)
}

func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathId(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var body ProductUpdateBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	product, err := h.market.UpdateProduct(r.Context(), actor(r), id, body.toUpdate())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathId(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.market.DeleteProduct(r.Context(), actor(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Product deleted successfully"})
}

func (h *Handler) ListAvailableMaterials(w http.ResponseWriter, r *http.Request) {
	materials, err := h.market.ListAvailableMaterials(r.Context(), actor(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	listJSON(w, materials)
}

func (h *Handler) PurchaseMaterial(w http.ResponseWriter, r *http.Request) {
	var body MaterialPurchaseBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	purchase, err := h.market.PurchaseMaterial(r.Context(), actor(r), body.MaterialId, body.Quantity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, purchase)
}

// =============================================================================
// CONSUMER
// =============================================================================

func (h *Handler) BrowseProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.market.BrowseProducts(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	listJSON(w, products)
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var body OrderBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	if body.Quantity == 0 {
		body.Quantity = 1
	}
	order, err := h.market.CreateOrder(r.Context(), actor(r), body.ProductId, body.Quantity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.market.ListOrders(r.Context(), actor(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	listJSON(w, orders)
}

func (h *Handler) SubmitRecycleRequest(w http.ResponseWriter, r *http.Request) {
	var body RecycleBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	req, err := h.market.SubmitRecycleRequest(r.Context(), actor(r), marketplace.RecycleInput{
		ItemDescription: body.ItemDescription,
		Weight:          body.Weight,
		Category:        body.Category,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

func (h *Handler) ListRecycleRequests(w http.ResponseWriter, r *http.Request) {
	requests, err := h.market.ListRecycleRequests(r.Context(), actor(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	listJSON(w, requests)
}

// =============================================================================
// RECYCLER
// =============================================================================

func (h *Handler) ListSubmittedRequests(w http.ResponseWriter, r *http.Request) {
	requests, err := h.market.ListSubmittedRequests(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	listJSON(w, requests)
}

func (h *Handler) AcceptRequest(w http.ResponseWriter, r *http.Request) {
	id, err := pathId(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	req, err := h.market.AcceptRequest(r.Context(), actor(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (h *Handler) CompleteRequest(w http.ResponseWriter, r *http.Request) {
	id, err := pathId(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	req, err := h.market.CompleteRequest(r.Context(), actor(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (h *Handler) ListMyRequests(w http.ResponseWriter, r *http.Request) {
	requests, err := h.market.ListMyRequests(r.Context(), actor(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	listJSON(w, requests)
}

func (h *Handler) CreateRawMaterial(w http.ResponseWriter, r *http.Request) {
	var body MaterialBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	material, err := h.market.CreateRawMaterial(r.Context(), actor(r), marketplace.MaterialInput{
		Name:             body.Name,
		MaterialType:     body.MaterialType,
		Quantity:         body.Quantity,
		PricePerKg:       body.PricePerKg,
		RecycleRequestId: body.RecycleRequestId,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, material)
}

func (h *Handler) ListMyMaterials(w http.ResponseWriter, r *http.Request) {
	materials, err := h.market.ListMyMaterials(r.Context(), actor(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	listJSON(w, materials)
}

// =============================================================================
// ADMIN
// =============================================================================

func (h *Handler) ImpactSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.market.ImpactSummary(r.Context(), actor(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
