package api

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/safar/storefront/internal/auth"
	"github.com/safar/storefront/internal/catalog"
	"github.com/safar/storefront/internal/store"
	"github.com/shopspring/decimal"
)

type createProductRequest struct {
	Name        string          `json:"name" validate:"required,max=255"`
	Description string          `json:"description" validate:"max=5000"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity" validate:"gte=0,max=1000000"`
	ImageURL    string          `json:"image_url" validate:"omitempty,max=2048"`
}

type updateProductRequest struct {
	Name        *string          `json:"name" validate:"omitempty,max=255"`
	Description *string          `json:"description" validate:"omitempty,max=5000"`
	Price       *decimal.Decimal `json:"price"`
	Quantity    *int             `json:"quantity" validate:"omitempty,gte=0,max=1000000"`
	ImageURL    *string          `json:"image_url" validate:"omitempty,max=2048"`
	Version     *int             `json:"version" validate:"omitempty,min=1,max=2147483647"`
}

type adjustStockRequest struct {
	Delta  int    `json:"delta" validate:"required,min=-1000000,max=1000000"`
	Reason string `json:"reason" validate:"max=255"`
}

func pageParams(r *http.Request) (int, int, error) {
	page, err := queryInt(r, "page", 1, 1, 1_000_000)
	if err != nil {
		return 0, 0, err
	}
	pageSize, err := queryInt(r, "page_size", store.DefaultPageSize, 1, store.MaxPageSize)
	if err != nil {
		return 0, 0, err
	}
	return page, pageSize, nil
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	page, pageSize, err := pageParams(r)
	if err != nil {
		respondError(r.Context(), s.logg, w, err)
		return
	}

	result, err := s.catalog.List(r.Context(), page, pageSize)
	if err != nil {
		respondError(r.Context(), s.logg, w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		respondError(r.Context(), s.logg, w, err)
		return
	}

	product, err := s.catalog.Get(r.Context(), id)
	if err != nil {
		respondError(r.Context(), s.logg, w, err)
		return
	}
	respondJSON(w, http.StatusOK, product)
}

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request, session auth.Session) {
	var req createProductRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		respondError(r.Context(), s.logg, w, err)
		return
	}

	product, err := s.catalog.Create(r.Context(), session, catalog.CreateInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Quantity:    req.Quantity,
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		respondError(r.Context(), s.logg, w, err)
		return
	}
	respondJSON(w, http.StatusCreated, product)
}

func (s *Server) handleUpdateProduct(w http.ResponseWriter, r *http.Request, session auth.Session) {
	id, err := uuidParam(r, "id")
	if err != nil {
		respondError(r.Context(), s.logg, w, err)
		return
	}

	var req updateProductRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		respondError(r.Context(), s.logg, w, err)
		return
	}

	product, err := s.catalog.Update(r.Context(), session, id, catalog.UpdateInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Quantity:    req.Quantity,
		ImageURL:    req.ImageURL,
		Version:     req.Version,
	})
	if err != nil {
		respondError(r.Context(), s.logg, w, err)
		return
	}
	respondJSON(w, http.StatusOK, product)
}

func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request, session auth.Session) {
	id, err := uuidParam(r, "id")
	if err != nil {
		respondError(r.Context(), s.logg, w, err)
		return
	}

	if err := s.catalog.Delete(r.Context(), session, id); err != nil {
		respondError(r.Context(), s.logg, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAdjustStock(w http.ResponseWriter, r *http.Request, session auth.Session) {
	id, err := uuidParam(r, "id")
	if err != nil {
		respondError(r.Context(), s.logg, w, err)
		return
	}

	var req adjustStockRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		respondError(r.Context(), s.logg, w, err)
		return
	}

	movement, err := s.inventory.Adjust(r.Context(), session, id, req.Delta, req.Reason)
	if err != nil {
		respondError(r.Context(), s.logg, w, err)
		return
	}
	respondJSON(w, http.StatusCreated, movement)
}

// handleListStockTransactions lists recent movements, filtered by
// ?product_id= or, when ?order_id= is given, the movements of one order.
func (s *Server) handleListStockTransactions(w http.ResponseWriter, r *http.Request, session auth.Session) {
	if raw := strings.TrimSpace(r.URL.Query().Get("order_id")); raw != "" {
		orderID, err := uuid.Parse(raw)
		if err != nil {
			respondError(r.Context(), s.logg, w, badRequest("invalid order_id", err))
			return
		}
		txs, err := s.inventory.OrderTransactions(r.Context(), session, orderID)
		if err != nil {
			respondError(r.Context(), s.logg, w, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"items": txs})
		return
	}

	var productID *uuid.UUID
	if raw := strings.TrimSpace(r.URL.Query().Get("product_id")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			respondError(r.Context(), s.logg, w, badRequest("invalid product_id", err))
			return
		}
		productID = &id
	}
	limit, err := queryInt(r, "limit", store.DefaultPageSize, 1, store.MaxPageSize)
	if err != nil {
		respondError(r.Context(), s.logg, w, err)
		return
	}

	txs, err := s.inventory.ListTransactions(r.Context(), session, productID, limit)
	if err != nil {
		respondError(r.Context(), s.logg, w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"items": txs})
}

func (s *Server) handleLowStock(w http.ResponseWriter, r *http.Request, session auth.Session) {
	items, err := s.inventory.LowStock(r.Context(), session, r.URL.Query().Get("q"))
	if err != nil {
		respondError(r.Context(), s.logg, w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}
