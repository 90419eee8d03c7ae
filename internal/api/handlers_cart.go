package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/safar/storefront/internal/auth"
)

type addCartItemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1,max=999"`
}

type cartQuantityRequest struct {
	Quantity int `json:"quantity" validate:"gte=0,max=999"`
}

func (s *Server) handleGetCart(w http.ResponseWriter, r *http.Request, session auth.Session) {
	c, err := s.cart.Get(r.Context(), session)
	if err != nil {
		respondError(r.Context(), s.logg, w, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (s *Server) handleAddCartItem(w http.ResponseWriter, r *http.Request, session auth.Session) {
	var req addCartItemRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		respondError(r.Context(), s.logg, w, err)
		return
	}

	c, err := s.cart.AddItem(r.Context(), session, req.ProductID, req.Quantity)
	if err != nil {
		respondError(r.Context(), s.logg, w, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// handleSetCartQuantity sets the line quantity. Zero removes the line.
func (s *Server) handleSetCartQuantity(w http.ResponseWriter, r *http.Request, session auth.Session) {
	productID, err := uuidParam(r, "productId")
	if err != nil {
		respondError(r.Context(), s.logg, w, err)
		return
	}

	var req cartQuantityRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		respondError(r.Context(), s.logg, w, err)
		return
	}

	c, err := s.cart.SetQuantity(r.Context(), session, productID, req.Quantity)
	if err != nil {
		respondError(r.Context(), s.logg, w, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (s *Server) handleRemoveCartItem(w http.ResponseWriter, r *http.Request, session auth.Session) {
	productID, err := uuidParam(r, "productId")
	if err != nil {
		respondError(r.Context(), s.logg, w, err)
		return
	}

	c, err := s.cart.RemoveItem(r.Context(), session, productID)
	if err != nil {
		respondError(r.Context(), s.logg, w, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (s *Server) handleClearCart(w http.ResponseWriter, r *http.Request, session auth.Session) {
	if err := s.cart.Clear(r.Context(), session); err != nil {
		respondError(r.Context(), s.logg, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
