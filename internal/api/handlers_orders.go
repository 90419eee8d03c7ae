package api

import (
	"net/http"
	"strings"

	"github.com/safar/storefront/internal/auth"
	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/store"
)

// checkoutRequest fields are optional; blanks are filled from the profile.
type checkoutRequest struct {
	FullName string `json:"full_name" validate:"max=200"`
	Phone    string `json:"phone" validate:"max=50"`
	Address  string `json:"address" validate:"max=500"`
}

type shippingRequest struct {
	TrackingNumber string `json:"tracking_number" validate:"max=100"`
	Notes          string `json:"notes" validate:"max=1000"`
}

type shipRequest struct {
	TrackingNumber string `json:"tracking_number" validate:"required,max=100"`
	Notes          string `json:"notes" validate:"max=1000"`
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request, session auth.Session) {
	var req checkoutRequest
	if r.ContentLength != 0 {
		if err := decodeJSONBody(w, r, &req); err != nil {
			respondError(r.Context(), s.logg, w, err)
			return
		}
	}

	order, err := s.orders.Checkout(r.Context(), session, models.ShippingInfo{
		FullName: req.FullName,
		Phone:    req.Phone,
		Address:  req.Address,
	})
	if err != nil {
		respondError(r.Context(), s.logg, w, err)
		return
	}
	respondJSON(w, http.StatusCreated, order)
}

func (s *Server) handleListMyOrders(w http.ResponseWriter, r *http.Request, session auth.Session) {
	limit, err := queryInt(r, "limit", store.DefaultPageSize, 1, store.MaxPageSize)
	if err != nil {
		respondError(r.Context(), s.logg, w, err)
		return
	}

	page, err := s.orders.ListMine(r.Context(), session, r.URL.Query().Get("cursor"), limit)
	if err != nil {
		respondError(r.Context(), s.logg, w, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request, session auth.Session) {
	id, err := uuidParam(r, "id")
	if err != nil {
		respondError(r.Context(), s.logg, w, err)
		return
	}

	order, err := s.orders.Get(r.Context(), session, id)
	if err != nil {
		respondError(r.Context(), s.logg, w, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// handleListOrders returns active orders, or a single status when ?status=
// is given.
func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request, session auth.Session) {
	var (
		list []models.Order
		err  error
	)
	if status := strings.TrimSpace(r.URL.Query().Get("status")); status != "" {
		list, err = s.orders.ListByStatus(r.Context(), session, models.OrderStatus(status))
	} else {
		list, err = s.orders.ListActive(r.Context(), session)
	}
	if err != nil {
		respondError(r.Context(), s.logg, w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"items": list})
}

func (s *Server) handleListPending(w http.ResponseWriter, r *http.Request, session auth.Session) {
	list, err := s.fulfillment.ListPending(r.Context(), session)
	if err != nil {
		respondError(r.Context(), s.logg, w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"items": list})
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request, session auth.Session) {
	orderID, err := uuidParam(r, "id")
	if err != nil {
		respondError(r.Context(), s.logg, w, err)
		return
	}

	rec, err := s.fulfillment.Claim(r.Context(), session, orderID)
	if err != nil {
		respondError(r.Context(), s.logg, w, err)
		return
	}
	respondJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleMyPicking(w http.ResponseWriter, r *http.Request, session auth.Session) {
	list, err := s.fulfillment.MyPicking(r.Context(), session)
	if err != nil {
		respondError(r.Context(), s.logg, w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"items": list})
}

func (s *Server) handleListPicking(w http.ResponseWriter, r *http.Request, session auth.Session) {
	list, err := s.fulfillment.ListPicking(r.Context(), session)
	if err != nil {
		respondError(r.Context(), s.logg, w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"items": list})
}

func (s *Server) handleShip(w http.ResponseWriter, r *http.Request, session auth.Session) {
	pickingID, err := uuidParam(r, "id")
	if err != nil {
		respondError(r.Context(), s.logg, w, err)
		return
	}

	var req shipRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		respondError(r.Context(), s.logg, w, err)
		return
	}

	rec, err := s.fulfillment.Ship(r.Context(), session, pickingID, req.TrackingNumber, req.Notes)
	if err != nil {
		respondError(r.Context(), s.logg, w, err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleUpdateShipping(w http.ResponseWriter, r *http.Request, session auth.Session) {
	pickingID, err := uuidParam(r, "id")
	if err != nil {
		respondError(r.Context(), s.logg, w, err)
		return
	}

	var req shippingRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		respondError(r.Context(), s.logg, w, err)
		return
	}

	rec, err := s.fulfillment.UpdateShipping(r.Context(), session, pickingID, req.TrackingNumber, req.Notes)
	if err != nil {
		respondError(r.Context(), s.logg, w, err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeliver(w http.ResponseWriter, r *http.Request, session auth.Session) {
	pickingID, err := uuidParam(r, "id")
	if err != nil {
		respondError(r.Context(), s.logg, w, err)
		return
	}

	rec, err := s.fulfillment.Deliver(r.Context(), session, pickingID)
	if err != nil {
		respondError(r.Context(), s.logg, w, err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}
