package api

import (
	"net/http"

	"github.com/safar/storefront/internal/auth"
	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/users"
)

type registerRequest struct {
	Email           string `json:"email" validate:"required,email,max=255"`
	Password        string `json:"password" validate:"required"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
	FirstName       string `json:"first_name" validate:"max=100"`
	LastName        string `json:"last_name" validate:"max=100"`
	Phone           string `json:"phone" validate:"max=50"`
	Address         string `json:"address" validate:"max=500"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	AccessToken  string `json:"access_token" validate:"required"`
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type authResponse struct {
	*auth.Tokens
	Session *auth.Session `json:"session"`
}

type profileRequest struct {
	FirstName  *string `json:"first_name" validate:"omitempty,max=100"`
	LastName   *string `json:"last_name" validate:"omitempty,max=100"`
	Phone      *string `json:"phone" validate:"omitempty,max=50"`
	Address    *string `json:"address" validate:"omitempty,max=500"`
	EmployeeID *string `json:"employee_id" validate:"omitempty,max=50"`
	Department *string `json:"department" validate:"omitempty,max=100"`
	Position   *string `json:"position" validate:"omitempty,max=100"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		respondError(r.Context(), s.logg, w, err)
		return
	}

	user, err := s.auth.Register(r.Context(), auth.RegisterInput{
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Phone:           req.Phone,
		Address:         req.Address,
	})
	if err != nil {
		respondError(r.Context(), s.logg, w, err)
		return
	}

	respondJSON(w, http.StatusCreated, user)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		respondError(r.Context(), s.logg, w, err)
		return
	}

	tokens, session, err := s.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respondError(r.Context(), s.logg, w, err)
		return
	}

	respondJSON(w, http.StatusOK, authResponse{Tokens: tokens, Session: session})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		respondError(r.Context(), s.logg, w, err)
		return
	}

	tokens, session, err := s.auth.Refresh(r.Context(), req.AccessToken, req.RefreshToken)
	if err != nil {
		respondError(r.Context(), s.logg, w, err)
		return
	}

	respondJSON(w, http.StatusOK, authResponse{Tokens: tokens, Session: session})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request, session auth.Session) {
	if err := s.auth.Logout(r.Context(), session); err != nil {
		respondError(r.Context(), s.logg, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request, session auth.Session) {
	user, err := s.users.GetProfile(r.Context(), session)
	if err != nil {
		respondError(r.Context(), s.logg, w, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request, session auth.Session) {
	var req profileRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		respondError(r.Context(), s.logg, w, err)
		return
	}

	user, err := s.users.UpdateProfile(r.Context(), session, users.ProfileInput{
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Phone:      req.Phone,
		Address:    req.Address,
		EmployeeID: req.EmployeeID,
		Department: req.Department,
		Position:   req.Position,
	})
	if err != nil {
		respondError(r.Context(), s.logg, w, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

type roleRequest struct {
	Role models.Role `json:"role" validate:"required,oneof=customer staff admin"`
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request, session auth.Session) {
	page, pageSize, err := pageParams(r)
	if err != nil {
		respondError(r.Context(), s.logg, w, err)
		return
	}

	result, err := s.users.ListUsers(r.Context(), session, page, pageSize)
	if err != nil {
		respondError(r.Context(), s.logg, w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleChangeRole(w http.ResponseWriter, r *http.Request, session auth.Session) {
	userID, err := uuidParam(r, "id")
	if err != nil {
		respondError(r.Context(), s.logg, w, err)
		return
	}

	var req roleRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		respondError(r.Context(), s.logg, w, err)
		return
	}

	user, err := s.users.ChangeRole(r.Context(), session, userID, req.Role)
	if err != nil {
		respondError(r.Context(), s.logg, w, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}
