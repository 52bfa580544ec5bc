package handlers

import (
	"net/http"

	"flightbooking/internal/auth"
	"flightbooking/internal/models"
	"flightbooking/internal/services"
)

type registerRequest struct {
	UserType string `json:"user_type" validate:"required,oneof=company passenger"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Username string `json:"username" validate:"required,min=3,max=50"`
	Password string `json:"password" validate:"required,min=8"`
	Name     string `json:"name" validate:"required,min=2,max=255"`
	Tel      string `json:"tel" validate:"required,phone,max=50"`
	Bio      string `json:"bio" validate:"max=1000"`
	Address  string `json:"address" validate:"max=500"`
	Location string `json:"location" validate:"max=255"`
}

func (req *registerRequest) normalize() {
	for _, field := range []*string{&req.Email, &req.Username, &req.Name, &req.Tel, &req.Bio, &req.Address, &req.Location} {
		trimPtr(field)
	}
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.decode(w, r, &req) {
		return
	}
	profile, err := h.accounts.Register(r.Context(), services.RegisterInput{
		UserType: req.UserType,
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
		Name:     req.Name,
		Tel:      req.Tel,
		Bio:      req.Bio,
		Address:  req.Address,
		Location: req.Location,
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondWithToken(w, http.StatusCreated, "Registration successful", profile)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (req *loginRequest) normalize() {
	trimPtr(&req.Email)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}
	profile, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondWithToken(w, http.StatusOK, "Login successful", profile)
}

func (h *Handler) respondWithToken(w http.ResponseWriter, status int, message string, profile models.Profile) {
	token, err := auth.GenerateToken(h.cfg.JWTSecret, profile.ID, profile.UserType, h.cfg.TokenTTL)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}
	respondSuccess(w, status, message, map[string]any{
		"token": token,
		"user":  newProfileView(profile),
	})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromRequest(w, r)
	if !ok {
		return
	}
	if err := h.accounts.Logout(r.Context(), user.ID); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, "Logged out successfully", nil)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromRequest(w, r)
	if !ok {
		return
	}
	profile, err := h.accounts.Profile(r.Context(), user.ID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, "Profile retrieved", newProfileView(profile))
}
