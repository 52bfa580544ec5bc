package handlers

import (
	"encoding/json"
	"net/http"

	"flightbooking/internal/services"
	"flightbooking/internal/validator"
)

type updateProfileRequest struct {
	Name     *string     `json:"name" validate:"omitempty,min=2,max=255"`
	Tel      *string     `json:"tel" validate:"omitempty,phone,max=50"`
	Password *string     `json:"password" validate:"omitempty,min=8"`
	Bio      *string     `json:"bio" validate:"omitempty,max=1000"`
	Address  *string     `json:"address" validate:"omitempty,max=500"`
	Location *string     `json:"location" validate:"omitempty,max=255"`
	TopUp    json.Number `json:"top_up" validate:"omitempty,amount"`
}

// Passwords are taken as sent.
func (req *updateProfileRequest) normalize() {
	for _, field := range []*string{req.Name, req.Tel, req.Bio, req.Address, req.Location} {
		trimPtr(field)
	}
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromRequest(w, r)
	if !ok {
		return
	}
	var req updateProfileRequest
	if !h.decode(w, r, &req) {
		return
	}
	input := services.UpdateProfileInput{
		UserID:   user.ID,
		UserType: user.Type,
		Name:     req.Name,
		Tel:      req.Tel,
		Password: req.Password,
		Bio:      req.Bio,
		Address:  req.Address,
		Location: req.Location,
	}
	if req.TopUp != "" {
		amount, err := parseAmountMinor(req.TopUp)
		if err != nil {
			fields := validator.FieldErrors{}
			fields.Add("top_up", "top up must be a positive amount")
			respondValidation(w, fields)
			return
		}
		input.TopUp = amount
	}
	profile, err := h.accounts.UpdateProfile(r.Context(), input)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, "Profile updated successfully", newProfileView(profile))
}

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromRequest(w, r)
	if !ok {
		return
	}
	limit := clamp(parseInt(r.URL.Query().Get("limit"), 50), 1, 200)
	offset := parseInt(r.URL.Query().Get("offset"), 0)
	entries, err := h.accounts.Transactions(r.Context(), user.ID, limit, offset)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, "Transactions retrieved", map[string]any{
		"transactions": newTransactionViews(entries),
		"limit":        limit,
		"offset":       offset,
	})
}
