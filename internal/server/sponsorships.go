package server

import (
	"net/http"

	"causeconnect/internal/service"
	"causeconnect/pkg/types"
)

type sponsorRequest struct {
	Name     string `json:"name" form:"name" validate:"required"`
	Email    string `json:"email" form:"email" validate:"omitempty,email"`
	Logo     string `json:"logo" form:"logo"`
	Amount   int64  `json:"amount" form:"amount" validate:"gte=0"`
	Quantity int    `json:"quantity" form:"quantity" validate:"gte=0"`
	OrderID  string `json:"orderId" form:"orderId"`
}

func (req sponsorRequest) input(user *types.User) types.SponsorInput {
	in := types.SponsorInput{
		Name:     req.Name,
		Email:    req.Email,
		Logo:     req.Logo,
		Amount:   req.Amount,
		Quantity: req.Quantity,
	}
	if user != nil {
		in.UserID = &user.ID
		if in.Email == "" {
			in.Email = user.Email
		}
	}
	return in
}

// decodeSponsor reads a sponsorship request, storing an uploaded "logo"
// file when one is attached. Anonymous callers must upload the file; a
// linked logo URL is only taken from signed in users.
func (s *Service) decodeSponsor(w http.ResponseWriter, r *http.Request) (*sponsorRequest, error) {
	var req sponsorRequest
	if err := s.decodeRequest(w, r, &req); err != nil {
		return nil, err
	}

	logo, err := s.uploadFormFile(r.Context(), r, "logo", "logos")
	if err != nil {
		return nil, err
	}
	switch {
	case logo != "":
		req.Logo = logo
	case req.Logo != "" && currentUser(r) == nil:
		return nil, types.ValidationError("logo must be uploaded as a file")
	}

	return &req, nil
}

func (s *Service) handleSponsorCause(w http.ResponseWriter, r *http.Request) {
	req, err := s.decodeSponsor(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	user := currentUser(r)
	cause, sponsor, err := s.Sponsorships.Request(r.Context(), r.PathValue("id"), req.input(user))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respond(w, http.StatusCreated, "Sponsorship request submitted", map[string]any{
		"cause":   service.CauseView(cause, user),
		"sponsor": sponsor,
	})
}

func (s *Service) handleSponsorFromOrder(w http.ResponseWriter, r *http.Request) {
	req, err := s.decodeSponsor(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if req.OrderID == "" {
		s.respondError(w, r, types.ValidationError("orderId is required"))
		return
	}

	user := currentUser(r)
	cause, sponsor, err := s.Payments.SponsorFromOrder(r.Context(), r.PathValue("id"), req.OrderID, req.input(user), user)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respond(w, http.StatusCreated, "Sponsorship recorded", map[string]any{
		"cause":   service.CauseView(cause, user),
		"sponsor": sponsor,
	})
}

func (s *Service) handlePendingSponsorships(w http.ResponseWriter, r *http.Request) {
	pending, err := s.Sponsorships.Pending(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respond(w, http.StatusOK, "", pending)
}

func (s *Service) handleApproveSponsorship(w http.ResponseWriter, r *http.Request) {
	cause, err := s.Sponsorships.Approve(r.Context(), r.PathValue("causeId"), r.PathValue("sponsorId"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respond(w, http.StatusOK, "Sponsorship approved", cause)
}

func (s *Service) handleRejectSponsorship(w http.ResponseWriter, r *http.Request) {
	var req reasonRequest
	if err := s.decodeRequest(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	cause, err := s.Sponsorships.Reject(r.Context(), r.PathValue("causeId"), r.PathValue("sponsorId"), req.Reason)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respond(w, http.StatusOK, "Sponsorship rejected", cause)
}
