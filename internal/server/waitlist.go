package server

import (
	"net/http"

	"causeconnect/pkg/types"
)

type joinWaitlistRequest struct {
	CauseID      string `json:"causeId" form:"causeId" validate:"required"`
	FullName     string `json:"fullName" form:"fullName" validate:"required"`
	Email        string `json:"email" form:"email" validate:"required,email"`
	Phone        string `json:"phone" form:"phone"`
	Organization string `json:"organization" form:"organization"`
	Message      string `json:"message" form:"message"`
	NotifyEmail  *bool  `json:"notifyEmail" form:"notifyEmail"`
	NotifySMS    bool   `json:"notifySms" form:"notifySms"`
}

type magicLinkRequest struct {
	Token string `json:"token" form:"token" validate:"required"`
}

type redeemRequest struct {
	Token        string `json:"token" form:"token" validate:"required"`
	FullName     string `json:"fullName" form:"fullName"`
	Email        string `json:"email" form:"email" validate:"omitempty,email"`
	Phone        string `json:"phone" form:"phone"`
	Organization string `json:"organization" form:"organization"`
	Address      string `json:"address" form:"address"`
	City         string `json:"city" form:"city"`
	State        string `json:"state" form:"state"`
	ZipCode      string `json:"zipCode" form:"zipCode"`
	Message      string `json:"message" form:"message"`
}

// shipping leaves blanks for the waitlist entry to fill in.
func (req redeemRequest) shipping() types.ShippingInfo {
	return types.ShippingInfo{
		FullName:     req.FullName,
		Email:        req.Email,
		Phone:        req.Phone,
		Organization: req.Organization,
		Address:      req.Address,
		City:         req.City,
		State:        req.State,
		ZipCode:      req.ZipCode,
		Message:      req.Message,
	}
}

type waitlistStatusRequest struct {
	Status string `json:"status" form:"status" validate:"required"`
}

func (s *Service) handleJoinWaitlist(w http.ResponseWriter, r *http.Request) {
	var req joinWaitlistRequest
	if err := s.decodeRequest(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	entry, err := s.Waitlist.Join(r.Context(), req.CauseID, currentUser(r), types.ContactInfo{
		FullName:     req.FullName,
		Email:        req.Email,
		Phone:        req.Phone,
		Organization: req.Organization,
		Message:      req.Message,
		NotifyEmail:  req.NotifyEmail,
		NotifySMS:    req.NotifySMS,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respond(w, http.StatusCreated, "Joined waitlist", entry)
}

func (s *Service) handleListWaitlist(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := types.WaitlistFilter{
		CauseID: q.Get("causeId"),
		UserID:  q.Get("userId"),
	}
	if status := q.Get("status"); status != "" {
		parsed, err := types.ParseWaitlistStatus(status)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		filter.Status = parsed
	}

	entries, err := s.Waitlist.List(r.Context(), filter)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respond(w, http.StatusOK, "", entries)
}

func (s *Service) handleWaitlistByCause(w http.ResponseWriter, r *http.Request) {
	entries, err := s.Waitlist.ByCause(r.Context(), r.PathValue("causeId"), currentUser(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respond(w, http.StatusOK, "", entries)
}

func (s *Service) handleWaitlistByUser(w http.ResponseWriter, r *http.Request) {
	entries, err := s.Waitlist.ByUser(r.Context(), r.PathValue("userId"), currentUser(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respond(w, http.StatusOK, "", entries)
}

func (s *Service) handleGetWaitlistEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := s.Waitlist.Get(r.Context(), r.PathValue("id"), currentUser(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respond(w, http.StatusOK, "", entry)
}

func (s *Service) handlePromoteWaitlist(w http.ResponseWriter, r *http.Request) {
	promotion, err := s.Waitlist.Promote(r.Context(), r.PathValue("id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	message := "Magic link sent"
	if !promotion.Notified {
		message = "Magic link issued but the email could not be sent"
	}
	s.respond(w, http.StatusOK, message, promotion)
}

func (s *Service) handleWaitlistStatus(w http.ResponseWriter, r *http.Request) {
	var req waitlistStatusRequest
	if err := s.decodeRequest(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	status, err := types.ParseWaitlistStatus(req.Status)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	entry, err := s.Waitlist.SetStatus(r.Context(), r.PathValue("id"), status)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respond(w, http.StatusOK, "Waitlist entry updated", entry)
}

func (s *Service) handleVerifyMagicLink(w http.ResponseWriter, r *http.Request) {
	var req magicLinkRequest
	if err := s.decodeRequest(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	details, err := s.Waitlist.VerifyMagicLink(r.Context(), req.Token)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respond(w, http.StatusOK, "Magic link is valid", details)
}

func (s *Service) handleMagicLinkDetails(w http.ResponseWriter, r *http.Request) {
	details, err := s.Waitlist.VerifyMagicLink(r.Context(), r.PathValue("token"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respond(w, http.StatusOK, "", details)
}

func (s *Service) handleRedeemMagicLink(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if err := s.decodeRequest(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	claim, err := s.Waitlist.Redeem(r.Context(), req.Token, req.shipping())
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respond(w, http.StatusCreated, "Tote claimed", claim)
}
