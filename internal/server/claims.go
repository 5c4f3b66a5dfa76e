package server

import (
	"net/http"
	"strconv"
	"time"

	"causeconnect/internal/service"
	"causeconnect/pkg/types"
)

type shippingRequest struct {
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

func (req shippingRequest) info() types.ShippingInfo {
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

type claimStatusRequest struct {
	Status         string `json:"status" form:"status" validate:"required"`
	TrackingNumber string `json:"trackingNumber" form:"trackingNumber"`
	TrackingURL    string `json:"trackingUrl" form:"trackingUrl"`
	Note           string `json:"note" form:"note"`
}

type proofRequest struct {
	Images      []string `json:"images" form:"imageUrls"`
	Description string   `json:"description" form:"description"`
}

const dateLayout = "2006-01-02"

func claimFilterFrom(r *http.Request) (types.ClaimFilter, error) {
	q := r.URL.Query()

	filter := types.ClaimFilter{
		CauseID: q.Get("causeId"),
		Query:   q.Get("q"),
	}
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))

	if status := q.Get("status"); status != "" && status != "all" {
		parsed, err := types.ParseClaimStatus(status)
		if err != nil {
			return filter, err
		}
		filter.Status = parsed
	}
	if from := q.Get("from"); from != "" {
		t, err := time.Parse(dateLayout, from)
		if err != nil {
			return filter, types.ValidationError("from must be a YYYY-MM-DD date")
		}
		filter.From = &t
	}
	if to := q.Get("to"); to != "" {
		t, err := time.Parse(dateLayout, to)
		if err != nil {
			return filter, types.ValidationError("to must be a YYYY-MM-DD date")
		}
		// inclusive of the whole day
		t = t.AddDate(0, 0, 1)
		filter.To = &t
	}

	return filter, nil
}

func (s *Service) handleCreateClaim(w http.ResponseWriter, r *http.Request) {
	var req shippingRequest
	if err := s.decodeRequest(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	claim, err := s.Claims.Create(r.Context(), r.PathValue("id"), currentUser(r), req.info())
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respond(w, http.StatusCreated, "Claim submitted", claim)
}

func (s *Service) handleListClaims(w http.ResponseWriter, r *http.Request) {
	filter, err := claimFilterFrom(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	claims, pagination, err := s.Claims.List(r.Context(), filter)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respond(w, http.StatusOK, "", paged[*types.Claim]{Items: claims, Pagination: pagination})
}

// handleAllClaims returns the largest page the store allows, without the
// pagination wrapper.
func (s *Service) handleAllClaims(w http.ResponseWriter, r *http.Request) {
	if err := service.Authorize(currentUser(r), types.RoleAdmin); err != nil {
		s.respondError(w, r, err)
		return
	}

	filter, err := claimFilterFrom(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	filter.Page, filter.Limit = 1, 100

	claims, _, err := s.Claims.List(r.Context(), filter)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respond(w, http.StatusOK, "", claims)
}

func (s *Service) handleMyClaims(w http.ResponseWriter, r *http.Request) {
	claims, err := s.Claims.Mine(r.Context(), currentUser(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respond(w, http.StatusOK, "", claims)
}

func (s *Service) handleUserClaims(w http.ResponseWriter, r *http.Request) {
	claims, err := s.Claims.ForUser(r.Context(), r.PathValue("userId"), currentUser(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respond(w, http.StatusOK, "", claims)
}

func (s *Service) handleGetClaim(w http.ResponseWriter, r *http.Request) {
	claim, err := s.Claims.Get(r.Context(), r.PathValue("id"), currentUser(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respond(w, http.StatusOK, "", claim)
}

func (s *Service) handleClaimStatus(w http.ResponseWriter, r *http.Request) {
	var req claimStatusRequest
	if err := s.decodeRequest(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	status, err := types.ParseClaimStatus(req.Status)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	claim, err := s.Claims.UpdateStatus(r.Context(), r.PathValue("id"), types.ClaimStatusUpdate{
		Status:         status,
		TrackingNumber: req.TrackingNumber,
		TrackingURL:    req.TrackingURL,
		Note:           req.Note,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respond(w, http.StatusOK, "Claim updated", claim)
}

func (s *Service) handleVerifyClaim(w http.ResponseWriter, r *http.Request) {
	claim, err := s.Claims.Verify(r.Context(), r.PathValue("id"), currentUser(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respond(w, http.StatusOK, "Claim verified", claim)
}

func (s *Service) handleClaimNote(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if err := s.decodeRequest(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	claim, err := s.Claims.AddNote(r.Context(), r.PathValue("id"), currentUser(r), req.Text)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respond(w, http.StatusCreated, "Note added", claim)
}

// handleClaimProof accepts "images" files, image URLs, or both.
func (s *Service) handleClaimProof(w http.ResponseWriter, r *http.Request) {
	var req proofRequest
	if err := s.decodeRequest(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	uploaded, err := s.uploadFormFiles(r.Context(), r, "images", "proofs")
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	claim, err := s.Claims.SubmitProof(r.Context(), r.PathValue("id"), currentUser(r), append(req.Images, uploaded...), req.Description)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respond(w, http.StatusOK, "Proof submitted", claim)
}
