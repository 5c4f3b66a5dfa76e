package server

import (
	"net/http"
	"strconv"

	"causeconnect/pkg/types"
)

type causeRequest struct {
	Title       string `json:"title" form:"title" validate:"required"`
	Description string `json:"description" form:"description" validate:"required"`
	Story       string `json:"story" form:"story"`
	Impact      string `json:"impact" form:"impact"`
	Timeline    string `json:"timeline" form:"timeline"`
	ImageURL    string `json:"imageUrl" form:"imageUrl"`
	Category    string `json:"category" form:"category" validate:"required"`
	Goal        int64  `json:"goal" form:"goal" validate:"gt=0"`
}

func (req causeRequest) input() types.CauseInput {
	return types.CauseInput{
		Title:       req.Title,
		Description: req.Description,
		Story:       req.Story,
		Impact:      req.Impact,
		Timeline:    req.Timeline,
		ImageURL:    req.ImageURL,
		Category:    req.Category,
		Goal:        req.Goal,
	}
}

type reasonRequest struct {
	Reason string `json:"reason" form:"reason"`
}

type reviewRequest struct {
	Action string `json:"action" form:"action" validate:"required,oneof=approve reject"`
	Reason string `json:"reason" form:"reason"`
}

type commentRequest struct {
	Text string `json:"text" form:"text" validate:"required"`
}

func causeFilterFrom(r *http.Request) (types.CauseFilter, error) {
	q := r.URL.Query()

	var filter types.CauseFilter
	if status := q.Get("status"); status != "" {
		filter.Status = types.CauseStatus(status)
		if !filter.Status.Valid() {
			return filter, types.ValidationError("invalid cause status %q", status)
		}
	}
	if online := q.Get("online"); online != "" {
		v, err := strconv.ParseBool(online)
		if err != nil {
			return filter, types.ValidationError("online must be true or false")
		}
		filter.OnlineOnly = v
	}
	filter.ClaimedBy = q.Get("claimedBy")
	filter.CreatedBy = q.Get("createdBy")
	filter.SponsorUserID = q.Get("sponsorUserId")

	return filter, nil
}

func (s *Service) handleListCauses(w http.ResponseWriter, r *http.Request) {
	filter, err := causeFilterFrom(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	causes, err := s.Causes.List(r.Context(), filter, currentUser(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respond(w, http.StatusOK, "", causes)
}

func (s *Service) handleGetCause(w http.ResponseWriter, r *http.Request) {
	cause, err := s.Causes.Get(r.Context(), r.PathValue("id"), currentUser(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respond(w, http.StatusOK, "", cause)
}

// handleSubmitCause accepts JSON or a multipart form with an optional
// "image" file.
func (s *Service) handleSubmitCause(w http.ResponseWriter, r *http.Request) {
	var req causeRequest
	if err := s.decodeRequest(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	image, err := s.uploadFormFile(r.Context(), r, "image", "causes")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if image != "" {
		req.ImageURL = image
	}

	cause, err := s.Causes.Submit(r.Context(), req.input(), currentUser(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respond(w, http.StatusCreated, "Cause submitted", cause)
}

func (s *Service) handleUpdateCause(w http.ResponseWriter, r *http.Request) {
	var req causeRequest
	if err := s.decodeRequest(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	image, err := s.uploadFormFile(r.Context(), r, "image", "causes")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if image != "" {
		req.ImageURL = image
	}

	cause, err := s.Causes.Update(r.Context(), r.PathValue("id"), req.input())
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respond(w, http.StatusOK, "Cause updated", cause)
}

func (s *Service) handleDeleteCause(w http.ResponseWriter, r *http.Request) {
	if err := s.Causes.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respond(w, http.StatusOK, "Cause deleted", nil)
}

func (s *Service) handleApproveCause(w http.ResponseWriter, r *http.Request) {
	cause, err := s.Causes.Approve(r.Context(), r.PathValue("id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respond(w, http.StatusOK, "Cause approved", cause)
}

func (s *Service) handleRejectCause(w http.ResponseWriter, r *http.Request) {
	var req reasonRequest
	if err := s.decodeRequest(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	cause, err := s.Causes.Reject(r.Context(), r.PathValue("id"), req.Reason)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respond(w, http.StatusOK, "Cause rejected", cause)
}

func (s *Service) handleToggleOnline(w http.ResponseWriter, r *http.Request) {
	cause, err := s.Causes.ToggleOnline(r.Context(), r.PathValue("id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respond(w, http.StatusOK, "Cause visibility updated", cause)
}

func (s *Service) handleForceClose(w http.ResponseWriter, r *http.Request) {
	cause, err := s.Causes.ForceClose(r.Context(), r.PathValue("id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respond(w, http.StatusOK, "Cause closed", cause)
}

func (s *Service) handleOpenWaitlist(w http.ResponseWriter, r *http.Request) {
	cause, err := s.Causes.OpenWaitlist(r.Context(), r.PathValue("id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respond(w, http.StatusOK, "Waitlist opened", cause)
}

func (s *Service) handleCausesByCreator(w http.ResponseWriter, r *http.Request) {
	causes, err := s.Causes.ByCreator(r.Context(), r.PathValue("userId"), currentUser(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respond(w, http.StatusOK, "", causes)
}

func (s *Service) handleCausesBySponsor(w http.ResponseWriter, r *http.Request) {
	viewer := currentUser(r)
	userID := r.PathValue("userId")
	if viewer.ID != userID && !viewer.HasRole(types.RoleAdmin) {
		s.respondError(w, r, types.ErrInsufficientRole)
		return
	}

	causes, err := s.Sponsorships.BySponsor(r.Context(), userID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respond(w, http.StatusOK, "", causes)
}

// Campaigns are the admin review view of causes.

func (s *Service) handleListCampaigns(w http.ResponseWriter, r *http.Request) {
	s.handleListCauses(w, r)
}

func (s *Service) handleGetCampaign(w http.ResponseWriter, r *http.Request) {
	s.handleGetCause(w, r)
}

func (s *Service) handleReviewCampaign(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if err := s.decodeRequest(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	cause, err := s.Causes.Review(r.Context(), r.PathValue("id"), req.Action, req.Reason)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respond(w, http.StatusOK, "Campaign reviewed", cause)
}

func (s *Service) handleCampaignComment(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if err := s.decodeRequest(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	cause, err := s.Causes.Comment(r.Context(), r.PathValue("id"), currentUser(r), req.Text)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respond(w, http.StatusCreated, "Comment added", cause)
}
