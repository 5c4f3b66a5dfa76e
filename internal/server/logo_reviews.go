package server

import (
	"net/http"
	"strconv"
	"strings"

	"causeconnect/pkg/types"
)

type createLogoReviewRequest struct {
	CampaignID  string `json:"campaignId" form:"campaignId" validate:"required"`
	SponsorID   string `json:"sponsorId" form:"sponsorId" validate:"required"`
	OriginalURL string `json:"originalUrl" form:"originalUrl"`
}

type logoCommentRequest struct {
	Text       string `json:"text" form:"text" validate:"required"`
	Screenshot string `json:"screenshot" form:"screenshot"`
}

type logoStatusRequest struct {
	Status  string `json:"status" form:"status" validate:"required"`
	Comment string `json:"comment" form:"comment"`
}

type batchStatusRequest struct {
	IDs     []string `json:"ids" validate:"required,min=1"`
	Status  string   `json:"status" validate:"required"`
	Comment string   `json:"comment"`
}

type correctedURLRequest struct {
	CorrectedURL string `json:"correctedUrl" form:"correctedUrl"`
}

type checksRequest struct {
	Checks []types.LogoCheck `json:"checks" validate:"required"`
}

type paletteRequest struct {
	Palette []string `json:"palette" validate:"required"`
}

func parseLogoStatus(s string) (types.LogoReviewStatus, error) {
	status := types.LogoReviewStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !status.Valid() {
		return "", types.ValidationError("invalid logo review status %q", s)
	}
	return status, nil
}

func (s *Service) handleCreateLogoReview(w http.ResponseWriter, r *http.Request) {
	var req createLogoReviewRequest
	if err := s.decodeRequest(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	logo, err := s.uploadFormFile(r.Context(), r, "logo", "logos")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if logo != "" {
		req.OriginalURL = logo
	}
	if req.OriginalURL == "" {
		s.respondError(w, r, types.ValidationError("originalUrl or a logo file is required"))
		return
	}

	review, err := s.LogoReviews.CreateFor(r.Context(), currentUser(r), req.CampaignID, req.SponsorID, req.OriginalURL)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respond(w, http.StatusCreated, "Logo review created", review)
}

func (s *Service) handleListLogoReviews(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := types.LogoReviewFilter{CampaignID: q.Get("campaignId")}
	if status := q.Get("status"); status != "" {
		parsed, err := parseLogoStatus(status)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		filter.Status = parsed
	}
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))

	reviews, pagination, err := s.LogoReviews.List(r.Context(), filter)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respond(w, http.StatusOK, "", paged[*types.LogoReview]{Items: reviews, Pagination: pagination})
}

func (s *Service) handleGetLogoReview(w http.ResponseWriter, r *http.Request) {
	review, err := s.LogoReviews.Get(r.Context(), r.PathValue("id"), currentUser(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respond(w, http.StatusOK, "", review)
}

func (s *Service) handleLogoReviewBySponsor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	review, err := s.LogoReviews.BySponsor(ctx, r.PathValue("campaignId"), r.PathValue("sponsorId"), currentUser(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respond(w, http.StatusOK, "", review)
}

func (s *Service) handleLogoReviewComment(w http.ResponseWriter, r *http.Request) {
	var req logoCommentRequest
	if err := s.decodeRequest(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	screenshot, err := s.uploadFormFile(r.Context(), r, "screenshot", "screenshots")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if screenshot != "" {
		req.Screenshot = screenshot
	}

	review, err := s.LogoReviews.AddComment(r.Context(), r.PathValue("id"), currentUser(r), req.Text, req.Screenshot)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respond(w, http.StatusCreated, "Comment added", review)
}

func (s *Service) handleSetLogoStatus(w http.ResponseWriter, r *http.Request) {
	var req logoStatusRequest
	if err := s.decodeRequest(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	status, err := parseLogoStatus(req.Status)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	result, err := s.LogoReviews.SetStatus(r.Context(), r.PathValue("id"), currentUser(r), status, req.Comment)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respond(w, http.StatusOK, "Logo review updated", result)
}

func (s *Service) handleBatchLogoStatus(w http.ResponseWriter, r *http.Request) {
	var req batchStatusRequest
	if err := s.decodeRequest(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	status, err := parseLogoStatus(req.Status)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	updated, failed := s.LogoReviews.BatchSetStatus(r.Context(), req.IDs, currentUser(r), status, req.Comment)

	s.respond(w, http.StatusOK, "Batch update processed", map[string]any{
		"updated": updated,
		"failed":  failed,
	})
}

func (s *Service) handleRunLogoChecks(w http.ResponseWriter, r *http.Request) {
	review, err := s.LogoReviews.RunChecks(r.Context(), r.PathValue("id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respond(w, http.StatusOK, "Checks completed", review)
}

func (s *Service) handleSetLogoChecks(w http.ResponseWriter, r *http.Request) {
	var req checksRequest
	if err := s.decodeRequest(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	review, err := s.LogoReviews.SetChecks(r.Context(), r.PathValue("id"), req.Checks)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respond(w, http.StatusOK, "Checks updated", review)
}

func (s *Service) handleResubmitLogo(w http.ResponseWriter, r *http.Request) {
	var req correctedURLRequest
	if err := s.decodeRequest(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	logo, err := s.uploadFormFile(r.Context(), r, "logo", "logos")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if logo != "" {
		req.CorrectedURL = logo
	}
	if req.CorrectedURL == "" {
		s.respondError(w, r, types.ValidationError("correctedUrl or a logo file is required"))
		return
	}

	result, err := s.LogoReviews.Resubmit(r.Context(), r.PathValue("id"), currentUser(r), req.CorrectedURL)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respond(w, http.StatusOK, "Logo resubmitted", result)
}

func (s *Service) handleSetPalette(w http.ResponseWriter, r *http.Request) {
	var req paletteRequest
	if err := s.decodeRequest(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	review, err := s.LogoReviews.SetPalette(r.Context(), r.PathValue("id"), req.Palette)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respond(w, http.StatusOK, "Palette updated", review)
}

func (s *Service) handleTotePreview(w http.ResponseWriter, r *http.Request) {
	var req types.TotePreviewInput
	if err := s.decodeRequest(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	result, err := s.LogoReviews.UpdateTotePreview(r.Context(), r.PathValue("id"), currentUser(r), req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respond(w, http.StatusOK, "Tote preview updated", result)
}

func (s *Service) handleReconcileLogo(w http.ResponseWriter, r *http.Request) {
	review, err := s.LogoReviews.Reconcile(r.Context(), r.PathValue("id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respond(w, http.StatusOK, "Sponsor entry reconciled", review)
}
