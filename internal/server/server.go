package server

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"causeconnect/internal/metrics"
	"causeconnect/internal/service"
	"causeconnect/internal/storage"
	"causeconnect/pkg/types"

	"github.com/alexedwards/flow"
	"github.com/go-playground/form/v4"
	"github.com/gorilla/securecookie"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var decoder = form.NewDecoder()

// Services groups the workflow services the handlers call into.
type Services struct {
	Auth          *service.Auth
	Causes        *service.Causes
	Sponsorships  *service.Sponsorships
	LogoReviews   *service.LogoReviews
	Claims        *service.Claims
	Waitlist      *service.Waitlist
	Payments      *service.Payments
	Notifications *service.Notifications
	Claimers      *service.Claimers
}

type Service struct {
	logger  *logrus.Logger
	config  *types.Config
	metrics *metrics.Metrics
	cookie  *securecookie.SecureCookie

	Services
	uploads storage.Store
	// uploadsDir is served under /uploads/ when files live on local disk.
	uploadsDir string
	gatherer   prometheus.Gatherer

	server *http.Server
}

type Option func(*Service)

// WithLocalUploads serves files written by the local store.
func WithLocalUploads(dir string) Option {
	return func(s *Service) {
		s.uploadsDir = dir
	}
}

// WithGatherer swaps the registry exposed on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Service) {
		s.gatherer = g
	}
}

func New(
	config *types.Config,
	logger *logrus.Logger,
	m *metrics.Metrics,
	services Services,
	uploads storage.Store,
	opts ...Option,
) (*Service, error) {
	mux := flow.New()

	hashKey, err := base64.StdEncoding.DecodeString(config.CookieHashKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decode cookie hash key: %w", err)
	}
	blockKey, err := base64.StdEncoding.DecodeString(config.CookieBlockKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decode cookie block key: %w", err)
	}
	if len(hashKey) == 0 || len(blockKey) == 0 {
		logger.Warn("cookie keys not configured, generating ephemeral keys; refresh cookies will not survive a restart")
		hashKey = securecookie.GenerateRandomKey(64)
		blockKey = securecookie.GenerateRandomKey(32)
	}

	s := &Service{
		logger:   logger,
		config:   config,
		metrics:  m,
		cookie:   securecookie.New(hashKey, blockKey),
		Services: services,
		uploads:  uploads,
		gatherer: prometheus.DefaultGatherer,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", config.ServerPort),
			ReadTimeout:       time.Duration(config.ReadTimeoutSec) * time.Second,
			ReadHeaderTimeout: time.Duration(config.ReadTimeoutSec) * time.Second,
			WriteTimeout:      time.Duration(config.WriteTimeoutSec) * time.Second,
			MaxHeaderBytes:    1 << 20,
		},
	}

	for _, opt := range opts {
		opt(s)
	}

	s.cookie.MaxAge(int(config.RefreshTokenTTL.Seconds()))

	s.buildRouter(mux)

	// These run for every request, including ones no route matches.
	s.server.Handler = s.RecoverMiddleware(s.RequestIDMiddleware(s.LoggingMiddleware(s.StripTrailingSlash(mux))))

	return s, nil
}

func (s *Service) Start() error {
	return s.server.ListenAndServe()
}

func (s *Service) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler exposes the router, mostly for tests.
func (s *Service) Handler() http.Handler {
	return s.server.Handler
}

func (s *Service) buildRouter(r *flow.Mux) {
	r.NotFound = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		s.respondError(w, req, types.NotFoundError("route not found"))
	})
	r.MethodNotAllowed = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.writeJSON(w, http.StatusMethodNotAllowed, envelope{Message: "method not allowed", Error: "method_not_allowed"})
	})

	r.HandleFunc("/healthz", s.handleHealth, http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}), http.MethodGet)

	if s.uploadsDir != "" {
		r.Handle("/uploads/...", http.StripPrefix("/uploads/", http.FileServer(http.Dir(s.uploadsDir))), http.MethodGet)
	}

	// Payment gateway callbacks carry their own signature.
	s.route(r, "/api/v1/payments/webhook", s.handlePaymentWebhook, http.MethodPost)

	// Public endpoints. A bearer token is honored when present so that
	// admins see unpublished causes.
	r.Group(func(r *flow.Mux) {
		r.Use(s.OptionalAuth)

		s.route(r, "/api/v1/auth/register", s.handleRegister, http.MethodPost)
		s.route(r, "/api/v1/auth/request-otp", s.handleRequestOTP, http.MethodPost)
		s.route(r, "/api/v1/auth/verify-otp", s.handleVerifyOTP, http.MethodPost)
		s.route(r, "/api/v1/auth/login", s.handleLogin, http.MethodPost)
		s.route(r, "/api/v1/auth/admin/login", s.handleAdminLogin, http.MethodPost)
		s.route(r, "/api/v1/auth/refresh", s.handleRefresh, http.MethodPost)
		s.route(r, "/api/v1/auth/logout", s.handleLogout, http.MethodPost)

		s.route(r, "/api/v1/causes", s.handleListCauses, http.MethodGet)
		s.route(r, "/api/v1/causes/:id", s.handleGetCause, http.MethodGet)
		s.route(r, "/api/v1/causes/:id/sponsor", s.handleSponsorCause, http.MethodPost)

		s.route(r, "/api/v1/waitlist/verify-magic-link", s.handleVerifyMagicLink, http.MethodPost)
		s.route(r, "/api/v1/waitlist/magic-link-details/:token", s.handleMagicLinkDetails, http.MethodGet)
		s.route(r, "/api/v1/waitlist/redeem", s.handleRedeemMagicLink, http.MethodPost)

		s.route(r, "/api/v1/payments/create-order", s.handleCreateOrder, http.MethodPost)
		s.route(r, "/api/v1/payments/verify", s.handleVerifyPayment, http.MethodPost)
	})

	r.Group(func(r *flow.Mux) {
		r.Use(s.RequireAuth)

		s.route(r, "/api/v1/auth/me", s.handleMe, http.MethodGet)
		s.route(r, "/api/v1/users/:id", s.handleGetUser, http.MethodGet)

		s.route(r, "/api/v1/causes", s.handleSubmitCause, http.MethodPost)
		s.route(r, "/api/v1/causes/created/:userId", s.handleCausesByCreator, http.MethodGet)
		s.route(r, "/api/v1/causes/sponsored/:userId", s.handleCausesBySponsor, http.MethodGet)
		s.route(r, "/api/v1/causes/:id/claim", s.handleCreateClaim, http.MethodPost)
		s.route(r, "/api/v1/causes/:id/sponsor-from-order", s.handleSponsorFromOrder, http.MethodPost)

		s.route(r, "/api/v1/logo-reviews", s.handleCreateLogoReview, http.MethodPost)
		s.route(r, "/api/v1/logo-reviews/sponsor/:campaignId/:sponsorId", s.handleLogoReviewBySponsor, http.MethodGet)
		s.route(r, "/api/v1/logo-reviews/:id", s.handleGetLogoReview, http.MethodGet)
		s.route(r, "/api/v1/logo-reviews/:id/comments", s.handleLogoReviewComment, http.MethodPost)
		s.route(r, "/api/v1/logo-reviews/:id/corrected-url", s.handleResubmitLogo, http.MethodPatch)
		s.route(r, "/api/v1/logo-reviews/:id/tote-preview", s.handleTotePreview, http.MethodPatch)

		s.route(r, "/api/v1/claims/mine", s.handleMyClaims, http.MethodGet)
		s.route(r, "/api/v1/claims/all", s.handleAllClaims, http.MethodGet)
		s.route(r, "/api/v1/claims/user/:userId", s.handleUserClaims, http.MethodGet)
		s.route(r, "/api/v1/claims/:id/proof", s.handleClaimProof, http.MethodPost)

		s.route(r, "/api/v1/waitlist", s.handleJoinWaitlist, http.MethodPost)
		s.route(r, "/api/v1/waitlist/cause/:causeId", s.handleWaitlistByCause, http.MethodGet)
		s.route(r, "/api/v1/waitlist/user/:userId", s.handleWaitlistByUser, http.MethodGet)

		s.route(r, "/api/v1/payments/orders/:orderId", s.handleGetOrder, http.MethodGet)

		s.route(r, "/api/v1/claimers/:userId/causes", s.handleClaimerCauses, http.MethodGet)
		s.route(r, "/api/v1/claimers/:userId/stats", s.handleClaimerStats, http.MethodGet)

		s.route(r, "/api/v1/uploads", s.handleUpload, http.MethodPost)

		// Claim and waitlist lookups by id come after the fixed paths
		// above, since flow takes the first matching route.
		s.route(r, "/api/v1/claims/:id", s.handleGetClaim, http.MethodGet)
		s.route(r, "/api/v1/waitlist/:id", s.handleGetWaitlistEntry, http.MethodGet)
	})

	r.Group(func(r *flow.Mux) {
		r.Use(s.RequireAuth)
		r.Use(s.RequireRole(types.RoleAdmin))

		s.route(r, "/api/v1/users", s.handleListUsers, http.MethodGet)
		s.route(r, "/api/v1/auth/users/:id/role", s.handleSetRole, http.MethodPatch)

		s.route(r, "/api/v1/causes/:id", s.handleUpdateCause, http.MethodPut)
		s.route(r, "/api/v1/causes/:id", s.handleDeleteCause, http.MethodDelete)
		s.route(r, "/api/v1/causes/:id/approve", s.handleApproveCause, http.MethodPatch)
		s.route(r, "/api/v1/causes/:id/reject", s.handleRejectCause, http.MethodPatch)
		s.route(r, "/api/v1/causes/:id/toggle-online", s.handleToggleOnline, http.MethodPatch)
		s.route(r, "/api/v1/causes/:id/close", s.handleForceClose, http.MethodPatch)
		s.route(r, "/api/v1/causes/:id/waitlist", s.handleOpenWaitlist, http.MethodPatch)

		s.route(r, "/api/v1/campaigns", s.handleListCampaigns, http.MethodGet)
		s.route(r, "/api/v1/campaigns/:id", s.handleGetCampaign, http.MethodGet)
		s.route(r, "/api/v1/campaigns/:id", s.handleReviewCampaign, http.MethodPatch)
		s.route(r, "/api/v1/campaigns/:id/comment", s.handleCampaignComment, http.MethodPost)

		s.route(r, "/api/v1/sponsorships/pending", s.handlePendingSponsorships, http.MethodGet)
		s.route(r, "/api/v1/sponsorships/:causeId/:sponsorId/approve", s.handleApproveSponsorship, http.MethodPatch)
		s.route(r, "/api/v1/sponsorships/:causeId/:sponsorId/reject", s.handleRejectSponsorship, http.MethodPatch)

		s.route(r, "/api/v1/logo-reviews", s.handleListLogoReviews, http.MethodGet)
		s.route(r, "/api/v1/logo-reviews/batch-status", s.handleBatchLogoStatus, http.MethodPatch)
		s.route(r, "/api/v1/logo-reviews/:id/status", s.handleSetLogoStatus, http.MethodPatch)
		s.route(r, "/api/v1/logo-reviews/:id/checks", s.handleRunLogoChecks, http.MethodPost)
		s.route(r, "/api/v1/logo-reviews/:id/checks", s.handleSetLogoChecks, http.MethodPut)
		s.route(r, "/api/v1/logo-reviews/:id/palette", s.handleSetPalette, http.MethodPut)
		s.route(r, "/api/v1/logo-reviews/:id/reconcile", s.handleReconcileLogo, http.MethodPost)

		s.route(r, "/api/v1/claims", s.handleListClaims, http.MethodGet)
		s.route(r, "/api/v1/claims/:id/status", s.handleClaimStatus, http.MethodPatch)
		s.route(r, "/api/v1/claims/:id/verify", s.handleVerifyClaim, http.MethodPatch)
		s.route(r, "/api/v1/claims/:id/notes", s.handleClaimNote, http.MethodPost)

		s.route(r, "/api/v1/waitlist", s.handleListWaitlist, http.MethodGet)
		s.route(r, "/api/v1/waitlist/:id/promote", s.handlePromoteWaitlist, http.MethodPost)
		s.route(r, "/api/v1/waitlist/:id/status", s.handleWaitlistStatus, http.MethodPatch)

		s.route(r, "/api/v1/notifications/send-email", s.handleSendEmail, http.MethodPost)
	})
}

// route registers h and labels its metrics with the route pattern rather
// than the concrete path.
func (s *Service) route(r *flow.Mux, pattern string, h http.HandlerFunc, methods ...string) {
	r.Handle(pattern, s.instrument(pattern, h), methods...)
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, "ok", map[string]string{"status": "ok"})
}
