package server

import (
	"net/http"
	"time"

	"causeconnect/internal/service"
	"causeconnect/pkg/types"
)

type registerRequest struct {
	Email string `json:"email" form:"email" validate:"required,email"`
	Name  string `json:"name" form:"name" validate:"required"`
	Role  string `json:"role" form:"role"`
}

type emailRequest struct {
	Email string `json:"email" form:"email" validate:"required,email"`
}

type verifyOTPRequest struct {
	Email string `json:"email" form:"email" validate:"required,email"`
	OTP   string `json:"otp" form:"otp" validate:"required"`
	Name  string `json:"name" form:"name"`
	Role  string `json:"role" form:"role"`
}

type adminLoginRequest struct {
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" form:"refreshToken"`
}

type roleRequest struct {
	Role string `json:"role" form:"role" validate:"required"`
}

func (s *Service) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := s.decodeRequest(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	role := types.Role(req.Role)
	if role == "" {
		role = types.RoleVisitor
	}

	user, err := s.Auth.Register(r.Context(), service.RegisterInput{
		Email: req.Email,
		Name:  req.Name,
		Role:  role,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respond(w, http.StatusCreated, "Verification code sent", map[string]any{
		"email": user.Email,
		"role":  user.Role,
	})
}

func (s *Service) handleRequestOTP(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := s.decodeRequest(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	if err := s.Auth.RequestOTP(r.Context(), req.Email); err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respond(w, http.StatusOK, "Verification code sent", nil)
}

func (s *Service) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := s.decodeRequest(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	pair, err := s.Auth.VerifyOTP(r.Context(), service.VerifyInput{
		Email: req.Email,
		Code:  req.OTP,
		Name:  req.Name,
		Role:  types.Role(req.Role),
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respondTokens(w, r, "Verification successful", pair)
}

func (s *Service) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := s.decodeRequest(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	pair, err := s.Auth.Login(r.Context(), req.Email, req.OTP)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respondTokens(w, r, "Login successful", pair)
}

func (s *Service) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var req adminLoginRequest
	if err := s.decodeRequest(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	pair, err := s.Auth.AdminLogin(r.Context(), req.Email, req.Password)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respondTokens(w, r, "Login successful", pair)
}

func (s *Service) handleRefresh(w http.ResponseWriter, r *http.Request) {
	token, err := s.refreshTokenFrom(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	pair, err := s.Auth.Refresh(r.Context(), token)
	if err != nil {
		s.clearRefreshCookie(w)
		s.respondError(w, r, err)
		return
	}

	s.respondTokens(w, r, "Token refreshed", pair)
}

func (s *Service) handleLogout(w http.ResponseWriter, r *http.Request) {
	token, err := s.refreshTokenFrom(w, r)
	if err == nil {
		if err := s.Auth.Logout(r.Context(), token); err != nil {
			s.respondError(w, r, err)
			return
		}
	}

	s.clearRefreshCookie(w)
	s.respond(w, http.StatusOK, "Logged out", nil)
}

func (s *Service) handleMe(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, "", currentUser(r))
}

func (s *Service) handleGetUser(w http.ResponseWriter, r *http.Request) {
	viewer := currentUser(r)
	userID := r.PathValue("id")
	if viewer.ID != userID && !viewer.HasRole(types.RoleAdmin) {
		s.respondError(w, r, types.ErrInsufficientRole)
		return
	}

	user, err := s.Auth.User(r.Context(), userID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respond(w, http.StatusOK, "", user)
}

func (s *Service) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.Auth.Users(r.Context(), types.Role(r.URL.Query().Get("role")))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respond(w, http.StatusOK, "", users)
}

func (s *Service) handleSetRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := s.decodeRequest(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	user, err := s.Auth.SetRole(r.Context(), currentUser(r), r.PathValue("id"), types.Role(req.Role))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respond(w, http.StatusOK, "Role updated", user)
}

// respondTokens sets the refresh cookie and returns both tokens in the body.
func (s *Service) respondTokens(w http.ResponseWriter, r *http.Request, message string, pair *types.TokenPair) {
	if err := s.setRefreshCookie(w, pair.RefreshToken); err != nil {
		s.logger.WithError(err).Error("failed to encode refresh cookie")
		s.respondError(w, r, err)
		return
	}

	s.respond(w, http.StatusOK, message, pair)
}

func (s *Service) setRefreshCookie(w http.ResponseWriter, token string) error {
	encoded, err := s.cookie.Encode(s.config.RefreshCookieName, token)
	if err != nil {
		return err
	}

	// Set httpOnly, secure cookie with the refresh token
	http.SetCookie(w, &http.Cookie{
		Name:     s.config.RefreshCookieName,
		Value:    encoded,
		Path:     "/api/v1/auth",
		MaxAge:   int(s.config.RefreshTokenTTL.Seconds()),
		HttpOnly: true,
		Secure:   s.config.Environment == "production",
		SameSite: http.SameSiteLaxMode,
	})

	return nil
}

func (s *Service) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.config.RefreshCookieName,
		Value:    "",
		Path:     "/api/v1/auth",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   s.config.Environment == "production",
		SameSite: http.SameSiteLaxMode,
	})
}

// refreshTokenFrom prefers a token in the body and falls back to the cookie.
func (s *Service) refreshTokenFrom(w http.ResponseWriter, r *http.Request) (string, error) {
	var req refreshRequest
	if err := s.decodeRequest(w, r, &req); err != nil {
		return "", err
	}
	if req.RefreshToken != "" {
		return req.RefreshToken, nil
	}

	cookie, err := r.Cookie(s.config.RefreshCookieName)
	if err != nil {
		return "", types.UnauthorizedError("refresh token required")
	}

	var token string
	if err := s.cookie.Decode(s.config.RefreshCookieName, cookie.Value, &token); err != nil {
		s.logger.WithError(err).Debug("failed to decode refresh cookie")
		return "", types.ErrInvalidToken
	}

	return token, nil
}
