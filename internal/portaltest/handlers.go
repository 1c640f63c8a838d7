package portaltest

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sandeepkv93/alumni-portal-client/internal/domain"
	"github.com/sandeepkv93/alumni-portal-client/internal/http/middleware"
	"github.com/sandeepkv93/alumni-portal-client/internal/http/response"
	"github.com/sandeepkv93/alumni-portal-client/internal/security"
)

type tokenResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	User        *domain.User `json:"user"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		response.Validation(w, r, []response.ValidationIssue{{Loc: []string{"body"}, Msg: "invalid JSON body", Type: "value_error.jsondecode"}})
		return false
	}
	return true
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	s.login(w, r, false)
}

func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	s.login(w, r, true)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request, adminOnly bool) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	s.mu.Lock()
	acc, ok := s.accounts[strings.ToLower(req.Email)]
	s.mu.Unlock()
	if !ok || !security.CheckPassword(acc.passwordHash, req.Password) {
		response.Detail(w, r, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	if adminOnly && acc.user.Role != domain.RoleAdmin {
		response.Detail(w, r, http.StatusForbidden, "Admin access required")
		return
	}
	s.issueSession(w, r, acc.user)
}

func (s *Server) issueSession(w http.ResponseWriter, r *http.Request, user domain.User) {
	access, err := s.signAccess(user)
	if err != nil {
		response.Detail(w, r, http.StatusInternalServerError, "Failed to issue token")
		return
	}
	refresh, err := s.jwt.SignRefreshToken(user.ID, s.opts.RefreshTTL)
	if err != nil {
		response.Detail(w, r, http.StatusInternalServerError, "Failed to issue token")
		return
	}
	claims, _ := s.jwt.ParseRefreshToken(refresh)
	s.mu.Lock()
	s.liveRefresh[claims.ID] = user.ID
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    refresh,
		Path:     "/",
		MaxAge:   int(s.opts.RefreshTTL / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	response.JSON(w, r, http.StatusOK, tokenResponse{AccessToken: access, TokenType: "bearer", User: &user})
}

func (s *Server) signAccess(user domain.User) (string, error) {
	access, err := s.jwt.SignAccessToken(user.ID, string(user.Role), s.opts.AccessTTL)
	if err != nil {
		return "", err
	}
	claims, err := s.jwt.ParseAccessToken(access)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.liveAccess[claims.ID] = user.ID
	s.mu.Unlock()
	return access, nil
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name               string `json:"name"`
		DOB                string `json:"dob"`
		Department         string `json:"department"`
		Phone              string `json:"phone"`
		Email              string `json:"email"`
		RegistrationNumber string `json:"registration_number"`
		PassoutYear        int    `json:"passout_year"`
		Password           string `json:"password"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if issues := security.PasswordIssues(req.Password); len(issues) > 0 {
		out := make([]response.ValidationIssue, 0, len(issues))
		for _, msg := range issues {
			out = append(out, response.ValidationIssue{Loc: []string{"body", "password"}, Msg: "Password " + msg, Type: "value_error"})
		}
		response.Validation(w, r, out)
		return
	}
	currentYear := time.Now().Year()
	if req.PassoutYear > currentYear+1 {
		response.Detail(w, r, http.StatusBadRequest, "Only 4th year students (final year) or alumni can register")
		return
	}
	if !s.hasRecord(req.RegistrationNumber, req.Department, req.PassoutYear) {
		response.Detail(w, r, http.StatusBadRequest, "Registration verification failed. Please verify your details.")
		return
	}

	role := domain.RoleStudent
	if req.PassoutYear <= currentYear {
		role = domain.RoleAlumni
	}
	now := time.Now().UTC()
	user := domain.User{
		ID:                 uuid.NewString(),
		Name:               req.Name,
		Email:              req.Email,
		Department:         req.Department,
		RegistrationNumber: req.RegistrationNumber,
		PassoutYear:        req.PassoutYear,
		Role:               role,
		MembershipStatus:   domain.MembershipUnpaid,
		DOB:                req.DOB,
		Phone:              req.Phone,
		JoinedAt:           &now,
	}
	hash, err := security.HashPassword(req.Password)
	if err != nil {
		response.Detail(w, r, http.StatusInternalServerError, "Failed to create account")
		return
	}

	s.mu.Lock()
	key := strings.ToLower(req.Email)
	if _, exists := s.accounts[key]; exists {
		s.mu.Unlock()
		response.Detail(w, r, http.StatusBadRequest, "An account with this email already exists")
		return
	}
	for _, acc := range s.accounts {
		if acc.user.RegistrationNumber == req.RegistrationNumber {
			s.mu.Unlock()
			response.Detail(w, r, http.StatusBadRequest, "An account with this registration number already exists")
			return
		}
	}
	s.accounts[key] = &account{user: user, passwordHash: hash}
	s.mu.Unlock()

	s.issueSession(w, r, user)
}

func (s *Server) hasRecord(regNo, department string, passoutYear int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.records {
		if rec.RegistrationNumber == regNo && rec.Department == department && rec.PassoutYear == passoutYear {
			return true
		}
	}
	return false
}

func (s *Server) handleVerifyRegistration(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RegistrationNumber string `json:"registration_number"`
		Department         string `json:"department"`
		PassoutYear        int    `json:"passout_year"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	type result struct {
		Valid         bool           `json:"valid"`
		Reason        string         `json:"reason,omitempty"`
		StudentRecord map[string]any `json:"student_record,omitempty"`
	}
	if req.PassoutYear > time.Now().Year()+1 {
		response.JSON(w, r, http.StatusOK, result{Reason: "Only 4th year students (final year) or alumni can register"})
		return
	}
	s.mu.Lock()
	var found *studentRecord
	for i := range s.records {
		rec := s.records[i]
		if rec.RegistrationNumber == req.RegistrationNumber && rec.Department == req.Department && rec.PassoutYear == req.PassoutYear {
			found = &rec
			break
		}
	}
	taken := false
	for _, acc := range s.accounts {
		if acc.user.RegistrationNumber == req.RegistrationNumber {
			taken = true
		}
	}
	s.mu.Unlock()

	switch {
	case found == nil:
		response.JSON(w, r, http.StatusOK, result{Reason: "Registration number not found or details do not match university records"})
	case taken:
		response.JSON(w, r, http.StatusOK, result{Reason: "An account with this registration number already exists"})
	default:
		response.JSON(w, r, http.StatusOK, result{Valid: true, StudentRecord: map[string]any{
			"name":         found.Name,
			"department":   found.Department,
			"passout_year": found.PassoutYear,
		}})
	}
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.failRefresh.Load() {
		response.Detail(w, r, http.StatusUnauthorized, "Invalid refresh token")
		return
	}
	c, err := r.Cookie(RefreshCookieName)
	if err != nil || c.Value == "" {
		response.Detail(w, r, http.StatusUnauthorized, "Refresh token missing")
		return
	}
	claims, err := s.jwt.ParseRefreshToken(c.Value)
	if err != nil {
		response.Detail(w, r, http.StatusUnauthorized, "Invalid refresh token")
		return
	}
	s.mu.Lock()
	owner, live := s.liveRefresh[claims.ID]
	var user domain.User
	for _, acc := range s.accounts {
		if acc.user.ID == owner {
			user = acc.user
		}
	}
	s.mu.Unlock()
	if !live || user.ID == "" {
		response.Detail(w, r, http.StatusUnauthorized, "Invalid refresh token")
		return
	}
	access, err := s.signAccess(user)
	if err != nil {
		response.Detail(w, r, http.StatusInternalServerError, "Failed to issue token")
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]string{"access_token": access, "token_type": "bearer"})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(RefreshCookieName); err == nil {
		if claims, err := s.jwt.ParseRefreshToken(c.Value); err == nil {
			s.mu.Lock()
			delete(s.liveRefresh, claims.ID)
			s.mu.Unlock()
		}
	}
	clearRefreshCookie(w)
	response.JSON(w, r, http.StatusOK, messageResponse{Message: "Logged out successfully"})
}

func (s *Server) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromContext(r.Context())
	s.mu.Lock()
	for id, owner := range s.liveRefresh {
		if owner == claims.Subject {
			delete(s.liveRefresh, id)
		}
	}
	for id, owner := range s.liveAccess {
		if owner == claims.Subject {
			delete(s.liveAccess, id)
		}
	}
	s.mu.Unlock()
	clearRefreshCookie(w)
	response.JSON(w, r, http.StatusOK, messageResponse{Message: "Logged out from all devices"})
}

func clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{Name: RefreshCookieName, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
}

func (s *Server) currentAccount(r *http.Request) *account {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, acc := range s.accounts {
		if acc.user.ID == claims.Subject {
			return acc
		}
	}
	return nil
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OldPassword string `json:"old_password"`
		NewPassword string `json:"new_password"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	acc := s.currentAccount(r)
	if acc == nil {
		response.Detail(w, r, http.StatusNotFound, "User not found")
		return
	}
	if !security.CheckPassword(acc.passwordHash, req.OldPassword) {
		response.Detail(w, r, http.StatusUnauthorized, "Current password is incorrect")
		return
	}
	if err := security.ValidatePasswordStrength(req.NewPassword); err != nil {
		response.Detail(w, r, http.StatusBadRequest, err.Error())
		return
	}
	hash, err := security.HashPassword(req.NewPassword)
	if err != nil {
		response.Detail(w, r, http.StatusInternalServerError, "Failed to update password")
		return
	}
	s.mu.Lock()
	acc.passwordHash = hash
	s.mu.Unlock()
	response.JSON(w, r, http.StatusOK, messageResponse{Message: "Password changed successfully"})
}

func (s *Server) handleRequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	key := strings.ToLower(req.Email)
	s.mu.Lock()
	if _, ok := s.accounts[key]; ok {
		s.resetTokens[uuid.NewString()] = key
	}
	s.mu.Unlock()
	response.JSON(w, r, http.StatusOK, messageResponse{Message: "If the email exists, a reset link has been sent"})
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token       string `json:"token"`
		NewPassword string `json:"new_password"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := security.ValidatePasswordStrength(req.NewPassword); err != nil {
		response.Detail(w, r, http.StatusBadRequest, err.Error())
		return
	}
	hash, err := security.HashPassword(req.NewPassword)
	if err != nil {
		response.Detail(w, r, http.StatusInternalServerError, "Failed to update password")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	email, ok := s.resetTokens[req.Token]
	acc := s.accounts[email]
	if !ok || acc == nil {
		response.Detail(w, r, http.StatusBadRequest, "Invalid or expired reset token")
		return
	}
	delete(s.resetTokens, req.Token)
	acc.passwordHash = hash
	response.JSON(w, r, http.StatusOK, messageResponse{Message: "Password has been reset"})
}

func (s *Server) handleVerifyPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	acc := s.currentAccount(r)
	if acc == nil || !security.CheckPassword(acc.passwordHash, req.Password) {
		response.Detail(w, r, http.StatusUnauthorized, "Invalid password")
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]bool{"valid": true})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	acc := s.currentAccount(r)
	if acc == nil {
		response.Detail(w, r, http.StatusNotFound, "Profile not found")
		return
	}
	s.mu.Lock()
	user := acc.user
	s.mu.Unlock()
	response.JSON(w, r, http.StatusOK, user)
}

func (s *Server) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	var req map[string]any
	if !decodeBody(w, r, &req) {
		return
	}
	for _, field := range []string{"registration_number", "passout_year", "email", "name"} {
		if _, ok := req[field]; ok {
			response.Detail(w, r, http.StatusBadRequest, field+" cannot be modified. Contact admin to report errors.")
			return
		}
	}
	acc := s.currentAccount(r)
	if acc == nil {
		response.Detail(w, r, http.StatusNotFound, "User not found")
		return
	}
	s.mu.Lock()
	if v, ok := req["phone"].(string); ok {
		acc.user.Phone = v
	}
	if v, ok := req["dob"].(string); ok {
		acc.user.DOB = v
	}
	user := acc.user
	s.mu.Unlock()
	response.JSON(w, r, http.StatusOK, user)
}
