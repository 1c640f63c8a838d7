package service

import (
	"github.com/sandeepkv93/alumni-portal-client/internal/domain"
	"github.com/sandeepkv93/alumni-portal-client/internal/security"
)

const (
	PathLogin                = "/api/auth/login"
	PathAdminLogin           = "/api/admin/login"
	PathSignup               = "/api/auth/signup"
	PathVerifyRegistration   = "/api/auth/verify-registration"
	PathLogout               = "/api/auth/logout"
	PathLogoutAll            = "/api/auth/logout-all"
	PathChangePassword       = "/api/auth/change-password"
	PathRequestPasswordReset = "/api/auth/request-password-reset"
	PathResetPassword        = "/api/auth/reset-password"
	PathVerifyPassword       = "/api/auth/verify-password"
	PathMe                   = "/api/auth/me"
	PathProfile              = "/api/profile"
)

type LoginResult struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type,omitempty"`
	User        *domain.User `json:"user"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SignupRequest struct {
	Name               string `json:"name"`
	Email              string `json:"email"`
	Password           string `json:"password"`
	Department         string `json:"department"`
	Phone              string `json:"phone"`
	RegistrationNumber string `json:"registration_number"`
	PassoutYear        int    `json:"passout_year"`
	DOB                string `json:"dob"`
}

// sanitized strips markup from the free-text fields. Password and DOB are
// sent as given.
func (r SignupRequest) sanitized() SignupRequest {
	r.Name = security.SanitizeText(r.Name)
	r.Email = security.SanitizeText(r.Email)
	r.Department = security.SanitizeText(r.Department)
	r.Phone = security.SanitizeText(r.Phone)
	r.RegistrationNumber = security.SanitizeText(r.RegistrationNumber)
	return r
}

type VerifyRegistrationRequest struct {
	RegistrationNumber string `json:"registration_number"`
	Department         string `json:"department"`
	PassoutYear        int    `json:"passout_year"`
}

type VerifyRegistrationResult struct {
	Valid         bool                   `json:"valid"`
	Reason        string                 `json:"reason,omitempty"`
	StudentRecord map[string]interface{} `json:"student_record,omitempty"`
}

// ProfileUpdate carries the editable profile fields; nil means unchanged.
type ProfileUpdate struct {
	DOB         *string `json:"dob,omitempty"`
	Phone       *string `json:"phone,omitempty"`
	Workplace   *string `json:"workplace,omitempty"`
	Designation *string `json:"designation,omitempty"`
	Industry    *string `json:"industry,omitempty"`
}

func (p ProfileUpdate) sanitized() ProfileUpdate {
	for _, f := range []**string{&p.Phone, &p.Workplace, &p.Designation, &p.Industry} {
		if *f != nil {
			v := security.SanitizeText(**f)
			*f = &v
		}
	}
	return p
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

type passwordResetRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

type verifyPasswordRequest struct {
	Password string `json:"password"`
}
