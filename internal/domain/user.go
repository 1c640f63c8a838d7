package domain

import "time"

type Role string

const (
	RoleStudent Role = "student"
	RoleAlumni  Role = "alumni"
	RoleAdmin   Role = "admin"
	RoleFaculty Role = "faculty"
)

func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleAlumni, RoleAdmin, RoleFaculty:
		return true
	default:
		return false
	}
}

// MembershipStatus is empty for faculty accounts.
type MembershipStatus string

const (
	MembershipUnpaid MembershipStatus = "unpaid"
	MembershipActive MembershipStatus = "active"
)

// User is the cached profile of the signed-in account. Role and
// MembershipStatus are advisory; the backend re-checks every privileged call.
type User struct {
	ID                 string           `json:"id"`
	Name               string           `json:"name"`
	Email              string           `json:"email"`
	Department         string           `json:"department"`
	RegistrationNumber string           `json:"registration_number"`
	PassoutYear        int              `json:"passout_year"`
	Role               Role             `json:"role"`
	MembershipStatus   MembershipStatus `json:"membership_status,omitempty"`
	DOB                string           `json:"dob"`
	Phone              string           `json:"phone"`
	JoinedAt           *time.Time       `json:"joined_at,omitempty"`
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

func (u *User) HasActiveMembership() bool {
	return u != nil && u.MembershipStatus == MembershipActive
}
