package enums

// UserRole scopes what the bearer of an access token may do.
type UserRole string

const (
	UserRoleAdmin          UserRole = "ADMIN"
	UserRoleInstituteAdmin UserRole = "INSTITUTE_ADMIN"
	UserRoleLearner        UserRole = "LEARNER"
)

var validUserRoles = []UserRole{
	UserRoleAdmin,
	UserRoleInstituteAdmin,
	UserRoleLearner,
}

func (u UserRole) String() string {
	return string(u)
}

func (u UserRole) IsValid() bool {
	for _, candidate := range validUserRoles {
		if candidate == u {
			return true
		}
	}
	return false
}

// CanOverridePayments reports whether the role may force ledger transitions.
func (u UserRole) CanOverridePayments() bool {
	return u == UserRoleAdmin || u == UserRoleInstituteAdmin
}
