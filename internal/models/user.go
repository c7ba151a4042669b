package models

type Role string

const (
	RoleOwner    Role = "owner"
	RoleAdmin    Role = "admin"
	RoleTrainer  Role = "trainer"
	RoleMember   Role = "member"
	RoleClientOG Role = "client-og"
	RoleClientSP Role = "client-sp"
)

func (r Role) IsStaff() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleTrainer:
		return true
	default:
		return false
	}
}

func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleTrainer, RoleMember, RoleClientOG, RoleClientSP:
		return true
	default:
		return false
	}
}

// User is the logged-in actor.
type User struct {
	ID       string `json:"id" yaml:"id"`
	Username string `json:"username" yaml:"username"`
	Role     Role   `json:"role" yaml:"role"`
	Name     string `json:"name" yaml:"name"`
	Avatar   string `json:"avatar" yaml:"avatar"`
	GymID    string `json:"gym_id" yaml:"gym_id"`
	Credits  int    `json:"credits" yaml:"credits"`
}
