package domain

import "time"

// Role determines transition rights and visibility scope for a principal.
type Role string

const (
	RoleProducer Role = "producer"
	RoleBuyer    Role = "buyer"
)

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	return r == RoleProducer || r == RoleBuyer
}

// ProfileSeed carries the profile fields requested at signup. It lives on the
// account so that provisioning can be retried from the same data when the
// profile write fails after the account write succeeded.
type ProfileSeed struct {
	Name        string
	Contact     string
	Description string
	Role        Role
}

// Account holds the credential side of an identity. Profile provisioning is
// a separate step; Provisioned stays false until the profile row exists.
type Account struct {
	ID           string
	Email        string
	PasswordHash string
	Provisioned  bool
	Seed         ProfileSeed
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// User is the marketplace profile attached to an account. Role is immutable
// after creation.
type User struct {
	ID          string
	Email       string
	Name        string
	Contact     string
	Description string
	Role        Role
	Certified   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
