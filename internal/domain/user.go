package domain

import "time"

type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RoleAdmin    Role = "ADMIN"
)

type UserStatus string

const (
	UserStatusActive   UserStatus = "ACTIVE"
	UserStatusInactive UserStatus = "INACTIVE"
)

type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	Role         Role
	Status       UserStatus
	CreatedAt    time.Time
}

// Identity is the validated (user, role) tuple the request middleware hands
// to handlers. Customer operations confine to records owned by UserID.
type Identity struct {
	UserID int64
	Role   Role
}

func (id Identity) IsAdmin() bool {
	return id.Role == RoleAdmin
}
