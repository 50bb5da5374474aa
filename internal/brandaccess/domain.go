package brandaccess

import "time"

// User is an application account with a role and a brand scope.
type User struct {
	ID        int64
	Username  string
	FullName  string
	Role      string
	Brands    []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Permission names granted to roles.
type Permission struct {
	ID          int64
	Name        string
	Description string
}

// AdminRole bypasses brand scoping entirely.
const AdminRole = "admin"
