package domain

import "time"

// User mirrors the persisted representation in the users table. Role is a
// bare role name with no foreign key.
type User struct {
	ID        string
	Username  string
	Email     string
	Role      string
	CreatedAt time.Time
	UpdatedAt time.Time
}
