package domain

import "time"

// User is a ticket-holding account.
type User struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// UserDetail is a user together with the tickets they hold.
type UserDetail struct {
	User
	Tickets []EventQuantity
}
