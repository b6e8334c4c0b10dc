package domain

import "math"

// TicketBalance is the quantity of tickets a user holds for one event.
// A missing row reads as a zero balance.
type TicketBalance struct {
	UserID   int64
	EventID  int64
	Quantity int
}

// EventQuantity is one entry of a user's ticket holdings.
type EventQuantity struct {
	EventID  int64
	Quantity int
}

// MaxQuantity is the largest balance the store can hold.
const MaxQuantity = math.MaxInt32
