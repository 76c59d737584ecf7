package domain

import "time"

// Slot is a capacity-bounded pickup window orders are assigned to.
// CommittedCount tracks the units of every order on the slot whose status
// still counts toward capacity. Overbooking is allowed, so CommittedCount
// may exceed Capacity; it is only floored at zero on decrement.
type Slot struct {
	ID             string
	Date           time.Time
	Location       string
	Capacity       int
	CommittedCount int
	Open           bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// OpenCapacity is Capacity minus CommittedCount. It goes negative when the
// slot is overbooked; callers decide how to present that.
func (s Slot) OpenCapacity() int {
	return s.Capacity - s.CommittedCount
}
