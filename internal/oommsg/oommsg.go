// Package oommsg carries out-of-memory notifications from the page
// allocator to whatever policy (currently: kill the largest process)
// decides how to recover.
package oommsg

// OomCh is sent on when a physical page allocation cannot be satisfied.
var OomCh = make(chan Oommsg_t)

// Oommsg_t describes one out-of-memory event. Need is the number of
// pages the failed request wanted; Resume is closed once the recovery
// policy has freed enough memory for the request to be retried.
type Oommsg_t struct {
	Need   int
	Resume chan bool
}
