package models

import "time"

// OrderContext is the slice of order data the incident detector needs.
// Owned by the order service; read-only here.
type OrderContext struct {
	OrderID           string     `json:"orderId"`
	RiderID           string     `json:"riderId"`
	CustomerID        string     `json:"customerId"`
	PromisedWindowEnd *time.Time `json:"promisedWindowEnd,omitempty"`
}
