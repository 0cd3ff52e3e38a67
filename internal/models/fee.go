package models

import "time"

// PaymentMethod enumerates accepted fee payment channels.
type PaymentMethod string

const (
	PaymentOnline  PaymentMethod = "ONLINE"
	PaymentOffline PaymentMethod = "OFFLINE"
)

// Valid returns true for a supported payment method.
func (m PaymentMethod) Valid() bool {
	return m == PaymentOnline || m == PaymentOffline
}

// PaymentStatus enumerates fee payment states.
type PaymentStatus string

const (
	PaymentPaid    PaymentStatus = "PAID"
	PaymentPending PaymentStatus = "PENDING"
	PaymentOverdue PaymentStatus = "OVERDUE"
)

// Valid returns true for a supported payment status.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPaid, PaymentPending, PaymentOverdue:
		return true
	default:
		return false
	}
}

// FeePayment is the single current payment-status row per enrolled student
// per batch. Later writes replace the row; no history is kept.
type FeePayment struct {
	ID        string        `db:"id" json:"id"`
	BatchID   string        `db:"batch_id" json:"batch_id"`
	StudentID string        `db:"student_id" json:"student_id"`
	Amount    float64       `db:"amount" json:"amount"`
	Method    PaymentMethod `db:"method" json:"method"`
	Status    PaymentStatus `db:"status" json:"status"`
	Remarks   *string       `db:"remarks" json:"remarks,omitempty"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt time.Time     `db:"updated_at" json:"updated_at"`
}
