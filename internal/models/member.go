package models

import "time"

type MemberStatus string

const (
	MemberActive   MemberStatus = "Active"
	MemberInactive MemberStatus = "Inactive"
	MemberPending  MemberStatus = "Pending"
	MemberExpired  MemberStatus = "Expired"
	MemberFrozen   MemberStatus = "Frozen"
)

// AllowsAccess reports whether a member with this status may check in.
func (s MemberStatus) AllowsAccess() bool {
	return s != MemberExpired && s != MemberFrozen
}

type Plan string

const (
	PlanGold   Plan = "Gold"
	PlanSilver Plan = "Silver"
	PlanDropIn Plan = "Drop-in"
)

// Member is a gym client profile.
type Member struct {
	ID         string       `json:"id" yaml:"id"`
	GymID      string       `json:"gym_id" yaml:"gym_id"`
	Name       string       `json:"name" yaml:"name"`
	Phone      string       `json:"phone" yaml:"phone"`
	Status     MemberStatus `json:"status" yaml:"status"`
	Plan       Plan         `json:"plan" yaml:"plan"`
	LastVisit  string       `json:"last_visit" yaml:"last_visit"`
	Image      string       `json:"image" yaml:"image"`
	ExpiryDate string       `json:"expiry_date,omitempty" yaml:"expiry_date"`
	ChatID     int64        `json:"chat_id,omitempty" yaml:"telegram_chat_id"`
}

type PaymentStatus string

const (
	PaymentPaid        PaymentStatus = "Paid"
	PaymentFailed      PaymentStatus = "Failed"
	PaymentOutstanding PaymentStatus = "Outstanding"
)

// PaymentRecord is the billing state of a member.
type PaymentRecord struct {
	MemberID      string        `json:"member_id" yaml:"member_id"`
	Balance       float64       `json:"balance" yaml:"balance"`
	PaymentStatus PaymentStatus `json:"payment_status" yaml:"payment_status"`
	DueDate       string        `json:"due_date" yaml:"due_date"`
	UpdatedAt     time.Time     `json:"updated_at" yaml:"-"`
}

// MemberPayment joins a member with the billing record for listings.
type MemberPayment struct {
	Member
	PaymentRecord
}
