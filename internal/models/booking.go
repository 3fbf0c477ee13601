// internal/models/booking.go
package models

import (
	"math/rand"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type BookingKind string

const (
	BookingAppointment BookingKind = "appointment" // single visit
	BookingEmployment  BookingKind = "employment"  // long-term, weekly schedule
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"   // waiting for the caregiver
	BookingAccepted  BookingStatus = "accepted"  // confirmed
	BookingDeclined  BookingStatus = "declined"  // refused by the caregiver
	BookingCompleted BookingStatus = "completed" // done, reviewable
	BookingCancelled BookingStatus = "cancelled" // withdrawn by either party
)

var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingPending:  {BookingAccepted, BookingDeclined, BookingCancelled},
	BookingAccepted: {BookingCompleted, BookingCancelled},
}

// CanTransitionTo reports whether next is reachable from s in one step.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, st := range bookingTransitions[s] {
		if st == next {
			return true
		}
	}
	return false
}

func (s BookingStatus) Terminal() bool {
	return len(bookingTransitions[s]) == 0
}

type Booking struct {
	ID          uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	BookingCode string      `gorm:"uniqueIndex;size:10" json:"booking_code"`
	Kind        BookingKind `gorm:"type:varchar(20);not null" json:"kind"`

	ClientID        uuid.UUID `gorm:"type:uuid;index;not null" json:"client_id"`
	CaregiverID     uint      `gorm:"index;not null" json:"caregiver_id"`
	CaregiverUserID uuid.UUID `gorm:"type:uuid;index;not null" json:"caregiver_user_id"`

	StartAt time.Time  `json:"start_at"`
	EndAt   *time.Time `json:"end_at,omitempty"`
	// appointment: hours of the visit, employment: hours per month
	Hours int `json:"hours"`

	// rate is copied at booking time so later profile edits don't change the price
	HourlyRate int64 `json:"hourly_rate"`
	TotalPrice int64 `json:"total_price"`

	Schedule datatypes.JSON `json:"schedule,omitempty"` // employment: [{"day":"mon","from":"08:00","to":"16:00"}]
	Address  string         `gorm:"type:text" json:"address"`
	Notes    string         `gorm:"type:text" json:"notes"`

	Status       BookingStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	CancelReason string        `gorm:"type:text" json:"cancel_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Client    *User             `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	Caregiver *CaregiverProfile `gorm:"foreignKey:CaregiverID" json:"caregiver,omitempty"`
}

func (b *Booking) BeforeCreate(tx *gorm.DB) (err error) {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.BookingCode == "" {
		b.BookingCode = GenerateBookingCode()
	}
	return
}

// GenerateBookingCode generates a random alphanumeric code
func GenerateBookingCode() string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, 8)
	for i := range b {
		b[i] = letters[rand.Intn(len(letters))]
	}
	return string(b)
}
