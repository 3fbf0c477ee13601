package rating

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/platform_be_care/internal/models"
)

var (
	ErrBookingNotFound = errors.New("booking not found")
	ErrNotReviewer     = errors.New("only the booking's client can review it")
	ErrNotReviewable   = errors.New("only completed bookings can be reviewed")
	ErrAlreadyReviewed = errors.New("booking already reviewed")
)

// Submit stores the client's review of a completed booking and folds the
// rating into the caregiver's aggregate in the same transaction.
func (s *RatingService) Submit(ctx context.Context, clientID, bookingID uuid.UUID, rating int, comment string) (*models.Review, error) {
	if rating < 1 || rating > 5 {
		return nil, ErrInvalidRating
	}

	var out models.Review
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var b models.Booking
		if err := tx.First(&b, "id = ?", bookingID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBookingNotFound
			}
			return err
		}
		if b.ClientID != clientID {
			return ErrNotReviewer
		}
		if b.Status != models.BookingCompleted {
			return ErrNotReviewable
		}

		out = models.Review{
			BookingID:   b.ID,
			ClientID:    clientID,
			CaregiverID: b.CaregiverID,
			Rating:      rating,
			Comment:     strings.TrimSpace(comment),
		}
		// the unique index on booking_id settles concurrent submissions
		if err := tx.Create(&out).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyReviewed
			}
			return err
		}
		return s.Accumulate(tx, b.CaregiverID, rating)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ListForCaregiver returns the newest reviews of a caregiver with reviewer names.
func (s *RatingService) ListForCaregiver(ctx context.Context, caregiverID uint, limit int) ([]models.Review, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	var out []models.Review
	err := s.DB.WithContext(ctx).
		Preload("Client").
		Where("caregiver_id = ?", caregiverID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
