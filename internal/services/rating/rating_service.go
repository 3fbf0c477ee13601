package rating

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/platform_be_care/internal/models"
)

var ErrInvalidRating = errors.New("rating must be between 1 and 5")

type RatingService struct {
	DB *gorm.DB
}

func NewRatingService(db *gorm.DB) *RatingService {
	return &RatingService{DB: db}
}

// Accumulate folds one new review into the caregiver's running average.
// This should be called within a DB transaction, together with the review insert.
func (s *RatingService) Accumulate(tx *gorm.DB, caregiverID uint, rating int) error {
	if rating < 1 || rating > 5 {
		return ErrInvalidRating
	}

	// single UPDATE so concurrent reviews can't read a stale average
	result := tx.Model(&models.CaregiverProfile{}).
		Where("id = ?", caregiverID).
		Updates(map[string]any{
			"average_rating": gorm.Expr("(average_rating * review_count + ?) / (review_count + 1)", float64(rating)),
			"review_count":   gorm.Expr("review_count + 1"),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("caregiver profile not found for id %d", caregiverID)
	}
	return nil
}

// Recompute rebuilds the aggregate from the reviews table, for repair after
// manual data fixes.
func (s *RatingService) Recompute(tx *gorm.DB, caregiverID uint) error {
	var stats struct {
		AvgRating   float64
		ReviewCount int64
	}
	if err := tx.Model(&models.Review{}).
		Where("caregiver_id = ?", caregiverID).
		Select("COALESCE(AVG(rating), 0) as avg_rating, COUNT(*) as review_count").
		Scan(&stats).Error; err != nil {
		return err
	}

	result := tx.Model(&models.CaregiverProfile{}).
		Where("id = ?", caregiverID).
		Updates(map[string]any{
			"average_rating": stats.AvgRating,
			"review_count":   stats.ReviewCount,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("caregiver profile not found for id %d", caregiverID)
	}
	return nil
}
