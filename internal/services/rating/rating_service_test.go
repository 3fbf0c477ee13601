package rating

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/platform_be_care/internal/db/dbtest"
	"github.com/Windi-Fikriyansyah/platform_be_care/internal/models"
)

func seedProfile(t *testing.T, gdb *gorm.DB) *models.CaregiverProfile {
	t.Helper()
	p := &models.CaregiverProfile{
		UserID:         uuid.New(),
		Phone:          "0812" + uuid.NewString()[:8],
		Name:           "Sari",
		ApprovalStatus: models.ApprovalApproved,
	}
	require.NoError(t, gdb.Create(p).Error)
	return p
}

func reload(t *testing.T, gdb *gorm.DB, id uint) models.CaregiverProfile {
	t.Helper()
	var p models.CaregiverProfile
	require.NoError(t, gdb.First(&p, id).Error)
	return p
}

func TestAccumulate(t *testing.T) {
	gdb := dbtest.New(t)
	svc := NewRatingService(gdb)
	p := seedProfile(t, gdb)

	for _, r := range []int{5, 4, 3} {
		require.NoError(t, svc.Accumulate(gdb, p.ID, r))
	}

	got := reload(t, gdb, p.ID)
	assert.Equal(t, int64(3), got.ReviewCount)
	assert.InDelta(t, 4.0, got.AverageRating, 1e-9)
}

func TestAccumulate_Rejects(t *testing.T) {
	gdb := dbtest.New(t)
	svc := NewRatingService(gdb)
	p := seedProfile(t, gdb)

	assert.ErrorIs(t, svc.Accumulate(gdb, p.ID, 0), ErrInvalidRating)
	assert.ErrorIs(t, svc.Accumulate(gdb, p.ID, 6), ErrInvalidRating)
	assert.Error(t, svc.Accumulate(gdb, p.ID+100, 5))

	got := reload(t, gdb, p.ID)
	assert.Zero(t, got.ReviewCount)
}

func TestRecompute(t *testing.T) {
	gdb := dbtest.New(t)
	svc := NewRatingService(gdb)
	p := seedProfile(t, gdb)

	for _, r := range []int{2, 5} {
		require.NoError(t, gdb.Create(&models.Review{
			BookingID:   uuid.New(),
			ClientID:    uuid.New(),
			CaregiverID: p.ID,
			Rating:      r,
		}).Error)
	}

	require.NoError(t, svc.Recompute(gdb, p.ID))

	got := reload(t, gdb, p.ID)
	assert.Equal(t, int64(2), got.ReviewCount)
	assert.InDelta(t, 3.5, got.AverageRating, 1e-9)
}
