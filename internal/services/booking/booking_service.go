// Package booking runs the appointment and employment booking lifecycle.
package booking

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/platform_be_care/internal/models"
)

type BookingService struct {
	DB  *gorm.DB
	Log *zap.Logger
	Now func() time.Time
}

func NewBookingService(db *gorm.DB, log *zap.Logger) *BookingService {
	return &BookingService{DB: db, Log: log, Now: time.Now}
}

// ScheduleSlot is one weekly working window of an employment booking.
type ScheduleSlot struct {
	Day  string `json:"day" validate:"required,oneof=mon tue wed thu fri sat sun"`
	From string `json:"from" validate:"required,datetime=15:04"`
	To   string `json:"to" validate:"required,datetime=15:04"`
}

type CreateInput struct {
	Kind        models.BookingKind
	CaregiverID uint
	StartAt     time.Time
	EndAt       *time.Time // appointment only
	Hours       int        // employment: hours per month
	Schedule    []ScheduleSlot
	Address     string
	Notes       string
}

func appointmentHours(start, end time.Time) int {
	d := end.Sub(start)
	h := int(d / time.Hour)
	if d%time.Hour != 0 {
		h++
	}
	return h
}

// Create books a searchable, available caregiver for clientID. The hourly rate
// is copied from the profile at this moment.
func (s *BookingService) Create(ctx context.Context, clientID uuid.UUID, in CreateInput) (*models.Booking, error) {
	b := models.Booking{
		Kind:        in.Kind,
		ClientID:    clientID,
		CaregiverID: in.CaregiverID,
		StartAt:     in.StartAt.UTC(),
		Address:     strings.TrimSpace(in.Address),
		Notes:       strings.TrimSpace(in.Notes),
		Status:      models.BookingPending,
	}

	switch in.Kind {
	case models.BookingAppointment:
		if in.EndAt == nil || !in.EndAt.After(in.StartAt) {
			return nil, ErrInvalidSchedule
		}
		end := in.EndAt.UTC()
		b.EndAt = &end
		b.Hours = appointmentHours(in.StartAt, *in.EndAt)
	case models.BookingEmployment:
		if in.Hours <= 0 || len(in.Schedule) == 0 {
			return nil, ErrInvalidSchedule
		}
		for _, slot := range in.Schedule {
			if slot.From >= slot.To {
				return nil, ErrInvalidSchedule
			}
		}
		raw, err := json.Marshal(in.Schedule)
		if err != nil {
			return nil, err
		}
		b.Schedule = datatypes.JSON(raw)
		b.Hours = in.Hours
	default:
		return nil, ErrInvalidSchedule
	}
	if !b.StartAt.After(s.Now()) {
		return nil, ErrInvalidSchedule
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.CaregiverProfile
		if err := tx.First(&p, "id = ?", in.CaregiverID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCaregiverUnavailable
			}
			return err
		}
		if !p.Searchable() || !p.IsAvailable || p.UserID == clientID {
			return ErrCaregiverUnavailable
		}

		b.CaregiverUserID = p.UserID
		b.HourlyRate = p.HourlyRate
		b.TotalPrice = p.HourlyRate * int64(b.Hours)

		return tx.Create(&b).Error
	})
	if err != nil {
		return nil, err
	}

	s.Log.Info("booking created",
		zap.String("booking", b.BookingCode),
		zap.String("kind", string(b.Kind)),
		zap.Uint("caregiver_id", b.CaregiverID),
	)
	return &b, nil
}

// allowedBy lists which side may drive each target status.
var allowedBy = map[models.BookingStatus]models.Role{
	models.BookingAccepted:  models.RoleCaregiver,
	models.BookingDeclined:  models.RoleCaregiver,
	models.BookingCompleted: models.RoleCaregiver,
	models.BookingCancelled: models.RoleClient,
}

func (s *BookingService) Get(ctx context.Context, id, userID uuid.UUID) (*models.Booking, error) {
	var b models.Booking
	if err := s.DB.WithContext(ctx).
		Preload("Client").
		Preload("Caregiver").
		First(&b, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if b.ClientID != userID && b.CaregiverUserID != userID {
		return nil, ErrForbidden
	}
	return &b, nil
}

// Transition moves a booking to next on behalf of actorID. The update is
// conditional on the status read, so a concurrent change makes it fail.
func (s *BookingService) Transition(ctx context.Context, id, actorID uuid.UUID, next models.BookingStatus, reason string) (*models.Booking, error) {
	var out models.Booking

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&out, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		var side models.Role
		switch actorID {
		case out.ClientID:
			side = models.RoleClient
		case out.CaregiverUserID:
			side = models.RoleCaregiver
		default:
			return ErrForbidden
		}

		if !out.Status.CanTransitionTo(next) || allowedBy[next] != side {
			return &TransitionError{From: out.Status, To: next}
		}

		cols := map[string]any{"status": next, "updated_at": s.Now().UTC()}
		if next == models.BookingCancelled {
			cols["cancel_reason"] = strings.TrimSpace(reason)
		}
		res := tx.Model(&models.Booking{}).
			Where("id = ? AND status = ?", id, out.Status).
			Updates(cols)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return &TransitionError{From: out.Status, To: next}
		}

		return tx.First(&out, "id = ?", id).Error
	})
	if err != nil {
		return nil, err
	}

	s.Log.Info("booking status changed",
		zap.String("booking", out.BookingCode),
		zap.String("status", string(out.Status)),
	)
	return &out, nil
}

type ListFilter struct {
	Status *models.BookingStatus
	Page   int
	Limit  int
}

// ListFor returns the bookings where userID is the client or the caregiver,
// newest first.
func (s *BookingService) ListFor(ctx context.Context, userID uuid.UUID, role models.Role, f ListFilter) ([]models.Booking, int64, error) {
	q := s.DB.WithContext(ctx).Model(&models.Booking{})
	if role == models.RoleCaregiver {
		q = q.Where("caregiver_user_id = ?", userID)
	} else {
		q = q.Where("client_id = ?", userID)
	}
	if f.Status != nil {
		q = q.Where("status = ?", *f.Status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 20
	}
	pages := (total + int64(f.Limit) - 1) / int64(f.Limit)
	if int64(f.Page-1) >= pages {
		return []models.Booking{}, total, nil
	}

	var out []models.Booking
	err := q.
		Preload("Client").
		Preload("Caregiver").
		Order("created_at DESC").
		Limit(f.Limit).
		Offset((f.Page - 1) * f.Limit).
		Find(&out).Error
	return out, total, err
}

// ExpireStale cancels pending bookings whose start time has passed without
// the caregiver answering. It returns the bookings it cancelled.
func (s *BookingService) ExpireStale(ctx context.Context) ([]models.Booking, error) {
	now := s.Now().UTC()

	var stale []models.Booking
	if err := s.DB.WithContext(ctx).
		Where("status = ? AND start_at <= ?", models.BookingPending, now).
		Find(&stale).Error; err != nil {
		return nil, err
	}

	out := stale[:0]
	for _, b := range stale {
		res := s.DB.WithContext(ctx).Model(&models.Booking{}).
			Where("id = ? AND status = ?", b.ID, models.BookingPending).
			Updates(map[string]any{
				"status":        models.BookingCancelled,
				"cancel_reason": "expired without a response from the caregiver",
				"updated_at":    now,
			})
		if res.Error != nil {
			s.Log.Error("expire booking", zap.String("booking", b.BookingCode), zap.Error(res.Error))
			continue
		}
		if res.RowsAffected == 1 {
			b.Status = models.BookingCancelled
			out = append(out, b)
		}
	}
	return out, nil
}

// StartExpiryWorker runs ExpireStale every interval until ctx is done.
// onExpired is called for each cancelled booking.
func (s *BookingService) StartExpiryWorker(ctx context.Context, interval time.Duration, onExpired func(models.Booking)) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				expired, err := s.ExpireStale(ctx)
				if err != nil {
					s.Log.Error("booking expiry scan", zap.Error(err))
					continue
				}
				if len(expired) > 0 {
					s.Log.Info("expired stale bookings", zap.Int("count", len(expired)))
				}
				if onExpired != nil {
					for _, b := range expired {
						onExpired(b)
					}
				}
			}
		}
	}()
}
