// Package caregiver persists caregiver profiles and performs the admin
// approval workflow against the database.
package caregiver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/platform_be_care/internal/models"
	"github.com/Windi-Fikriyansyah/platform_be_care/internal/services/directory"
)

var (
	ErrNotFound   = errors.New("caregiver not found")
	ErrPhoneTaken = errors.New("phone already registered")
)

type Store struct {
	DB  *gorm.DB
	Log *zap.Logger
	Now func() time.Time
}

func NewStore(db *gorm.DB, log *zap.Logger) *Store {
	return &Store{DB: db, Log: log, Now: time.Now}
}

// ProfileUpdate carries the caregiver-editable fields; nil means unchanged.
// Phone and approval state are deliberately absent.
type ProfileUpdate struct {
	Name            *string
	Gender          *models.Gender
	Age             *int
	Introduction    *string
	ExperienceYears *int
	HourlyRate      *int64
	IsAvailable     *bool
	PhotoURL        *string
	ServiceTypes    []string // nil = unchanged, empty = clear

	// accepted only while the profile is pending
	IdentityDocumentURL      *string
	CertificationDocumentURL *string
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func findByID(tx *gorm.DB, id uint) (*models.CaregiverProfile, error) {
	var p models.CaregiverProfile
	if err := tx.Preload("ServiceTypes").First(&p, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// NormalizeTags trims, lowercases and de-duplicates service tags.
func NormalizeTags(tags []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func resolveServiceTypes(tx *gorm.DB, tags []string) ([]models.ServiceType, error) {
	out := make([]models.ServiceType, 0, len(tags))
	for _, name := range NormalizeTags(tags) {
		st := models.ServiceType{Name: name}
		if err := tx.Where(models.ServiceType{Name: name}).FirstOrCreate(&st).Error; err != nil {
			return nil, fmt.Errorf("resolve service type %q: %w", name, err)
		}
		out = append(out, st)
	}
	return out, nil
}

// Create inserts a freshly registered profile. It always starts pending.
func (s *Store) Create(ctx context.Context, tx *gorm.DB, p *models.CaregiverProfile, tags []string) error {
	if tx == nil {
		tx = s.DB
	}
	tx = tx.WithContext(ctx)

	var count int64
	if err := tx.Model(&models.CaregiverProfile{}).Where("phone = ?", p.Phone).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrPhoneTaken
	}

	sts, err := resolveServiceTypes(tx, tags)
	if err != nil {
		return err
	}

	p.ID = 0
	p.ApprovalStatus = models.ApprovalPending
	p.ApprovedAt = nil
	p.ApprovedBy = nil
	p.AverageRating = 0
	p.ReviewCount = 0
	p.ServiceTypes = sts

	return tx.Create(p).Error
}

func (s *Store) FindByID(ctx context.Context, id uint) (*models.CaregiverProfile, error) {
	return findByID(s.DB.WithContext(ctx), id)
}

func (s *Store) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.CaregiverProfile, error) {
	var p models.CaregiverProfile
	if err := s.DB.WithContext(ctx).
		Preload("ServiceTypes").
		Where("user_id = ?", userID).
		First(&p).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (s *Store) UpdateProfile(ctx context.Context, id uint, upd ProfileUpdate) (*models.CaregiverProfile, error) {
	var out *models.CaregiverProfile
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := findByID(tx, id)
		if err != nil {
			return err
		}

		cols := map[string]any{}
		if upd.Name != nil {
			cols["name"] = strings.TrimSpace(*upd.Name)
		}
		if upd.Gender != nil {
			cols["gender"] = *upd.Gender
		}
		if upd.Age != nil {
			cols["age"] = *upd.Age
		}
		if upd.Introduction != nil {
			cols["introduction"] = strings.TrimSpace(*upd.Introduction)
		}
		if upd.ExperienceYears != nil {
			cols["experience_years"] = *upd.ExperienceYears
		}
		if upd.HourlyRate != nil {
			cols["hourly_rate"] = *upd.HourlyRate
		}
		if upd.IsAvailable != nil {
			cols["is_available"] = *upd.IsAvailable
		}
		if upd.PhotoURL != nil {
			cols["photo_url"] = *upd.PhotoURL
		}
		if upd.IdentityDocumentURL != nil || upd.CertificationDocumentURL != nil {
			if p.ApprovalStatus != models.ApprovalPending {
				return &directory.AlreadyDecidedError{CaregiverID: p.ID, Status: p.ApprovalStatus}
			}
			if upd.IdentityDocumentURL != nil {
				cols["identity_document_url"] = *upd.IdentityDocumentURL
			}
			if upd.CertificationDocumentURL != nil {
				cols["certification_document_url"] = *upd.CertificationDocumentURL
			}
		}

		if len(cols) > 0 {
			if err := tx.Model(&models.CaregiverProfile{}).Where("id = ?", p.ID).Updates(cols).Error; err != nil {
				return err
			}
		}

		if upd.ServiceTypes != nil {
			sts, err := resolveServiceTypes(tx, upd.ServiceTypes)
			if err != nil {
				return err
			}
			if err := tx.Model(p).Association("ServiceTypes").Replace(sts); err != nil {
				return err
			}
		}

		out, err = findByID(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) ListPending(ctx context.Context) ([]models.CaregiverProfile, error) {
	var out []models.CaregiverProfile
	err := s.DB.WithContext(ctx).
		Preload("ServiceTypes").
		Where("approval_status = ?", models.ApprovalPending).
		Order("created_at ASC").
		Order("id ASC").
		Find(&out).Error
	return out, err
}

// Snapshot loads the candidate rows for directory.Search. The SQL prefilter
// only narrows the read; Search re-checks searchability itself.
func (s *Store) Snapshot(ctx context.Context) ([]models.CaregiverProfile, error) {
	var out []models.CaregiverProfile
	err := s.DB.WithContext(ctx).
		Preload("ServiceTypes").
		Where("approval_status = ?", models.ApprovalApproved).
		Where("identity_document_url <> '' AND certification_document_url <> ''").
		Find(&out).Error
	return out, err
}

// ServiceTypesInUse lists the tags carried by at least one searchable caregiver.
func (s *Store) ServiceTypesInUse(ctx context.Context) ([]string, error) {
	var names []string
	err := s.DB.WithContext(ctx).
		Table("service_types").
		Joins("JOIN caregiver_service_types cst ON cst.service_type_id = service_types.id").
		Joins("JOIN caregiver_profiles cp ON cp.id = cst.caregiver_profile_id").
		Where("cp.approval_status = ?", models.ApprovalApproved).
		Where("cp.identity_document_url <> '' AND cp.certification_document_url <> ''").
		Distinct("service_types.name").
		Order("service_types.name ASC").
		Pluck("service_types.name", &names).Error
	return names, err
}

// currentStatus is used after a lost compare-and-set to report what won.
func currentStatus(tx *gorm.DB, id uint) models.ApprovalStatus {
	var st []string
	if err := tx.Model(&models.CaregiverProfile{}).Where("id = ?", id).Pluck("approval_status", &st).Error; err != nil || len(st) == 0 {
		return models.ApprovalRejected
	}
	return models.ApprovalStatus(st[0])
}

func snapshotJSON(p *models.CaregiverProfile) datatypes.JSON {
	b, err := json.Marshal(map[string]any{
		"id":                         p.ID,
		"user_id":                    p.UserID,
		"phone":                      p.Phone,
		"name":                       p.Name,
		"approval_status":            p.ApprovalStatus,
		"experience_years":           p.ExperienceYears,
		"hourly_rate":                p.HourlyRate,
		"service_types":              p.ServiceTypeNames(),
		"identity_document_url":      p.IdentityDocumentURL,
		"certification_document_url": p.CertificationDocumentURL,
		"created_at":                 p.CreatedAt,
		"approved_at":                p.ApprovedAt,
	})
	if err != nil {
		return nil
	}
	return datatypes.JSON(b)
}

// Approve performs the Pending -> Approved transition as a compare-and-set on
// approval_status, so two concurrent approvals cannot both succeed.
func (s *Store) Approve(ctx context.Context, id uint, adminID uuid.UUID) (*models.CaregiverProfile, error) {
	now := s.Now()
	var out *models.CaregiverProfile

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := findByID(tx, id)
		if err != nil {
			return err
		}
		if err := directory.Approve(p, now); err != nil {
			return err
		}

		res := tx.Model(&models.CaregiverProfile{}).
			Where("id = ? AND approval_status = ?", id, models.ApprovalPending).
			Updates(map[string]any{
				"approval_status": p.ApprovalStatus,
				"approved_at":     p.ApprovedAt,
				"approved_by":     adminID,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return &directory.AlreadyDecidedError{CaregiverID: id, Status: currentStatus(tx, id)}
		}
		p.ApprovedBy = &adminID

		if err := tx.Create(&models.ApprovalDecision{
			CaregiverID: id,
			AdminID:     adminID,
			Decision:    models.DecisionApproved,
			Snapshot:    snapshotJSON(p),
		}).Error; err != nil {
			return err
		}

		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Log.Info("caregiver approved",
		zap.Uint("caregiver_id", id),
		zap.String("admin_id", adminID.String()),
	)
	return out, nil
}

// deleteProfile removes the profile and the caregiver's login. The status
// guard makes the delete a compare-and-set as well.
func deleteProfile(tx *gorm.DB, p *models.CaregiverProfile, guard *models.ApprovalStatus) error {
	if err := tx.Model(p).Association("ServiceTypes").Clear(); err != nil {
		return err
	}

	q := tx.Where("id = ?", p.ID)
	if guard != nil {
		q = q.Where("approval_status = ?", *guard)
	}
	res := q.Delete(&models.CaregiverProfile{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &directory.AlreadyDecidedError{CaregiverID: p.ID, Status: currentStatus(tx, p.ID)}
	}

	return tx.Where("id = ? AND role = ?", p.UserID, models.RoleCaregiver).Delete(&models.User{}).Error
}

// Reject decides a pending profile negatively. Rejected profiles are not
// retained; the audit row keeps a snapshot.
func (s *Store) Reject(ctx context.Context, id uint, adminID uuid.UUID, reason string) (*models.CaregiverProfile, error) {
	var out *models.CaregiverProfile

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := findByID(tx, id)
		if err != nil {
			return err
		}
		if err := directory.Reject(p); err != nil {
			return err
		}

		pending := models.ApprovalPending
		if err := deleteProfile(tx, p, &pending); err != nil {
			return err
		}

		if err := tx.Create(&models.ApprovalDecision{
			CaregiverID: id,
			AdminID:     adminID,
			Decision:    models.DecisionRejected,
			Reason:      strings.TrimSpace(reason),
			Snapshot:    snapshotJSON(p),
		}).Error; err != nil {
			return err
		}

		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Log.Info("caregiver rejected",
		zap.Uint("caregiver_id", id),
		zap.String("admin_id", adminID.String()),
	)
	return out, nil
}

// Remove deletes a profile in any state and cancels its open bookings.
func (s *Store) Remove(ctx context.Context, id uint, adminID uuid.UUID, reason string) (*models.CaregiverProfile, error) {
	var out *models.CaregiverProfile

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := findByID(tx, id)
		if err != nil {
			return err
		}

		if err := tx.Model(&models.Booking{}).
			Where("caregiver_id = ? AND status IN ?", id, []models.BookingStatus{models.BookingPending, models.BookingAccepted}).
			Updates(map[string]any{
				"status":        models.BookingCancelled,
				"cancel_reason": "caregiver removed from the platform",
			}).Error; err != nil {
			return err
		}

		if err := deleteProfile(tx, p, nil); err != nil {
			return err
		}

		if err := tx.Create(&models.ApprovalDecision{
			CaregiverID: id,
			AdminID:     adminID,
			Decision:    models.DecisionRemoved,
			Reason:      strings.TrimSpace(reason),
			Snapshot:    snapshotJSON(p),
		}).Error; err != nil {
			return err
		}

		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Log.Warn("caregiver removed",
		zap.Uint("caregiver_id", id),
		zap.String("admin_id", adminID.String()),
	)
	return out, nil
}

// Decisions returns the audit trail for one caregiver, newest first.
func (s *Store) Decisions(ctx context.Context, caregiverID uint) ([]models.ApprovalDecision, error) {
	var out []models.ApprovalDecision
	err := s.DB.WithContext(ctx).
		Where("caregiver_id = ?", caregiverID).
		Order("created_at DESC").
		Find(&out).Error
	return out, err
}
