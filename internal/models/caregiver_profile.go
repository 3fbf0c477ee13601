// internal/models/caregiver_profile.go
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

// ServiceType is a tag such as "elderly_care" or "newborn_care".
type ServiceType struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"type:varchar(60);uniqueIndex;not null" json:"name"`
}

type CaregiverProfile struct {
	ID     uint      `gorm:"primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`

	// immutable after registration
	Phone string `gorm:"type:varchar(30);uniqueIndex;not null" json:"phone"`

	ApprovalStatus ApprovalStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"approval_status"`

	Name            string `gorm:"type:varchar(120);not null" json:"name"`
	Gender          Gender `gorm:"type:varchar(10)" json:"gender"`
	Age             int    `json:"age"`
	Introduction    string `gorm:"type:text" json:"introduction"`
	ExperienceYears int    `gorm:"not null;default:0" json:"experience_years"`
	HourlyRate      int64  `gorm:"not null;default:0" json:"hourly_rate"`
	PhotoURL        string `gorm:"type:text" json:"photo_url"`
	IsAvailable     bool   `gorm:"not null;default:true" json:"is_available"`

	// derived by the review subsystem
	AverageRating float64 `gorm:"not null;default:0" json:"average_rating"`
	ReviewCount   int64   `gorm:"not null;default:0" json:"review_count"`

	ServiceTypes []ServiceType `gorm:"many2many:caregiver_service_types" json:"service_types"`

	IdentityDocumentURL      string `gorm:"type:text" json:"-"`
	CertificationDocumentURL string `gorm:"type:text" json:"-"`

	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	ApprovedAt *time.Time `json:"approved_at"`
	ApprovedBy *uuid.UUID `gorm:"type:uuid" json:"-"`
}

// HasDocuments reports whether both evidentiary documents are present.
func (p *CaregiverProfile) HasDocuments() bool {
	return strings.TrimSpace(p.IdentityDocumentURL) != "" &&
		strings.TrimSpace(p.CertificationDocumentURL) != ""
}

// Searchable is true iff the profile may appear in directory results.
func (p *CaregiverProfile) Searchable() bool {
	return p.ApprovalStatus == ApprovalApproved && p.HasDocuments()
}

func (p *CaregiverProfile) HasServiceType(name string) bool {
	for _, st := range p.ServiceTypes {
		if st.Name == name {
			return true
		}
	}
	return false
}

func (p *CaregiverProfile) ServiceTypeNames() []string {
	out := make([]string, 0, len(p.ServiceTypes))
	for _, st := range p.ServiceTypes {
		out = append(out, st.Name)
	}
	return out
}
