package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ApprovalDecisionKind string

const (
	DecisionApproved ApprovalDecisionKind = "approved"
	DecisionRejected ApprovalDecisionKind = "rejected"
	DecisionRemoved  ApprovalDecisionKind = "removed"
)

// ApprovalDecision is the admin audit trail. Rejected and removed profiles are
// deleted, so the snapshot keeps what the admin saw at decision time.
type ApprovalDecision struct {
	ID          uuid.UUID            `gorm:"type:uuid;primaryKey" json:"id"`
	CaregiverID uint                 `gorm:"index;not null" json:"caregiver_id"`
	AdminID     uuid.UUID            `gorm:"type:uuid;index;not null" json:"admin_id"`
	Decision    ApprovalDecisionKind `gorm:"type:varchar(20);not null" json:"decision"`
	Reason      string               `gorm:"type:text" json:"reason"`
	Snapshot    datatypes.JSON       `json:"snapshot"`
	CreatedAt   time.Time            `json:"created_at"`
}

func (d *ApprovalDecision) BeforeCreate(tx *gorm.DB) (err error) {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return
}
