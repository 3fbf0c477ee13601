// Package directory answers filtered, ordered queries over caregiver profiles
// and guards the approval state of a single profile. Everything here is pure:
// callers own the profile snapshot and persist whatever Approve/Reject mutate.
package directory

import (
	"cmp"
	"slices"
	"time"

	"github.com/Windi-Fikriyansyah/platform_be_care/internal/models"
)

// Search returns the searchable profiles that satisfy every set option of f,
// newest approval first. The input slice is not modified.
func Search(profiles []models.CaregiverProfile, f Filter) ([]models.CaregiverProfile, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	preds := f.predicates()
	out := make([]models.CaregiverProfile, 0, len(profiles))

next:
	for i := range profiles {
		p := &profiles[i]
		if !p.Searchable() {
			continue
		}
		for _, ok := range preds {
			if !ok(p) {
				continue next
			}
		}
		out = append(out, *p)
	}

	slices.SortStableFunc(out, compareProfiles)
	return out, nil
}

func orderingTime(p *models.CaregiverProfile) time.Time {
	if p.ApprovedAt != nil {
		return *p.ApprovedAt
	}
	return p.CreatedAt
}

func compareProfiles(a, b models.CaregiverProfile) int {
	if c := orderingTime(&b).Compare(orderingTime(&a)); c != 0 {
		return c
	}
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// Approve moves a pending profile to approved and stamps approved_at once.
func Approve(p *models.CaregiverProfile, now time.Time) error {
	if p.ApprovalStatus != models.ApprovalPending {
		return &AlreadyDecidedError{CaregiverID: p.ID, Status: p.ApprovalStatus}
	}
	p.ApprovalStatus = models.ApprovalApproved
	if p.ApprovedAt == nil {
		t := now
		p.ApprovedAt = &t
	}
	return nil
}

// Reject moves a pending profile to rejected. Rejected profiles are deleted by
// the store afterwards.
func Reject(p *models.CaregiverProfile) error {
	if p.ApprovalStatus != models.ApprovalPending {
		return &AlreadyDecidedError{CaregiverID: p.ID, Status: p.ApprovalStatus}
	}
	p.ApprovalStatus = models.ApprovalRejected
	return nil
}
