package directory

import (
	"fmt"

	"github.com/Windi-Fikriyansyah/platform_be_care/internal/models"
)

// InvalidFilterError is returned for malformed or contradictory filter input.
type InvalidFilterError struct {
	Field  string
	Reason string
}

func (e *InvalidFilterError) Error() string {
	return fmt.Sprintf("invalid filter %s: %s", e.Field, e.Reason)
}

// AlreadyDecidedError is returned when an approval transition is attempted on a
// profile that is no longer pending.
type AlreadyDecidedError struct {
	CaregiverID uint
	Status      models.ApprovalStatus
}

func (e *AlreadyDecidedError) Error() string {
	return fmt.Sprintf("caregiver %d already decided: %s", e.CaregiverID, e.Status)
}
