package booking

import (
	"errors"
	"fmt"

	"github.com/Windi-Fikriyansyah/platform_be_care/internal/models"
)

var (
	ErrNotFound             = errors.New("booking not found")
	ErrForbidden            = errors.New("not a party to this booking")
	ErrCaregiverUnavailable = errors.New("caregiver is not available for booking")
	ErrInvalidSchedule      = errors.New("invalid booking schedule")
)

// TransitionError is returned when a status change is not allowed from the
// booking's current status, or not by the caller's side.
type TransitionError struct {
	From models.BookingStatus
	To   models.BookingStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move booking from %s to %s", e.From, e.To)
}
