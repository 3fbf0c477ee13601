package handlers

import (
	"errors"
	"math"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Windi-Fikriyansyah/platform_be_care/internal/models"
	"github.com/Windi-Fikriyansyah/platform_be_care/internal/realtime"
	"github.com/Windi-Fikriyansyah/platform_be_care/internal/services/booking"
	"github.com/Windi-Fikriyansyah/platform_be_care/internal/utils"
)

type BookingHandler struct {
	Svc      *booking.BookingService
	Notifier *realtime.Notifier
	IDKey    string
	Log      *zap.Logger
}

type createBookingReq struct {
	CaregiverID string                 `json:"caregiver_id" validate:"required"`
	Kind        string                 `json:"kind" validate:"required,oneof=appointment employment"`
	StartAt     time.Time              `json:"start_at" validate:"required"`
	EndAt       *time.Time             `json:"end_at" validate:"required_if=Kind appointment"`
	Hours       int                    `json:"hours" validate:"required_if=Kind employment,gte=0,lte=744"`
	Schedule    []booking.ScheduleSlot `json:"schedule" validate:"required_if=Kind employment,dive"`
	Address     string                 `json:"address" validate:"required,max=500"`
	Notes       string                 `json:"notes" validate:"max=2000"`
}

type bookingStatusReq struct {
	Status string `json:"status" validate:"required,oneof=accepted declined completed cancelled"`
	Reason string `json:"reason" validate:"max=500"`
}

func (h *BookingHandler) bookingJSON(b *models.Booking) fiber.Map {
	encID, err := utils.EncryptID(b.CaregiverID, h.IDKey)
	if err != nil {
		h.Log.Warn("encrypt caregiver id", zap.Error(err))
	}
	m := fiber.Map{
		"id":            b.ID,
		"booking_code":  b.BookingCode,
		"kind":          b.Kind,
		"caregiver_id":  encID,
		"start_at":      b.StartAt,
		"end_at":        b.EndAt,
		"hours":         b.Hours,
		"hourly_rate":   b.HourlyRate,
		"total_price":   b.TotalPrice,
		"schedule":      b.Schedule,
		"address":       b.Address,
		"notes":         b.Notes,
		"status":        b.Status,
		"cancel_reason": b.CancelReason,
		"created_at":    b.CreatedAt,
		"updated_at":    b.UpdatedAt,
	}
	if b.Client != nil {
		m["client"] = fiber.Map{"id": b.Client.ID, "name": b.Client.Name}
	}
	if b.Caregiver != nil {
		m["caregiver"] = fiber.Map{"name": b.Caregiver.Name, "photo_url": b.Caregiver.PhotoURL}
	}
	return m
}

// serviceError maps booking service errors onto HTTP statuses.
func (h *BookingHandler) serviceError(c *fiber.Ctx, err error) error {
	var te *booking.TransitionError
	switch {
	case errors.As(err, &te):
		return fail(c, fiber.StatusConflict, te.Error())
	case errors.Is(err, booking.ErrNotFound):
		return fail(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, booking.ErrForbidden):
		return fail(c, fiber.StatusForbidden, err.Error())
	case errors.Is(err, booking.ErrCaregiverUnavailable), errors.Is(err, booking.ErrInvalidSchedule):
		return fail(c, fiber.StatusUnprocessableEntity, err.Error())
	default:
		return fail500(c, h.Log, "booking operation failed", err)
	}
}

func (h *BookingHandler) Create(c *fiber.Ctx) error {
	clientID, err := getAuth(c)
	if err != nil {
		return err
	}

	var req createBookingReq
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid body")
	}
	if errs := utils.ValidateStruct(req); errs != nil {
		return badRequest(c, errs)
	}

	caregiverID, err := utils.DecryptID(req.CaregiverID, h.IDKey)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid caregiver id")
	}

	b, err := h.Svc.Create(c.UserContext(), clientID, booking.CreateInput{
		Kind:        models.BookingKind(req.Kind),
		CaregiverID: caregiverID,
		StartAt:     req.StartAt,
		EndAt:       req.EndAt,
		Hours:       req.Hours,
		Schedule:    req.Schedule,
		Address:     req.Address,
		Notes:       req.Notes,
	})
	if err != nil {
		return h.serviceError(c, err)
	}

	data := h.bookingJSON(b)
	h.Notifier.Notify(c.UserContext(), b.CaregiverUserID, realtime.EventBookingCreated, data)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "booking created",
		"data":    data,
	})
}

func (h *BookingHandler) ListMine(c *fiber.Ctx) error {
	userID, err := getAuth(c)
	if err != nil {
		return err
	}

	f := booking.ListFilter{
		Page:  c.QueryInt("page", 1),
		Limit: c.QueryInt("limit", 20),
	}
	if s := c.Query("status"); s != "" {
		st := models.BookingStatus(s)
		f.Status = &st
	}

	list, total, err := h.Svc.ListFor(c.UserContext(), userID, models.Role(getRole(c)), f)
	if err != nil {
		return fail500(c, h.Log, "failed to load bookings", err)
	}

	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 20
	}

	out := make([]fiber.Map, 0, len(list))
	for i := range list {
		out = append(out, h.bookingJSON(&list[i]))
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    out,
		"meta": fiber.Map{
			"page":        f.Page,
			"limit":       f.Limit,
			"total_items": total,
			"total_pages": int(math.Ceil(float64(total) / float64(f.Limit))),
		},
	})
}

func bookingIDParam(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "invalid booking id")
	}
	return id, nil
}

func (h *BookingHandler) Get(c *fiber.Ctx) error {
	userID, err := getAuth(c)
	if err != nil {
		return err
	}
	id, err := bookingIDParam(c)
	if err != nil {
		return err
	}

	b, err := h.Svc.Get(c.UserContext(), id, userID)
	if err != nil {
		return h.serviceError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": h.bookingJSON(b)})
}

// UpdateStatus lets the caregiver accept, decline or complete and the client
// cancel. Both parties are notified.
func (h *BookingHandler) UpdateStatus(c *fiber.Ctx) error {
	userID, err := getAuth(c)
	if err != nil {
		return err
	}
	id, err := bookingIDParam(c)
	if err != nil {
		return err
	}

	var req bookingStatusReq
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid body")
	}
	if errs := utils.ValidateStruct(req); errs != nil {
		return badRequest(c, errs)
	}

	b, err := h.Svc.Transition(c.UserContext(), id, userID, models.BookingStatus(req.Status), req.Reason)
	if err != nil {
		return h.serviceError(c, err)
	}

	data := h.bookingJSON(b)
	h.Notifier.Notify(c.UserContext(), b.ClientID, realtime.EventBookingStatus, data)
	h.Notifier.Notify(c.UserContext(), b.CaregiverUserID, realtime.EventBookingStatus, data)

	return c.JSON(fiber.Map{"success": true, "data": data})
}
