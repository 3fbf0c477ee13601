package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Windi-Fikriyansyah/platform_be_care/internal/services/rating"
	"github.com/Windi-Fikriyansyah/platform_be_care/internal/utils"
)

type ReviewHandler struct {
	Ratings *rating.RatingService
	Log     *zap.Logger
}

type createReviewReq struct {
	Rating  int    `json:"rating" validate:"required,gte=1,lte=5"`
	Comment string `json:"comment" validate:"max=2000"`
}

// Create reviews the completed booking :id.
func (h *ReviewHandler) Create(c *fiber.Ctx) error {
	clientID, err := getAuth(c)
	if err != nil {
		return err
	}
	bookingID, err := bookingIDParam(c)
	if err != nil {
		return err
	}

	var req createReviewReq
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid body")
	}
	if errs := utils.ValidateStruct(req); errs != nil {
		return badRequest(c, errs)
	}

	r, err := h.Ratings.Submit(c.UserContext(), clientID, bookingID, req.Rating, req.Comment)
	switch {
	case err == nil:
	case errors.Is(err, rating.ErrBookingNotFound):
		return fail(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, rating.ErrNotReviewer):
		return fail(c, fiber.StatusForbidden, err.Error())
	case errors.Is(err, rating.ErrNotReviewable), errors.Is(err, rating.ErrAlreadyReviewed):
		return fail(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, rating.ErrInvalidRating):
		return fail(c, fiber.StatusBadRequest, err.Error())
	default:
		return fail500(c, h.Log, "failed to save review", err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Ulasan tersimpan",
		"data": fiber.Map{
			"id":         r.ID,
			"booking_id": r.BookingID,
			"rating":     r.Rating,
			"comment":    r.Comment,
			"created_at": r.CreatedAt,
		},
	})
}
