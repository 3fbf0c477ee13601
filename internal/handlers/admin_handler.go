package handlers

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/platform_be_care/internal/models"
	"github.com/Windi-Fikriyansyah/platform_be_care/internal/realtime"
	"github.com/Windi-Fikriyansyah/platform_be_care/internal/services/caregiver"
	"github.com/Windi-Fikriyansyah/platform_be_care/internal/services/directory"
)

// AdminHandler is the approval console. The acting admin comes from the JWT
// and is passed to the store explicitly.
type AdminHandler struct {
	DB       *gorm.DB
	Store    *caregiver.Store
	Notifier *realtime.Notifier
	Log      *zap.Logger
}

func caregiverIDParam(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid caregiver id")
	}
	return uint(id), nil
}

// decisionError maps store errors onto HTTP statuses.
func (h *AdminHandler) decisionError(c *fiber.Ctx, err error) error {
	var decided *directory.AlreadyDecidedError
	switch {
	case errors.As(err, &decided):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"success": false,
			"message": decided.Error(),
			"data":    fiber.Map{"approval_status": decided.Status},
		})
	case errors.Is(err, caregiver.ErrNotFound):
		return fail(c, fiber.StatusNotFound, "caregiver not found")
	default:
		return fail500(c, h.Log, "failed to record decision", err)
	}
}

func (h *AdminHandler) ListPending(c *fiber.Ctx) error {
	profiles, err := h.Store.ListPending(c.UserContext())
	if err != nil {
		return fail500(c, h.Log, "failed to load pending caregivers", err)
	}

	out := make([]fiber.Map, 0, len(profiles))
	for i := range profiles {
		m := ownProfileJSON(&profiles[i])
		m["user_id"] = profiles[i].UserID
		m["has_documents"] = profiles[i].HasDocuments()
		out = append(out, m)
	}
	return c.JSON(fiber.Map{"success": true, "data": out})
}

func (h *AdminHandler) Approve(c *fiber.Ctx) error {
	adminID, err := getAuth(c)
	if err != nil {
		return err
	}
	id, err := caregiverIDParam(c)
	if err != nil {
		return err
	}

	p, err := h.Store.Approve(c.UserContext(), id, adminID)
	if err != nil {
		return h.decisionError(c, err)
	}

	h.Notifier.Notify(c.UserContext(), p.UserID, realtime.EventCaregiverApproved, fiber.Map{
		"caregiver_id": p.ID,
		"approved_at":  p.ApprovedAt,
	})

	return c.JSON(fiber.Map{
		"success": true,
		"message": "caregiver approved",
		"data":    ownProfileJSON(p),
	})
}

type decisionReq struct {
	Reason string `json:"reason"`
}

func (h *AdminHandler) decide(c *fiber.Ctx, remove bool) error {
	adminID, err := getAuth(c)
	if err != nil {
		return err
	}
	id, err := caregiverIDParam(c)
	if err != nil {
		return err
	}

	var req decisionReq
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fail(c, fiber.StatusBadRequest, "invalid body")
		}
	}
	reason := strings.TrimSpace(req.Reason)

	var (
		p     *models.CaregiverProfile
		event string
	)
	if remove {
		p, err = h.Store.Remove(c.UserContext(), id, adminID, reason)
		event = realtime.EventCaregiverRemoved
	} else {
		p, err = h.Store.Reject(c.UserContext(), id, adminID, reason)
		event = realtime.EventCaregiverRejected
	}
	if err != nil {
		return h.decisionError(c, err)
	}

	h.Notifier.Notify(c.UserContext(), p.UserID, event, fiber.Map{
		"caregiver_id": p.ID,
		"reason":       reason,
	})

	return c.JSON(fiber.Map{
		"success": true,
		"message": "caregiver " + strings.TrimPrefix(event, "caregiver_"),
		"data":    fiber.Map{"id": p.ID},
	})
}

func (h *AdminHandler) Reject(c *fiber.Ctx) error { return h.decide(c, false) }

func (h *AdminHandler) Remove(c *fiber.Ctx) error { return h.decide(c, true) }

// Decisions returns the audit trail of one caregiver, including removed ones.
func (h *AdminHandler) Decisions(c *fiber.Ctx) error {
	id, err := caregiverIDParam(c)
	if err != nil {
		return err
	}
	out, err := h.Store.Decisions(c.UserContext(), id)
	if err != nil {
		return fail500(c, h.Log, "failed to load decisions", err)
	}
	return c.JSON(fiber.Map{"success": true, "data": out})
}

func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	q := h.DB.WithContext(c.UserContext()).Model(&models.User{})
	if role := strings.ToLower(c.Query("role")); role != "" {
		q = q.Where("role = ?", role)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return fail500(c, h.Log, "failed to count users", err)
	}

	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 50)
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}

	users := []models.User{}
	from, _ := pageRange(page, limit, int(total))
	if err := q.Order("created_at DESC").Limit(limit).Offset(from).Find(&users).Error; err != nil {
		return fail500(c, h.Log, "failed to load users", err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    users,
		"meta": fiber.Map{
			"page":        page,
			"limit":       limit,
			"total_items": total,
		},
	})
}

type setActiveReq struct {
	IsActive *bool `json:"is_active"`
}

// SetActive suspends or reactivates a login. Admins cannot suspend themselves.
func (h *AdminHandler) SetActive(c *fiber.Ctx) error {
	adminID, err := getAuth(c)
	if err != nil {
		return err
	}
	userID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid user id")
	}
	if userID == adminID {
		return fail(c, fiber.StatusBadRequest, "cannot change your own account")
	}

	var req setActiveReq
	if err := c.BodyParser(&req); err != nil || req.IsActive == nil {
		return fail(c, fiber.StatusBadRequest, "is_active is required")
	}

	res := h.DB.WithContext(c.UserContext()).Model(&models.User{}).Where("id = ?", userID).Update("is_active", *req.IsActive)
	if res.Error != nil {
		return fail500(c, h.Log, "failed to update user", res.Error)
	}
	if res.RowsAffected == 0 {
		return fail(c, fiber.StatusNotFound, "user not found")
	}
	h.Log.Info("user active flag changed",
		zap.Stringer("user", userID),
		zap.Bool("is_active", *req.IsActive),
		zap.Stringer("admin", adminID),
	)
	return c.JSON(fiber.Map{"success": true})
}
