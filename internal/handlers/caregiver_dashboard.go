package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/platform_be_care/internal/models"
)

type CaregiverDashboardHandler struct {
	DB  *gorm.DB
	Log *zap.Logger
}

// Stats summarises a caregiver's bookings, earnings and unread chats.
func (h *CaregiverDashboardHandler) Stats(c *fiber.Ctx) error {
	userID, err := getAuth(c)
	if err != nil {
		return err
	}
	db := h.DB.WithContext(c.UserContext())

	var byStatus []struct {
		Status models.BookingStatus
		Count  int64
	}
	if err := db.Model(&models.Booking{}).
		Select("status, COUNT(*) as count").
		Where("caregiver_user_id = ?", userID).
		Group("status").
		Scan(&byStatus).Error; err != nil {
		return fail500(c, h.Log, "failed to count bookings", err)
	}
	counts := fiber.Map{}
	for _, row := range byStatus {
		counts[string(row.Status)] = row.Count
	}

	var earnings int64
	if err := db.Model(&models.Booking{}).
		Where("caregiver_user_id = ? AND status = ?", userID, models.BookingCompleted).
		Select("COALESCE(SUM(total_price), 0)").
		Scan(&earnings).Error; err != nil {
		return fail500(c, h.Log, "failed to sum earnings", err)
	}

	var unreadChats int64
	if err := db.Table("messages").
		Joins("JOIN conversations ON messages.conversation_id = conversations.id").
		Where("conversations.caregiver_user_id = ?", userID).
		Where("messages.sender_id <> ?", userID).
		Where("messages.is_read = ?", false).
		Count(&unreadChats).Error; err != nil {
		return fail500(c, h.Log, "failed to count unread messages", err)
	}

	data := fiber.Map{
		"bookings":       counts,
		"total_earnings": earnings,
		"unread_chats":   unreadChats,
	}

	var p models.CaregiverProfile
	if err := db.Select("approval_status", "average_rating", "review_count").
		Where("user_id = ?", userID).
		First(&p).Error; err == nil {
		data["approval_status"] = p.ApprovalStatus
		data["rating"] = p.AverageRating
		data["review_count"] = p.ReviewCount
	}

	return c.JSON(fiber.Map{"success": true, "data": data})
}
