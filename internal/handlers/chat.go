package handlers

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/platform_be_care/internal/models"
	"github.com/Windi-Fikriyansyah/platform_be_care/internal/realtime"
	"github.com/Windi-Fikriyansyah/platform_be_care/internal/utils"
)

type ChatHandler struct {
	DB       *gorm.DB
	Notifier *realtime.Notifier
	IDKey    string
	Log      *zap.Logger
}

type createConversationReq struct {
	CaregiverID string `json:"caregiver_id"` // encrypted, used by clients
	ClientID    string `json:"client_id"`    // used by caregivers
}

// CreateOrGetConversation opens the single conversation between a client and a
// caregiver. Clients address an approved caregiver; caregivers may only open a
// chat with a client who has booked them.
func (h *ChatHandler) CreateOrGetConversation(c *fiber.Ctx) error {
	userID, err := getAuth(c)
	if err != nil {
		return err
	}

	var req createConversationReq
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request")
	}

	var clientID, caregiverUserID uuid.UUID
	switch models.Role(getRole(c)) {
	case models.RoleClient:
		rawID, err := utils.DecryptID(req.CaregiverID, h.IDKey)
		if err != nil {
			return fail(c, fiber.StatusBadRequest, "Invalid caregiver ID")
		}
		var p models.CaregiverProfile
		if err := h.DB.First(&p, "id = ?", rawID).Error; err != nil || !p.Searchable() {
			return fail(c, fiber.StatusNotFound, "Caregiver not found")
		}
		clientID, caregiverUserID = userID, p.UserID

	case models.RoleCaregiver:
		cid, err := uuid.Parse(req.ClientID)
		if err != nil {
			return fail(c, fiber.StatusBadRequest, "Invalid client ID")
		}
		var n int64
		if err := h.DB.Model(&models.Booking{}).
			Where("client_id = ? AND caregiver_user_id = ?", cid, userID).
			Count(&n).Error; err != nil {
			return fail500(c, h.Log, "Failed to check bookings", err)
		}
		if n == 0 {
			return fail(c, fiber.StatusForbidden, "No booking with this client")
		}
		clientID, caregiverUserID = cid, userID

	default:
		return fail(c, fiber.StatusForbidden, "Access denied")
	}

	var conv models.Conversation
	err = h.DB.
		Where("client_id = ? AND caregiver_user_id = ?", clientID, caregiverUserID).
		First(&conv).Error

	created := false
	if errors.Is(err, gorm.ErrRecordNotFound) {
		conv = models.Conversation{
			ClientID:        clientID,
			CaregiverUserID: caregiverUserID,
			LastMessageAt:   time.Now(),
		}
		if err := h.DB.Create(&conv).Error; err != nil {
			return fail500(c, h.Log, "Failed to create conversation", err)
		}
		created = true
	} else if err != nil {
		return fail500(c, h.Log, "Failed to fetch conversation", err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"created": created,
		"data":    conv,
	})
}

type UserMini struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	PhotoURL string `json:"photo_url,omitempty"`
}

type MessageResponse struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Type           string    `json:"type"`
	Text           string    `json:"text"`
	IsRead         bool      `json:"is_read"`
	CreatedAt      time.Time `json:"created_at"`
}

func toMessageResponse(m *models.Message) MessageResponse {
	return MessageResponse{
		ID:             m.ID.String(),
		ConversationID: m.ConversationID.String(),
		SenderID:       m.SenderID.String(),
		Type:           m.Type,
		Text:           m.Text,
		IsRead:         m.IsRead,
		CreatedAt:      m.CreatedAt,
	}
}

type ConversationOut struct {
	ID              string           `json:"id"`
	ClientID        string           `json:"client_id"`
	CaregiverUserID string           `json:"caregiver_user_id"`
	UpdatedAt       time.Time        `json:"updated_at"`
	UnreadCount     int64            `json:"unread_count"`
	Client          *UserMini        `json:"client,omitempty"`
	Caregiver       *UserMini        `json:"caregiver,omitempty"`
	LastMessage     *MessageResponse `json:"last_message,omitempty"`
}

func (h *ChatHandler) GetConversations(c *fiber.Ctx) error {
	userID, err := getAuth(c)
	if err != nil {
		return err
	}

	var convs []models.Conversation
	if err := h.DB.WithContext(c.UserContext()).
		Preload("Client").
		Preload("Caregiver").
		Preload("Caregiver.CaregiverProfile").
		Where("client_id = ? OR caregiver_user_id = ?", userID, userID).
		Order("last_message_at DESC").
		Find(&convs).Error; err != nil {
		return fail500(c, h.Log, "Failed to fetch conversations", err)
	}

	unread, err := h.unreadByConversation(c, convs, userID)
	if err != nil {
		return fail500(c, h.Log, "Failed to count unread messages", err)
	}

	out := make([]ConversationOut, 0, len(convs))
	for _, conv := range convs {
		item := ConversationOut{
			ID:              conv.ID.String(),
			ClientID:        conv.ClientID.String(),
			CaregiverUserID: conv.CaregiverUserID.String(),
			UpdatedAt:       conv.LastMessageAt,
			UnreadCount:     unread[conv.ID],
		}

		var last models.Message
		if err := h.DB.WithContext(c.UserContext()).
			Where("conversation_id = ?", conv.ID).
			Order("created_at DESC").
			First(&last).Error; err == nil {
			m := toMessageResponse(&last)
			item.LastMessage = &m
		}

		if conv.Client != nil {
			item.Client = &UserMini{ID: conv.Client.ID.String(), Name: conv.Client.Name}
		}
		if conv.Caregiver != nil {
			item.Caregiver = &UserMini{ID: conv.Caregiver.ID.String(), Name: conv.Caregiver.Name}
			if p := conv.Caregiver.CaregiverProfile; p != nil {
				item.Caregiver.PhotoURL = p.PhotoURL
			}
		}

		out = append(out, item)
	}

	return c.JSON(fiber.Map{"success": true, "data": out})
}

// unreadByConversation counts, per conversation, the messages userID has not read.
func (h *ChatHandler) unreadByConversation(c *fiber.Ctx, convs []models.Conversation, userID uuid.UUID) (map[uuid.UUID]int64, error) {
	out := make(map[uuid.UUID]int64, len(convs))
	if len(convs) == 0 {
		return out, nil
	}
	ids := make([]uuid.UUID, 0, len(convs))
	for _, conv := range convs {
		ids = append(ids, conv.ID)
	}

	var rows []struct {
		ConversationID uuid.UUID
		Unread         int64
	}
	if err := h.DB.WithContext(c.UserContext()).
		Model(&models.Message{}).
		Select("conversation_id, COUNT(*) AS unread").
		Where("conversation_id IN ? AND sender_id <> ? AND is_read = ?", ids, userID, false).
		Group("conversation_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.ConversationID] = r.Unread
	}
	return out, nil
}

// GetUnreadTotal counts unread messages addressed to the caller.
func (h *ChatHandler) GetUnreadTotal(c *fiber.Ctx) error {
	userID, err := getAuth(c)
	if err != nil {
		return err
	}

	var count int64
	if err := h.DB.Model(&models.Message{}).
		Joins("JOIN conversations ON messages.conversation_id = conversations.id").
		Where("(conversations.client_id = ? OR conversations.caregiver_user_id = ?) AND messages.sender_id <> ? AND messages.is_read = ?",
			userID, userID, userID, false).
		Count(&count).Error; err != nil {
		return fail500(c, h.Log, "Failed to count unread messages", err)
	}

	return c.JSON(fiber.Map{"success": true, "data": count})
}

// memberConversation loads :id and checks the caller takes part in it.
func (h *ChatHandler) memberConversation(c *fiber.Ctx, userID uuid.UUID) (*models.Conversation, error) {
	convID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Invalid conversation ID")
	}

	var conv models.Conversation
	if err := h.DB.First(&conv, "id = ?", convID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.NewError(fiber.StatusNotFound, "Conversation not found")
		}
		return nil, err
	}
	if !conv.HasMember(userID) {
		return nil, fiber.NewError(fiber.StatusForbidden, "Access denied")
	}
	return &conv, nil
}

func (h *ChatHandler) markRead(conv *models.Conversation, userID uuid.UUID) error {
	return h.DB.Model(&models.Message{}).
		Where("conversation_id = ? AND sender_id <> ? AND is_read = ?", conv.ID, userID, false).
		Updates(map[string]any{
			"is_read": true,
			"read_at": time.Now(),
		}).Error
}

// GetMessages returns the conversation oldest first and marks it read.
func (h *ChatHandler) GetMessages(c *fiber.Ctx) error {
	userID, err := getAuth(c)
	if err != nil {
		return err
	}
	conv, err := h.memberConversation(c, userID)
	if err != nil {
		return err
	}

	var messages []models.Message
	if err := h.DB.
		Where("conversation_id = ?", conv.ID).
		Order("created_at ASC").
		Find(&messages).Error; err != nil {
		return fail500(c, h.Log, "Failed to fetch messages", err)
	}

	if err := h.markRead(conv, userID); err != nil {
		h.Log.Warn("mark messages read", zap.Error(err))
	}

	out := make([]MessageResponse, 0, len(messages))
	for i := range messages {
		out = append(out, toMessageResponse(&messages[i]))
	}
	return c.JSON(fiber.Map{"success": true, "data": out})
}

func (h *ChatHandler) MarkAsRead(c *fiber.Ctx) error {
	userID, err := getAuth(c)
	if err != nil {
		return err
	}
	conv, err := h.memberConversation(c, userID)
	if err != nil {
		return err
	}

	if err := h.markRead(conv, userID); err != nil {
		return fail500(c, h.Log, "Failed to mark messages as read", err)
	}
	return c.JSON(fiber.Map{"success": true})
}

func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	userID, err := getAuth(c)
	if err != nil {
		return err
	}
	conv, err := h.memberConversation(c, userID)
	if err != nil {
		return err
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		return fail(c, fiber.StatusBadRequest, "Text is required")
	}

	msg := models.Message{
		ConversationID: conv.ID,
		SenderID:       userID,
		Type:           "text",
		Text:           strings.TrimSpace(req.Text),
	}
	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&msg).Error; err != nil {
			return err
		}
		return tx.Model(&models.Conversation{}).
			Where("id = ?", conv.ID).
			Update("last_message_at", msg.CreatedAt).Error
	})
	if err != nil {
		return fail500(c, h.Log, "Failed to send message", err)
	}

	resp := toMessageResponse(&msg)
	payload := fiber.Map{"message": resp}
	h.Notifier.Notify(c.UserContext(), conv.Other(userID), realtime.EventNewMessage, payload)
	h.Notifier.Notify(c.UserContext(), userID, realtime.EventNewMessage, payload)

	return c.JSON(fiber.Map{"success": true, "data": resp})
}
