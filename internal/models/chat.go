// internal/models/chat.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Conversation represents a chat conversation between a client and a caregiver
type Conversation struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	ClientID        uuid.UUID `gorm:"type:uuid;index" json:"client_id"`
	CaregiverUserID uuid.UUID `gorm:"type:uuid;index" json:"caregiver_user_id"`

	LastMessageAt time.Time `json:"last_message_at"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	Client    *User     `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	Caregiver *User     `gorm:"foreignKey:CaregiverUserID" json:"caregiver,omitempty"`
	Messages  []Message `gorm:"foreignKey:ConversationID" json:"messages,omitempty"`
}

func (c *Conversation) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return
}

// Other returns the participant that isn't userID.
func (c *Conversation) Other(userID uuid.UUID) uuid.UUID {
	if c.ClientID == userID {
		return c.CaregiverUserID
	}
	return c.ClientID
}

func (c *Conversation) HasMember(userID uuid.UUID) bool {
	return c.ClientID == userID || c.CaregiverUserID == userID
}

// Message represents a message in a conversation
type Message struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ConversationID uuid.UUID  `gorm:"type:uuid;index" json:"conversation_id"`
	SenderID       uuid.UUID  `gorm:"type:uuid;index" json:"sender_id"`
	Type           string     `gorm:"default:'text'" json:"type"` // text, system
	Text           string     `json:"text"`
	IsRead         bool       `gorm:"default:false" json:"is_read"`
	ReadAt         *time.Time `json:"read_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`

	Sender *User `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return
}
