package realtime

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const channelPrefix = "notifications:"

const (
	EventCaregiverApproved = "caregiver_approved"
	EventCaregiverRejected = "caregiver_rejected"
	EventCaregiverRemoved  = "caregiver_removed"
	EventBookingCreated    = "booking_created"
	EventBookingStatus     = "booking_status"
	EventNewMessage        = "new_message"
)

type Event struct {
	Type string    `json:"type"`
	Data any       `json:"data,omitempty"`
	At   time.Time `json:"at"`
}

func Channel(userID uuid.UUID) string {
	return channelPrefix + userID.String()
}

func userFromChannel(ch string) (uuid.UUID, bool) {
	rest, ok := strings.CutPrefix(ch, channelPrefix)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(rest)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// Notifier publishes user events. With Redis every instance's Relay delivers
// them; without it they go straight to the local hub.
type Notifier struct {
	RDB *redis.Client
	Hub *Hub
	Log *zap.Logger
	Now func() time.Time
}

func NewNotifier(rdb *redis.Client, hub *Hub, log *zap.Logger) *Notifier {
	return &Notifier{RDB: rdb, Hub: hub, Log: log, Now: time.Now}
}

// Notify is best effort; a failed publish is logged, never returned.
func (n *Notifier) Notify(ctx context.Context, userID uuid.UUID, typ string, data any) {
	if n == nil || userID == uuid.Nil {
		return
	}

	payload, err := json.Marshal(Event{Type: typ, Data: data, At: n.Now().UTC()})
	if err != nil {
		n.Log.Error("marshal notification", zap.String("type", typ), zap.Error(err))
		return
	}

	if n.RDB == nil {
		if n.Hub != nil {
			n.Hub.SendRaw(userID, payload)
		}
		return
	}

	if err := n.RDB.Publish(ctx, Channel(userID), payload).Err(); err != nil {
		n.Log.Warn("publish notification",
			zap.String("type", typ),
			zap.Stringer("user", userID),
			zap.Error(err),
		)
	}
}
