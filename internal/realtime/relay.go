package realtime

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Relay forwards every notifications:<userID> message into the local hub
// until ctx is done.
func Relay(ctx context.Context, rdb *redis.Client, hub *Hub, log *zap.Logger) {
	sub := rdb.PSubscribe(ctx, channelPrefix+"*")
	defer sub.Close()

	log.Info("notification relay subscribed", zap.String("pattern", channelPrefix+"*"))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			userID, ok := userFromChannel(msg.Channel)
			if !ok {
				log.Warn("relay: bad channel", zap.String("channel", msg.Channel))
				continue
			}
			hub.SendRaw(userID, []byte(msg.Payload))
		}
	}
}
