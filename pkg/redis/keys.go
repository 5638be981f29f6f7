package redis

import "fmt"

// Redis key patterns for the application
// Following the pattern: prefix:entity:id or prefix:entity:id:attribute

var keyPrefix = "botdeck"

// SetKeyPrefix namespaces every key and channel, letting several deployments share a database
func SetKeyPrefix(prefix string) {
	if prefix != "" {
		keyPrefix = prefix
	}
}

func key(format string, args ...interface{}) string {
	return keyPrefix + ":" + fmt.Sprintf(format, args...)
}

// Bot keys
func BotKey(botID string) string {
	return key("bot:%s", botID)
}

func BotsKey() string {
	return key("bots")
}

func UserBotsKey(userID string) string {
	return key("user_bots:%s", userID)
}

// Trade history (append-only list)
func BotTradesKey(botID string) string {
	return key("bot_trades:%s", botID)
}

// Exchange connection keys
func ConnectionKey(connectionID string) string {
	return key("connection:%s", connectionID)
}

func ConnectionsKey() string {
	return key("connections")
}

// Market data cache keys
func QuoteCacheKey(pair string) string {
	return key("cache:quote:%s", pair)
}

func VenueQuotesCacheKey(pair string) string {
	return key("cache:venue_quotes:%s", pair)
}

// Rate limiting keys
func RateLimitKey(identifier, action string) string {
	return key("rate_limit:%s:%s", action, identifier)
}

// Pub/Sub channels
const (
	channelUser      = "channel:user:"
	channelBroadcast = "channel:broadcast"
)

// UserChannel returns a user-specific channel
func UserChannel(userID string) string {
	return keyPrefix + ":" + channelUser + userID
}

// UserChannelPattern matches every user channel
func UserChannelPattern() string {
	return keyPrefix + ":" + channelUser + "*"
}

// BroadcastChannel carries events for every connected client
func BroadcastChannel() string {
	return keyPrefix + ":" + channelBroadcast
}

// UserIDFromChannel extracts the user id from a user channel name
func UserIDFromChannel(channel string) (string, bool) {
	prefix := keyPrefix + ":" + channelUser
	if len(channel) <= len(prefix) || channel[:len(prefix)] != prefix {
		return "", false
	}
	return channel[len(prefix):], true
}
