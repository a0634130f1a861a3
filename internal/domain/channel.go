package domain

// ChannelType represents a notification delivery channel.
type ChannelType string

// Notification channel types.
const (
	ChannelTypePush    ChannelType = "push"
	ChannelTypeChat    ChannelType = "chat"
	ChannelTypeWebhook ChannelType = "webhook"
)

// AllChannelTypes lists every channel in dispatch order.
var AllChannelTypes = []ChannelType{ChannelTypePush, ChannelTypeChat, ChannelTypeWebhook}

// IsValid checks if the channel type is known.
func (c ChannelType) IsValid() bool {
	return c == ChannelTypePush || c == ChannelTypeChat || c == ChannelTypeWebhook
}
