package domain

import "time"

// Role is the access level of an API caller.
type Role string

// Roles, from least to most privileged.
const (
	RoleResponder Role = "responder"
	RoleManager   Role = "manager"
	RoleAdmin     Role = "admin"
)

var roleRank = map[Role]int{
	RoleResponder: 1,
	RoleManager:   2,
	RoleAdmin:     3,
}

// HasPermission reports whether the role is at least minRole.
func (r Role) HasPermission(minRole Role) bool {
	return roleRank[r] >= roleRank[minRole] && roleRank[r] > 0
}

// User is a person who can be on call.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NotificationConfig holds the per-user delivery targets. Empty fields
// mean the channel is not configured.
type NotificationConfig struct {
	UserID     string `json:"user_id"`
	PushToken  string `json:"push_token"`
	ChatID     string `json:"chat_id"`
	WebhookURL string `json:"webhook_url"`
}

// Target returns the configured address for a channel.
func (c *NotificationConfig) Target(ch ChannelType) string {
	switch ch {
	case ChannelTypePush:
		return c.PushToken
	case ChannelTypeChat:
		return c.ChatID
	case ChannelTypeWebhook:
		return c.WebhookURL
	}
	return ""
}
