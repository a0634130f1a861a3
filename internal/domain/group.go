package domain

// Group is a set of users notified together.
type Group struct {
	ID      string        `json:"id"`
	Name    string        `json:"name"`
	Members []GroupMember `json:"members"`
}

// GroupMember is a user's membership in a group.
type GroupMember struct {
	UserID   string `json:"user_id"`
	IsActive bool   `json:"is_active"`
}

// ActiveMembers returns the ids of members that should be notified.
func (g *Group) ActiveMembers() []string {
	ids := make([]string, 0, len(g.Members))
	for _, m := range g.Members {
		if m.IsActive {
			ids = append(ids, m.UserID)
		}
	}
	return ids
}
