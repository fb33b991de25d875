package domain

import "time"

// Member represents user's participation meta for a room.
// No transport or lifecycle logic here.
type Member struct {
	User     *User
	Language Language
	JoinedAt time.Time
}

// NewMember avoids raw literals in adapters and keeps construction obvious.
func NewMember(user *User, lang Language) *Member {
	return &Member{User: user, Language: lang, JoinedAt: time.Now()}
}
