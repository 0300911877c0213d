package entity

import "time"

type Player struct {
	ID         string    `json:"id"`
	Nickname   string    `json:"nickname,omitempty"`
	LastSeenAt time.Time `json:"last_seen_at"`
	CreatedAt  time.Time `json:"created_at"`
}
