package domain

import "time"

type UserProfile struct {
	UserID   string
	Name     string
	Email    string
	JoinedAt time.Time
}
