package models

type User struct {
	UID         string `json:"uid" validate:"required"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	PhotoURL    string `json:"photoURL"`
}

// FriendStreak is the public part of another user's stats.
type FriendStreak struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL"`
	Streak      int    `json:"streak"`
	TodayCount  int    `json:"todayCount"`
	LastUpdated Day    `json:"lastUpdated"`
}
