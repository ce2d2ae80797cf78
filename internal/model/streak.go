package model

import "time"

// DefaultFreezes is the freeze allotment granted when a streak is first created.
const DefaultFreezes = 3

// Streak is one per user. Current and Longest count consecutive checked-in
// days; LastCheckIn is a day-key (YYYY-MM-DD) or nil if the streak has never
// started or was reset.
type Streak struct {
	ID               int64     `json:"id"`
	UserID           int64     `json:"user_id"`
	Current          int       `json:"current"`
	Longest          int       `json:"longest"`
	LastCheckIn      *string   `json:"last_check_in"`
	FreezesAvailable int       `json:"freezes_available"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
