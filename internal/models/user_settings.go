package models

import "time"

// UserSettings holds per-owner preferences. Timezone is the owner's IANA
// zone name; it is copied onto each definition at creation time, so
// changing it later affects new reminders only.
type UserSettings struct {
	OwnerID   int64     `json:"owner_id"`
	Timezone  string    `json:"timezone"`
	UpdatedAt time.Time `json:"updated_at"`
}
