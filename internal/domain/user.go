package domain

import "time"

// User is a member of the group, keyed by the Telegram-assigned id.
// A row is created on the first authenticated request and never deleted;
// the display name follows whatever the client last reported.
type User struct {
	ID          int64     `json:"id"`
	DisplayName string    `json:"displayName"`
	CreatedAt   time.Time `json:"createdAt"`
}
