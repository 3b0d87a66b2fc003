package domain

import "time"

// SlotStatus is the tri-state availability of one hour slot.
type SlotStatus string

const (
	StatusGreen  SlotStatus = "green"
	StatusYellow SlotStatus = "yellow"
	StatusRed    SlotStatus = "red"
)

// ParseSlotStatus maps a raw string onto the enumeration.
func ParseSlotStatus(s string) (SlotStatus, bool) {
	switch SlotStatus(s) {
	case StatusGreen, StatusYellow, StatusRed:
		return SlotStatus(s), true
	}
	return "", false
}

// AvailabilitySlot is one stored hour for one user. Red slots are never
// stored: absence of a row for (userId, date, hour) means red.
type AvailabilitySlot struct {
	ID        int64      `json:"id"`
	UserID    int64      `json:"userId"`
	Date      string     `json:"date"`
	Hour      int        `json:"hour"`
	Status    SlotStatus `json:"status"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// AvailabilityEntry is a slot joined with the owner's display name,
// as returned by range queries.
type AvailabilityEntry struct {
	AvailabilitySlot
	DisplayName string `json:"displayName"`
}

// SlotInput is an unsaved slot as submitted by a client.
type SlotInput struct {
	Date   string
	Hour   int
	Status SlotStatus
}

// DateLayout is the canonical calendar-date form used on the wire and in
// cache keys. Storage representation is normalized to it on read.
const DateLayout = "2006-01-02"

// ValidDate reports whether s is a well-formed YYYY-MM-DD calendar date.
func ValidDate(s string) bool {
	t, err := time.Parse(DateLayout, s)
	return err == nil && t.Format(DateLayout) == s
}

// Validate checks a slot against the write invariants. It returns a
// field->message map, nil when the slot is acceptable.
func (in SlotInput) Validate() map[string]string {
	errs := make(map[string]string)
	if !ValidDate(in.Date) {
		errs["date"] = "date must be a valid YYYY-MM-DD calendar date"
	}
	if in.Hour < 0 || in.Hour > 23 {
		errs["hour"] = "hour must be between 0 and 23"
	}
	if _, ok := ParseSlotStatus(string(in.Status)); !ok {
		errs["status"] = "status must be green, yellow, or red"
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}
