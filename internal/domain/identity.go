package domain

// Identity is the caller extracted from a verified init-data payload.
type Identity struct {
	ID          int64
	DisplayName string
}
