package dto

// SaveSlotRequest is the body of POST /api/availability. Hour is a
// pointer so a missing field can be told apart from hour zero.
type SaveSlotRequest struct {
	Date   string `json:"date"`
	Hour   *int   `json:"hour"`
	Status string `json:"status"`
}

// BatchSaveRequest is the body of POST /api/availability/batch.
type BatchSaveRequest struct {
	Slots []SaveSlotRequest `json:"slots"`
}

// DeletedSlotResponse acknowledges a red save: the row (if any) is gone.
type DeletedSlotResponse struct {
	UserID  int64  `json:"userId"`
	Date    string `json:"date"`
	Hour    int    `json:"hour"`
	Status  string `json:"status"`
	Deleted bool   `json:"deleted"`
}
