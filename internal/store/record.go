package store

import (
	"time"

	"github.com/google/uuid"

	"fortune/internal/fate"
)

// createdAtLayout has fixed-width fractions so createdAt sorts lexically.
const createdAtLayout = "2006-01-02T15:04:05.000Z"

// Record is one persisted reading. It is written once and never updated.
type Record struct {
	ID        string        `json:"id"`
	UserID    string        `json:"userId,omitempty"`
	Category  fate.Category `json:"category"`
	Language  fate.Language `json:"language"`
	Input     fate.Request  `json:"input"`
	Result    fate.Result   `json:"result"`
	CreatedAt string        `json:"createdAt"`
}

// NewRecord stamps a fresh id and creation time on a finished reading.
// userID may be empty for anonymous callers.
func NewRecord(userID string, req fate.Request, out *fate.Outcome, now time.Time) Record {
	return Record{
		ID:        uuid.NewString(),
		UserID:    userID,
		Category:  out.Input.Category,
		Language:  out.Input.Language,
		Input:     req,
		Result:    out.Result,
		CreatedAt: now.UTC().Format(createdAtLayout),
	}
}

// CreatedDay is the UTC calendar day of the record, "" if CreatedAt is malformed.
func (r Record) CreatedDay() string {
	t, err := time.Parse(time.RFC3339, r.CreatedAt)
	if err != nil {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}
