package corrections

import (
	"context"
	"time"
)

// Correction records a user fixing a mis-recognized sentence. Corrections
// feed incremental model retraining, so unlike capture-session state they
// outlive the session that produced them.
type Correction struct {
	ID            string    `json:"id"`
	SessionID     string    `json:"session_id"`
	UserID        string    `json:"user_id"`
	OriginalText  string    `json:"original_text"`
	CorrectedText string    `json:"corrected_text"`
	Processed     bool      `json:"processed"`
	CreatedAt     time.Time `json:"created_at"`
}

// Store persists and retrieves recognition corrections.
type Store interface {
	Save(ctx context.Context, c Correction) error
	Unprocessed(ctx context.Context, limit int) ([]Correction, error)
	MarkProcessed(ctx context.Context, ids []string) error
	Close() error
}
