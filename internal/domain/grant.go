package domain

import (
	"time"

	"github.com/google/uuid"
)

type GrantStatus string

const (
	GrantStatusCompleted GrantStatus = "completed"
	GrantStatusExpired   GrantStatus = "expired"
)

type DownloadGrant struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	FileID    uuid.UUID `json:"file_id" db:"file_id"`
	Token     string    `json:"-" db:"token"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	Consumed  bool      `json:"consumed" db:"consumed"`
}

// Expired reports whether the grant is past its window at now. The boundary itself counts as expired.
func (g *DownloadGrant) Expired(now time.Time) bool {
	return !now.Before(g.ExpiresAt)
}

func (g *DownloadGrant) RedeemableBy(userID uuid.UUID, now time.Time) bool {
	return g.UserID == userID && !g.Consumed && !g.Expired(now)
}

func (g *DownloadGrant) Status(now time.Time) GrantStatus {
	if g.Expired(now) {
		return GrantStatusExpired
	}
	return GrantStatusCompleted
}

// GrantWithFile is a grant joined with the file it points at.
type GrantWithFile struct {
	DownloadGrant
	OriginalName string `db:"original_filename"`
	FileType     string `db:"file_type"`
}

type HistoryItem struct {
	ID           uuid.UUID   `json:"id"`
	Filename     string      `json:"filename"`
	FileType     string      `json:"file_type"`
	DownloadedAt time.Time   `json:"downloaded_at"`
	DownloadURL  string      `json:"download_url"`
	Status       GrantStatus `json:"status"`
}

type DownloadLink struct {
	Token     string    `json:"token"`
	URL       string    `json:"download_link"`
	ExpiresAt time.Time `json:"expires_at"`
}
