package domain

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

type File struct {
	ID            uuid.UUID `json:"id" db:"id"`
	StoredName    string    `json:"filename" db:"stored_name"`
	OriginalName  string    `json:"original_filename" db:"original_filename"`
	FileType      string    `json:"file_type" db:"file_type"`
	SizeBytes     int64     `json:"file_size" db:"size_bytes"`
	UploaderID    uuid.UUID `json:"-" db:"uploader_id"`
	UploaderEmail string    `json:"uploaded_by" db:"uploader_email"`
	UploadedAt    time.Time `json:"uploaded_at" db:"uploaded_at"`
}

// Extension returns the lower-cased extension including the dot.
func Extension(name string) string {
	return strings.ToLower(filepath.Ext(name))
}
