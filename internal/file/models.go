package file

import (
	"io"
	"time"

	"github.com/google/uuid"
)

// Record is the metadata stored for one uploaded file.
type Record struct {
	ID              uuid.UUID `json:"id"`
	OwnerID         uuid.UUID `json:"owner_id"`
	FileName        string    `json:"file_name"`
	StorageKey      string    `json:"-"`
	FileSize        int64     `json:"file_size"`
	ContentType     string    `json:"content_type"`
	Checksum        string    `json:"checksum"`
	UploadTimestamp time.Time `json:"upload_timestamp"`
}

// Upload describes content handed to Service.Store.
type Upload struct {
	Name        string
	Size        int64
	ContentType string
	Content     io.Reader
}

// Report summarizes one reconciliation pass.
type Report struct {
	StartedAt     time.Time `json:"started_at"`
	CompletedAt   time.Time `json:"completed_at"`
	Checked       int       `json:"checked"`
	OrphanedBlobs []string  `json:"orphaned_blobs"`
	MissingBlobs  []string  `json:"missing_blobs"`
}

// Consistent reports whether the pass found no mismatches.
func (r Report) Consistent() bool {
	return len(r.OrphanedBlobs) == 0 && len(r.MissingBlobs) == 0
}
