// Package domain defines the snapshot ingestion contract.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// ErrEmptySheet is returned when the workbook has no header row or no
// data rows at all.
var ErrEmptySheet = errors.New("empty sheet or missing header row")

// Result summarizes one ingestion run. On a duplicate upload only
// Duplicate, SnapshotID and UploadedAt are set.
type Result struct {
	Duplicate       bool         `json:"duplicate"`
	SnapshotID      snowflake.ID `json:"snapshot_id"`
	UploadedAt      *time.Time   `json:"uploaded_at,omitempty"`
	CreatedMachines int          `json:"created_machines"`
	UpdatedMachines int          `json:"updated_machines"`
	InsertedDaily   int          `json:"inserted_daily"`
	SkippedDaily    int          `json:"skipped_daily"`
}

// Service ingests one regulator export workbook.
type Service interface {
	// Ingest parses the workbook bytes and reconciles every row into the
	// fleet tables. The same bytes ingested twice are a no-op unless force
	// is set, which records a fresh snapshot regardless of history.
	Ingest(ctx context.Context, filename string, data []byte, force bool) (Result, error)
}
