package models

import "time"

// Batch represents one crop batch in Firestore.
// It tracks the overall status and the per-file outcome of the run.
type Batch struct {
	Source         string        `firestore:"source,omitempty"`
	Status         string        `firestore:"status,omitempty"`
	AddOriginText  bool          `firestore:"addOriginText"`
	TotalFiles     int           `firestore:"totalFiles"`
	FilesCompleted int           `firestore:"filesCompleted"`
	FilesFailed    int           `firestore:"filesFailed"`
	Outputs        []string      `firestore:"outputs,omitempty"`
	Skipped        []string      `firestore:"skipped,omitempty"`
	Failures       []FileFailure `firestore:"failures,omitempty"`
	ErrorDetails   string        `firestore:"errorDetails,omitempty"`
	CreatedAt      time.Time     `firestore:"createdAt,omitempty"`
	UpdatedAt      time.Time     `firestore:"updatedAt,omitempty"`
}

// Batch statuses as stored in Firestore.
const (
	BatchStatusProcessing = "PROCESSING"
	BatchStatusDone       = "DONE"
	BatchStatusCancelled  = "CANCELLED"
	BatchStatusFailed     = "FAILED"
)
