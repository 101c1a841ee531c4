package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/Lllllllleong/labelcrop/internal/models"
)

// BatchTracker mirrors a batch run into a Firestore document. It observes
// progress, but only writes at file boundaries.
type BatchTracker struct {
	// ctx bounds the writes made from Observe, which has no context of its own.
	ctx           context.Context
	docRef        *firestore.DocumentRef
	logger        *slog.Logger
	lastCompleted int
	started       bool
}

// StartBatch creates the Firestore record for a new batch.
func StartBatch(ctx context.Context, client *firestore.Client, collection, source string, cfg models.TransformConfig, logger *slog.Logger) (*BatchTracker, error) {
	now := time.Now()
	docRef, _, err := client.Collection(collection).Add(ctx, models.Batch{
		Source:        source,
		Status:        models.BatchStatusProcessing,
		AddOriginText: cfg.AddOriginText,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create batch document: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchTracker{
		ctx:    ctx,
		docRef: docRef,
		logger: logger.With("batchId", docRef.ID),
	}, nil
}

// ID returns the Firestore document ID of the batch.
func (t *BatchTracker) ID() string {
	return t.docRef.ID
}

func (t *BatchTracker) Observe(p models.BatchProgress) {
	if p.State != models.StateProcessing {
		return
	}
	if t.started && p.FilesCompleted == t.lastCompleted {
		return
	}
	t.started = true
	t.lastCompleted = p.FilesCompleted
	if _, err := t.docRef.Update(t.ctx, progressUpdates(p)); err != nil {
		t.logger.Warn("Failed to record batch progress.", "filesCompleted", p.FilesCompleted, "error", err)
	}
}

// Finish records the final outcome of a run.
func (t *BatchTracker) Finish(ctx context.Context, report *models.BatchReport, runErr error) error {
	if _, err := t.docRef.Update(ctx, finishUpdates(report, runErr)); err != nil {
		t.logger.Error("CRITICAL: Failed to record batch outcome.", "error", err)
		return fmt.Errorf("failed to record batch outcome: %w", err)
	}
	return nil
}

// Fail logs message, marks the batch FAILED and returns the combined error.
func (t *BatchTracker) Fail(ctx context.Context, message string, originalErr error) error {
	fullError := fmt.Sprintf("%s: %v", message, originalErr)
	t.logger.Error(message, "error", originalErr)
	updates := []firestore.Update{
		{Path: "status", Value: models.BatchStatusFailed},
		{Path: "errorDetails", Value: fullError},
		{Path: "updatedAt", Value: firestore.ServerTimestamp},
	}
	if _, err := t.docRef.Update(ctx, updates); err != nil {
		t.logger.Error("CRITICAL: Failed to update Firestore status to FAILED after a processing error.", "updateError", err)
	}
	return fmt.Errorf("%s", fullError)
}

func progressUpdates(p models.BatchProgress) []firestore.Update {
	return []firestore.Update{
		{Path: "totalFiles", Value: p.TotalFiles},
		{Path: "filesCompleted", Value: p.FilesCompleted},
		{Path: "filesFailed", Value: p.FilesFailed},
		{Path: "updatedAt", Value: firestore.ServerTimestamp},
	}
}

func finishUpdates(report *models.BatchReport, runErr error) []firestore.Update {
	status := models.BatchStatusDone
	switch {
	case report != nil && report.Cancelled:
		status = models.BatchStatusCancelled
	case runErr != nil:
		status = models.BatchStatusFailed
	}

	updates := []firestore.Update{
		{Path: "status", Value: status},
		{Path: "updatedAt", Value: firestore.ServerTimestamp},
	}
	if report != nil {
		updates = append(updates,
			firestore.Update{Path: "totalFiles", Value: report.TotalFiles},
			firestore.Update{Path: "filesCompleted", Value: len(report.Outputs) + len(report.Skipped) + len(report.Failures)},
			firestore.Update{Path: "filesFailed", Value: len(report.Failures)},
			firestore.Update{Path: "outputs", Value: report.Outputs},
			firestore.Update{Path: "skipped", Value: report.Skipped},
			firestore.Update{Path: "failures", Value: report.Failures},
		)
	}
	if runErr != nil {
		updates = append(updates, firestore.Update{Path: "errorDetails", Value: runErr.Error()})
	}
	return updates
}
