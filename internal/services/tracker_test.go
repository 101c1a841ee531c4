package services

import (
	"errors"
	"testing"

	"cloud.google.com/go/firestore"

	"github.com/Lllllllleong/labelcrop/internal/models"
)

func updateMap(updates []firestore.Update) map[string]interface{} {
	m := make(map[string]interface{}, len(updates))
	for _, u := range updates {
		m[u.Path] = u.Value
	}
	return m
}

func TestFinishUpdates(t *testing.T) {
	report := &models.BatchReport{
		TotalFiles: 3,
		Outputs:    []string{"a-cropped.pdf"},
		Skipped:    []string{"c-cropped.pdf"},
		Failures:   []models.FileFailure{{Name: "b.pdf", Kind: string(KindDecode), Error: "bad xref"}},
	}

	tests := []struct {
		name       string
		report     *models.BatchReport
		err        error
		wantStatus string
	}{
		{"done", report, nil, models.BatchStatusDone},
		{"cancelled", &models.BatchReport{TotalFiles: 3, Cancelled: true}, errors.New("context canceled"), models.BatchStatusCancelled},
		{"failed", nil, ErrNoValidFiles, models.BatchStatusFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := updateMap(finishUpdates(tt.report, tt.err))
			if m["status"] != tt.wantStatus {
				t.Errorf("status = %v, want %s", m["status"], tt.wantStatus)
			}
			if _, ok := m["errorDetails"]; ok != (tt.err != nil) {
				t.Errorf("errorDetails present = %v", ok)
			}
		})
	}

	m := updateMap(finishUpdates(report, nil))
	if m["filesCompleted"] != 3 || m["filesFailed"] != 1 || m["totalFiles"] != 3 {
		t.Errorf("counters = %v/%v/%v", m["filesCompleted"], m["filesFailed"], m["totalFiles"])
	}
	if skipped, ok := m["skipped"].([]string); !ok || len(skipped) != 1 || skipped[0] != "c-cropped.pdf" {
		t.Errorf("skipped = %v", m["skipped"])
	}
}

func TestProgressUpdates(t *testing.T) {
	m := updateMap(progressUpdates(models.BatchProgress{FilesCompleted: 2, FilesFailed: 1, TotalFiles: 5}))
	if m["filesCompleted"] != 2 || m["filesFailed"] != 1 || m["totalFiles"] != 5 {
		t.Errorf("updates = %v", m)
	}
	if m["updatedAt"] != firestore.ServerTimestamp {
		t.Errorf("updatedAt = %v", m["updatedAt"])
	}
}
