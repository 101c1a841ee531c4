package services

import (
	"log/slog"

	"github.com/Lllllllleong/labelcrop/internal/models"
)

// Per-file progress milestones.
const (
	progressStart   = 0
	progressDecoded = 40
	progressSetup   = 50
	progressPages   = 30 // filled proportionally to the pages transformed
	progressEncoded = 90
	progressEmitted = 100
)

// ProgressObserver receives a snapshot every time batch progress changes.
// Snapshots are values; observers may keep them.
type ProgressObserver interface {
	Observe(p models.BatchProgress)
}

// ProgressFunc adapts a function to ProgressObserver.
type ProgressFunc func(p models.BatchProgress)

func (f ProgressFunc) Observe(p models.BatchProgress) { f(p) }

// Observers fans snapshots out in order. Nil entries are skipped.
type Observers []ProgressObserver

func (o Observers) Observe(p models.BatchProgress) {
	for _, ob := range o {
		if ob != nil {
			ob.Observe(p)
		}
	}
}

// LogObserver logs file boundaries and the end of a batch.
type LogObserver struct {
	Logger *slog.Logger
}

func (l LogObserver) Observe(p models.BatchProgress) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	switch {
	case p.State != models.StateProcessing:
		logger.Info("Batch finished.", "state", p.State, "filesCompleted", p.FilesCompleted, "filesFailed", p.FilesFailed, "totalFiles", p.TotalFiles)
	case p.CurrentFileProgress == progressStart && p.CurrentFileName != "":
		logger.Info("Processing file.", "file", p.CurrentFileName, "position", p.FilesCompleted+1, "totalFiles", p.TotalFiles)
	case p.CurrentFileProgress == progressEmitted:
		logger.Info("File done.", "file", p.CurrentFileName)
	}
}

// progressReporter owns the mutable counters of one run and publishes
// immutable snapshots of them.
type progressReporter struct {
	snap     models.BatchProgress
	observer ProgressObserver
}

func newProgressReporter(total int, observer ProgressObserver) *progressReporter {
	return &progressReporter{
		snap:     models.BatchProgress{State: models.StateProcessing, TotalFiles: total},
		observer: observer,
	}
}

func (r *progressReporter) startFile(name string) {
	r.snap.CurrentFileName = name
	r.set(progressStart)
}

func (r *progressReporter) set(pct int) {
	r.snap.CurrentFileProgress = pct
	r.publish()
}

func (r *progressReporter) pages(done, total int) {
	if total <= 0 {
		return
	}
	r.set(progressSetup + done*progressPages/total)
}

func (r *progressReporter) finishFile(failed bool) {
	r.snap.FilesCompleted++
	if failed {
		r.snap.FilesFailed++
	}
	r.snap.CurrentFileName = ""
	r.snap.CurrentFileProgress = progressStart
	r.publish()
}

func (r *progressReporter) finish(state string) {
	r.snap.State = state
	r.snap.CurrentFileName = ""
	r.snap.CurrentFileProgress = progressStart
	r.publish()
}

func (r *progressReporter) publish() {
	if r.observer != nil {
		r.observer.Observe(r.snap)
	}
}
