package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/semaphore"

	"github.com/Lllllllleong/labelcrop/internal/labelpdf"
	"github.com/Lllllllleong/labelcrop/internal/models"
)

// Sink receives each cropped file as soon as it is ready. The sink owns the
// output once Emit returns.
type Sink interface {
	Emit(ctx context.Context, out models.OutputFile) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, out models.OutputFile) error

func (f SinkFunc) Emit(ctx context.Context, out models.OutputFile) error { return f(ctx, out) }

// Pipeline crops batches of labels one file at a time.
//
// A pipeline admits a single batch at a time; concurrent Run calls wait for
// the running batch to finish. Within a batch, files are decoded,
// transformed, encoded and emitted strictly in order, so at most one parsed
// document is held in memory.
type Pipeline struct {
	queue  *semaphore.Weighted
	logger *slog.Logger
}

// NewPipeline creates a pipeline. A nil logger means slog.Default().
func NewPipeline(logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		queue:  semaphore.NewWeighted(1),
		logger: logger,
	}
}

// Run processes files with cfg, emitting every output to sink and every
// progress change to observer (which may be nil).
//
// Per-file failures never abort the batch; they are logged and listed in the
// report. An output the sink already holds (ErrOutputExists) is listed as
// skipped. Two files with the same output name cannot both be emitted; the
// later one fails with ErrDuplicateOutput. Run returns ErrNoValidFiles, without reporting any progress, if no
// submitted file is a PDF. Cancellation of ctx is honored between files
// only; a cancelled run returns the partial report together with ctx.Err().
func (p *Pipeline) Run(ctx context.Context, files []models.InputFile, cfg models.TransformConfig, sink Sink, observer ProgressObserver) (*models.BatchReport, error) {
	accepted, rejected := FilterPDFs(files)
	for _, name := range rejected {
		p.logger.Warn("Skipping input that is not a PDF.", "file", name, "error", ErrInvalidInputType)
	}
	if len(accepted) == 0 {
		p.logger.Warn("No valid files in batch.", "submitted", len(files))
		return &models.BatchReport{Rejected: rejected}, ErrNoValidFiles
	}

	if err := p.queue.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("failed to wait for running batch: %w", err)
	}
	defer p.queue.Release(1)

	report := &models.BatchReport{
		TotalFiles: len(accepted),
		Outputs:    make([]string, 0, len(accepted)),
		Rejected:   rejected,
	}
	logCtx := p.logger.With("totalFiles", len(accepted), "addOriginText", cfg.AddOriginText)
	logCtx.Info("Starting batch.")
	progress := newProgressReporter(len(accepted), observer)
	claimed := make(map[string]bool, len(accepted))

	for _, f := range accepted {
		if err := ctx.Err(); err != nil {
			report.Cancelled = true
			progress.finish(models.StateCancelled)
			logCtx.Warn("Batch cancelled between files.", "succeeded", len(report.Outputs), "failed", len(report.Failures), "error", err)
			return report, err
		}

		out, err := p.processFile(ctx, f, cfg, sink, progress, claimed)
		if errors.Is(err, ErrOutputExists) {
			name := OutputName(f.Name)
			claimed[name] = true
			logCtx.Info("Output already exists. Skipping.", "file", f.Name, "output", name)
			report.Skipped = append(report.Skipped, name)
			progress.finishFile(false)
			continue
		}
		if err != nil {
			var fileErr *FileError
			if !errors.As(err, &fileErr) {
				fileErr = &FileError{Name: f.Name, Kind: KindTransform, Err: err}
			}
			logCtx.Error("Failed to process file.", "file", f.Name, "kind", fileErr.Kind, "error", fileErr.Err)
			report.Failures = append(report.Failures, fileErr.Failure())
			progress.finishFile(true)
			continue
		}
		claimed[out.Name] = true
		report.Outputs = append(report.Outputs, out.Name)
		progress.finishFile(false)
	}

	progress.finish(models.StateDone)
	logCtx.Info("Batch complete.", "succeeded", len(report.Outputs), "skipped", len(report.Skipped), "failed", len(report.Failures))
	return report, nil
}

func (p *Pipeline) processFile(ctx context.Context, f models.InputFile, cfg models.TransformConfig, sink Sink, progress *progressReporter, claimed map[string]bool) (out *models.OutputFile, err error) {
	kind := KindDecode
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, &FileError{Name: f.Name, Kind: kind, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	progress.startFile(f.Name)
	if name := OutputName(f.Name); claimed[name] {
		return nil, &FileError{Name: f.Name, Kind: KindEmit, Err: fmt.Errorf("%w: %s", ErrDuplicateOutput, name)}
	}
	doc, err := labelpdf.Decode(f.Bytes)
	if err != nil {
		return nil, &FileError{Name: f.Name, Kind: KindDecode, Err: err}
	}
	progress.set(progressDecoded)

	kind = KindTransform
	progress.set(progressSetup)
	res, err := labelpdf.Transform(doc, cfg, progress.pages)
	if err != nil {
		return nil, &FileError{Name: f.Name, Kind: KindTransform, Err: err}
	}

	kind = KindEncode
	b, err := doc.Encode()
	if err != nil {
		return nil, &FileError{Name: f.Name, Kind: KindEncode, Err: err}
	}
	progress.set(progressEncoded)

	kind = KindEmit
	result := models.OutputFile{
		Name:       OutputName(f.Name),
		SourceName: f.Name,
		Bytes:      b,
		PageCount:  len(res.Pages),
	}
	if err := sink.Emit(ctx, result); err != nil {
		return nil, &FileError{Name: f.Name, Kind: KindEmit, Err: err}
	}
	progress.set(progressEmitted)
	return &result, nil
}
