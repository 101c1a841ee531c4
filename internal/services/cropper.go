package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"strings"

	"cloud.google.com/go/storage"

	"github.com/Lllllllleong/labelcrop/internal/gcp"
	"github.com/Lllllllleong/labelcrop/internal/models"
)

const defaultMaxUploadBytes = 32 << 20

type CropperConfig struct {
	ProjectID      string
	OutputBucket   string
	CollectionName string
	AddOriginText  bool
	MaxUploadBytes int64
}

// CropperFunction holds the dependencies shared by the label crop functions.
type CropperFunction struct {
	clients  *gcp.Clients
	pipeline *Pipeline
	config   CropperConfig
}

// GCSEvent is the payload of a GCS object finalize event.
type GCSEvent struct {
	Bucket      string `json:"bucket"`
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
}

// LoadCropperConfig reads and validates the environment.
func LoadCropperConfig() (CropperConfig, error) {
	config := CropperConfig{
		ProjectID:      gcp.GetEnv("PROJECT_ID", ""),
		OutputBucket:   gcp.GetEnv("CROPPED_LABELS_BUCKET", ""),
		CollectionName: gcp.GetEnv("FIRESTORE_COLLECTION", "labelBatches"),
		AddOriginText:  gcp.GetEnvBool("ADD_ORIGIN_TEXT", false),
		MaxUploadBytes: gcp.GetEnvInt64("MAX_UPLOAD_BYTES", defaultMaxUploadBytes),
	}
	if config.ProjectID == "" {
		return config, fmt.Errorf("PROJECT_ID environment variable must be set")
	}
	if config.OutputBucket == "" {
		return config, fmt.Errorf("CROPPED_LABELS_BUCKET environment variable must be set")
	}
	if config.MaxUploadBytes <= 0 {
		config.MaxUploadBytes = defaultMaxUploadBytes
	}
	return config, nil
}

func NewCropper(ctx context.Context) (*CropperFunction, error) {
	config, err := LoadCropperConfig()
	if err != nil {
		return nil, err
	}
	clients, err := gcp.NewClients(ctx, config.ProjectID)
	if err != nil {
		return nil, err
	}

	f := &CropperFunction{
		clients:  clients,
		pipeline: NewPipeline(slog.Default()),
		config:   config,
	}
	slog.Info("Label cropper initialized.", "outputBucket", config.OutputBucket, "addOriginText", config.AddOriginText)
	return f, nil
}

func (f *CropperFunction) Config() CropperConfig { return f.config }

func (f *CropperFunction) Pipeline() *Pipeline { return f.pipeline }

// ProcessObject crops a single uploaded label into the output bucket.
// Objects that are not PDFs, or that are themselves crop outputs, are
// skipped without error so the event is not redelivered. A label that could
// not be uploaded returns an error so that it is.
func (f *CropperFunction) ProcessObject(ctx context.Context, e GCSEvent) error {
	logCtx := slog.With("gcsBucket", e.Bucket, "gcsObject", e.Name)
	logCtx.Info("Processing new GCS object.")

	if IsOutputName(e.Name) {
		logCtx.Info("Object is a crop output. Skipping.")
		return nil
	}
	if declaredNonPDF(e.ContentType) {
		logCtx.Info("Object is not a PDF. Skipping.", "contentType", e.ContentType)
		return nil
	}

	b, contentType, err := gcp.ReadObject(ctx, f.clients.Storage, e.Bucket, e.Name)
	if err != nil {
		logCtx.Error("Failed to download source PDF", "error", err)
		return err
	}
	if e.ContentType != "" {
		contentType = e.ContentType
	}

	files := []models.InputFile{{Name: e.Name, ContentType: contentType, Bytes: b}}
	report, batchID, err := f.runTracked(ctx, fmt.Sprintf("gs://%s/%s", e.Bucket, e.Name), files, nil, models.TransformConfig{AddOriginText: f.config.AddOriginText})
	if errors.Is(err, ErrNoValidFiles) {
		logCtx.Info("Object is not a PDF. Skipping.", "contentType", contentType)
		return nil
	}
	if err != nil {
		return err
	}
	if err := undelivered(report); err != nil {
		logCtx.Error("Cropped label was not stored, requesting redelivery.", "batchId", batchID, "error", err)
		return err
	}
	logCtx.Info("Label processed.", "batchId", batchID, "outputs", report.Outputs, "skipped", report.Skipped, "failures", len(report.Failures))
	return nil
}

// ProcessPrefix crops every PDF stored under a bucket prefix. Objects that
// cannot be downloaded are reported as failed; the rest of the batch runs.
func (f *CropperFunction) ProcessPrefix(ctx context.Context, req *models.CropPrefixRequest) (*models.CropPrefixResponse, error) {
	if req.Bucket == "" {
		return nil, fmt.Errorf("bucket must be set")
	}
	logCtx := slog.With("gcsBucket", req.Bucket, "prefix", req.Prefix)

	objects, err := gcp.ListObjects(ctx, f.clients.Storage, req.Bucket, req.Prefix)
	if err != nil {
		logCtx.Error("Failed to list objects", "error", err)
		return nil, err
	}

	read := func(ctx context.Context, name string) ([]byte, error) {
		b, _, err := gcp.ReadObject(ctx, f.clients.Storage, req.Bucket, name)
		return b, err
	}
	listing := collectObjects(ctx, objects, read, logCtx)
	logCtx.Info("Collected objects for batch.", "objectCount", len(listing.files), "rejected", len(listing.rejected), "unreadable", len(listing.failures))
	if len(listing.files) == 0 && len(listing.failures) > 0 {
		return nil, fmt.Errorf("none of the %d PDFs under gs://%s/%s could be downloaded: %s", len(listing.failures), req.Bucket, req.Prefix, listing.failures[0].Error)
	}

	cfg := models.TransformConfig{AddOriginText: f.config.AddOriginText}
	if req.AddOriginText != nil {
		cfg.AddOriginText = *req.AddOriginText
	}
	report, batchID, err := f.runTracked(ctx, fmt.Sprintf("gs://%s/%s", req.Bucket, req.Prefix), listing.files, &listing, cfg)
	if errors.Is(err, ErrNoValidFiles) {
		return &models.CropPrefixResponse{Status: "no valid files", Report: report}, nil
	}
	if err != nil {
		return nil, err
	}
	return &models.CropPrefixResponse{Status: "success", BatchID: batchID, Report: report}, nil
}

// objectListing is what collectObjects gathered from a bucket listing.
type objectListing struct {
	files    []models.InputFile
	rejected []string
	failures []models.FileFailure
}

// merge adds the items dropped while listing to a pipeline report.
func (l *objectListing) merge(report *models.BatchReport) {
	if l == nil || report == nil {
		return
	}
	report.Rejected = append(append([]string(nil), l.rejected...), report.Rejected...)
	report.Failures = append(append([]models.FileFailure(nil), l.failures...), report.Failures...)
	report.TotalFiles += len(l.failures)
}

// collectObjects downloads the PDFs among objects. Objects declared as some
// other type are rejected without being downloaded; download errors are
// recorded per object.
func collectObjects(ctx context.Context, objects []*storage.ObjectAttrs, read func(context.Context, string) ([]byte, error), logger *slog.Logger) objectListing {
	var l objectListing
	for _, attrs := range objects {
		if strings.HasSuffix(attrs.Name, "/") || IsOutputName(attrs.Name) {
			continue
		}
		if declaredNonPDF(attrs.ContentType) {
			l.rejected = append(l.rejected, attrs.Name)
			continue
		}
		b, err := read(ctx, attrs.Name)
		if err != nil {
			logger.Error("Failed to download object", "gcsObject", attrs.Name, "error", err)
			fileErr := &FileError{Name: attrs.Name, Kind: KindRead, Err: err}
			l.failures = append(l.failures, fileErr.Failure())
			continue
		}
		l.files = append(l.files, models.InputFile{Name: attrs.Name, ContentType: attrs.ContentType, Bytes: b})
	}
	return l
}

// declaredNonPDF reports whether contentType names a type other than PDF.
// Undeclared and generic types have to be sniffed, so they do not count.
func declaredNonPDF(contentType string) bool {
	if strings.TrimSpace(contentType) == "" {
		return false
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return true
	}
	return mt != pdfMediaType && mt != genericMediaType
}

// undelivered returns an error if an output was produced but could not be
// stored. Such a run is worth retrying; a corrupt input is not.
func undelivered(report *models.BatchReport) error {
	if report == nil {
		return nil
	}
	for _, f := range report.Failures {
		if f.Kind == string(KindEmit) {
			return fmt.Errorf("failed to store output for %s: %s", f.Name, f.Error)
		}
	}
	return nil
}

// runTracked runs a batch into the output bucket and mirrors it to Firestore.
// Batches without a single PDF return ErrNoValidFiles and leave no record.
func (f *CropperFunction) runTracked(ctx context.Context, source string, files []models.InputFile, listing *objectListing, cfg models.TransformConfig) (*models.BatchReport, string, error) {
	if accepted, rejected := FilterPDFs(files); len(accepted) == 0 {
		report := &models.BatchReport{Rejected: rejected}
		listing.merge(report)
		return report, "", ErrNoValidFiles
	}

	tracker, err := StartBatch(ctx, f.clients.Firestore, f.config.CollectionName, source, cfg, slog.Default())
	if err != nil {
		slog.Error("Failed to create batch record", "source", source, "error", err)
		return nil, "", err
	}

	sink := NewGCSSink(f.clients.Storage, f.config.OutputBucket, slog.Default())
	report, runErr := f.pipeline.Run(ctx, files, cfg, sink, Observers{tracker, LogObserver{}})
	if report == nil {
		return nil, tracker.ID(), tracker.Fail(ctx, "batch did not run", runErr)
	}
	listing.merge(report)
	if err := tracker.Finish(ctx, report, runErr); err != nil {
		return report, tracker.ID(), err
	}
	return report, tracker.ID(), runErr
}
