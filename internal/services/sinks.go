package services

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"cloud.google.com/go/storage"

	"github.com/Lllllllleong/labelcrop/internal/gcp"
	"github.com/Lllllllleong/labelcrop/internal/models"
)

// MemorySink keeps every output in emission order.
type MemorySink struct {
	mu    sync.Mutex
	files []models.OutputFile
}

func (s *MemorySink) Emit(_ context.Context, out models.OutputFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = append(s.files, out)
	return nil
}

// Files returns the outputs received so far.
func (s *MemorySink) Files() []models.OutputFile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.OutputFile(nil), s.files...)
}

// ZipSink streams each output as one entry of a zip archive. Entries are
// flushed to the underlying writer as soon as they are complete.
type ZipSink struct {
	zw      *zip.Writer
	flusher http.Flusher
	now     func() time.Time
}

func NewZipSink(w io.Writer) *ZipSink {
	s := &ZipSink{zw: zip.NewWriter(w), now: time.Now}
	if f, ok := w.(http.Flusher); ok {
		s.flusher = f
	}
	return s
}

func (s *ZipSink) Emit(_ context.Context, out models.OutputFile) error {
	entry, err := s.zw.CreateHeader(&zip.FileHeader{
		Name:     path.Base(out.Name),
		Method:   zip.Store,
		Modified: s.now(),
	})
	if err != nil {
		return fmt.Errorf("failed to create zip entry %s: %w", out.Name, err)
	}
	if _, err := entry.Write(out.Bytes); err != nil {
		return fmt.Errorf("failed to write zip entry %s: %w", out.Name, err)
	}
	if err := s.zw.Flush(); err != nil {
		return fmt.Errorf("failed to flush zip entry %s: %w", out.Name, err)
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}

// Close writes the zip central directory.
func (s *ZipSink) Close() error {
	return s.zw.Close()
}

// DirSink writes outputs into a local directory.
type DirSink struct {
	Dir string
}

func (s DirSink) Emit(_ context.Context, out models.OutputFile) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output dir %s: %w", s.Dir, err)
	}
	dest := filepath.Join(s.Dir, filepath.Base(out.Name))
	if err := os.WriteFile(dest, out.Bytes, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", dest, err)
	}
	return nil
}

// GCSSink uploads outputs to a bucket, retrying with exponential backoff.
// Existing objects are left untouched and reported with ErrOutputExists, so
// redelivered events are harmless.
type GCSSink struct {
	bucket     *storage.BucketHandle
	bucketName string
	maxRetries int
	backoff    time.Duration
	logger     *slog.Logger
}

func NewGCSSink(client *storage.Client, bucketName string, logger *slog.Logger) *GCSSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &GCSSink{
		bucket:     client.Bucket(bucketName),
		bucketName: bucketName,
		maxRetries: 4,
		backoff:    time.Second,
		logger:     logger,
	}
}

func (s *GCSSink) Emit(ctx context.Context, out models.OutputFile) error {
	backoff := s.backoff
	var lastErr error

	for i := 0; i < s.maxRetries; i++ {
		writeCtx, cancel := context.WithTimeout(ctx, 50*time.Second)
		written, err := gcp.SaveToGCSAtomically(writeCtx, s.bucket, out.Name, pdfMediaType, out.Bytes)
		cancel()
		if err == nil {
			uri := fmt.Sprintf("gs://%s/%s", s.bucketName, out.Name)
			if !written {
				return fmt.Errorf("%s: %w", uri, ErrOutputExists)
			}
			s.logger.Info("Uploaded cropped label.", "gcsUri", uri)
			return nil
		}

		lastErr = err
		s.logger.Warn(
			"Upload failed, will retry.",
			"gcsObject", out.Name,
			"attempt", i+1,
			"maxRetries", s.maxRetries,
			"backoff", backoff.String(),
			"error", err,
		)

		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("upload for %s failed after all retries: %w", out.Name, lastErr)
}
