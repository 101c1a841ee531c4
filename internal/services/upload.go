package services

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/Lllllllleong/labelcrop/internal/models"
)

const (
	uploadField        = "files"
	originTextField    = "addOriginText"
	failedFilesTrailer = "X-Failed-Files"
)

// UploadHandler crops the PDFs of a multipart upload and streams the results
// back as a zip archive, one entry per cropped file. Files that fail are
// listed in the X-Failed-Files trailer.
type UploadHandler struct {
	pipeline *Pipeline
	defaults models.TransformConfig
	maxBytes int64
	logger   *slog.Logger
}

func NewUploadHandler(pipeline *Pipeline, defaults models.TransformConfig, maxBytes int64, logger *slog.Logger) *UploadHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if maxBytes <= 0 {
		maxBytes = defaultMaxUploadBytes
	}
	return &UploadHandler{pipeline: pipeline, defaults: defaults, maxBytes: maxBytes, logger: logger}
}

func (h *UploadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		h.logger.Warn("Could not parse multipart upload", "error", err)
		http.Error(w, "Bad Request: could not parse multipart form", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	cfg := h.defaults
	if v := r.FormValue(originTextField); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			http.Error(w, fmt.Sprintf("Bad Request: invalid %s value %q", originTextField, v), http.StatusBadRequest)
			return
		}
		cfg.AddOriginText = b
	}

	files, err := readUploads(r.MultipartForm.File[uploadField])
	if err != nil {
		h.logger.Warn("Could not read uploaded file", "error", err)
		http.Error(w, "Bad Request: could not read uploaded files", http.StatusBadRequest)
		return
	}
	if accepted, _ := FilterPDFs(files); len(accepted) == 0 {
		h.logger.Warn("Upload contained no PDF files.", "submitted", len(files))
		http.Error(w, "Bad Request: no valid files", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="cropped-labels.zip"`)
	w.Header().Set("Trailer", failedFilesTrailer)
	w.WriteHeader(http.StatusOK)

	sink := NewZipSink(w)
	report, runErr := h.pipeline.Run(r.Context(), files, cfg, sink, LogObserver{Logger: h.logger})
	if err := sink.Close(); err != nil {
		h.logger.Error("Failed to finish zip archive", "error", err)
	}
	if runErr != nil && !errors.Is(runErr, r.Context().Err()) {
		h.logger.Error("Batch ended with error", "error", runErr)
	}
	if report != nil && len(report.Failures) > 0 {
		names := make([]string, 0, len(report.Failures))
		for _, f := range report.Failures {
			names = append(names, f.Name)
		}
		w.Header().Set(failedFilesTrailer, strings.Join(names, ","))
	}
}

func readUploads(headers []*multipart.FileHeader) ([]models.InputFile, error) {
	files := make([]models.InputFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", fh.Filename, err)
		}
		b, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", fh.Filename, err)
		}
		files = append(files, models.InputFile{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Bytes:       b,
		})
	}
	return files, nil
}
