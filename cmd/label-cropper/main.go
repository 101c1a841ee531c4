package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"

	"github.com/Lllllllleong/labelcrop/internal/models"
	"github.com/Lllllllleong/labelcrop/internal/services"
)

var (
	cropperInstance *services.CropperFunction
	uploadHandler   *services.UploadHandler
	once            sync.Once
	initErr         error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.HTTP("HandleCropLabels", handleCropLabels)
	functions.HTTP("HandleCropPrefix", handleCropPrefix)
}

func main() {}

func initialize() error {
	once.Do(func() {
		cropperInstance, initErr = services.NewCropper(context.Background())
		if initErr != nil {
			return
		}
		cfg := cropperInstance.Config()
		uploadHandler = services.NewUploadHandler(
			cropperInstance.Pipeline(),
			models.TransformConfig{AddOriginText: cfg.AddOriginText},
			cfg.MaxUploadBytes,
			slog.Default(),
		)
	})
	return initErr
}

// handleCropLabels crops the PDFs of a multipart upload and streams them back
// as a zip archive.
func handleCropLabels(w http.ResponseWriter, r *http.Request) {
	if err := initialize(); err != nil {
		slog.Error("Critical: Cropper initialization failed", "error", err)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}
	uploadHandler.ServeHTTP(w, r)
}

// handleCropPrefix crops every PDF under a GCS prefix into the output bucket.
func handleCropPrefix(w http.ResponseWriter, r *http.Request) {
	if err := initialize(); err != nil {
		slog.Error("Critical: Cropper initialization failed", "error", err)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}

	var req models.CropPrefixRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Could not decode request body", "error", err)
		http.Error(w, "Bad Request: could not parse JSON", http.StatusBadRequest)
		return
	}
	if req.Bucket == "" {
		http.Error(w, "Bad Request: bucket is required", http.StatusBadRequest)
		return
	}

	res, err := cropperInstance.ProcessPrefix(r.Context(), &req)
	if err != nil {
		// Error is already logged with context in ProcessPrefix.
		http.Error(w, "Internal Server Error: processing failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(res); err != nil {
		slog.Error("Failed to write response", "error", err, "batchId", res.BatchID)
		http.Error(w, "Internal Server Error: failed to encode response", http.StatusInternalServerError)
	}
}
