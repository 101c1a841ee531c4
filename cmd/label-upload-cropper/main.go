package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/Lllllllleong/labelcrop/internal/services"
)

var (
	cropperInstance *services.CropperFunction
	once            sync.Once
	initErr         error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.CloudEvent("CropUploadedLabel", cropUploadedLabel)
}

// main is required by the Go Functions Framework.
func main() {}

// cropUploadedLabel is triggered by GCS object finalize events.
func cropUploadedLabel(ctx context.Context, e cloudevents.Event) error {
	once.Do(func() {
		cropperInstance, initErr = services.NewCropper(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}

	var gcsEvent services.GCSEvent
	if err := json.Unmarshal(e.Data(), &gcsEvent); err != nil {
		slog.Error("Failed to unmarshal event data", "error", err, "data", string(e.Data()))
		return fmt.Errorf("json.Unmarshal: %w", err)
	}

	// Errors are logged with context inside ProcessObject. Returning one marks
	// the invocation as failed so the event is retried.
	return cropperInstance.ProcessObject(ctx, gcsEvent)
}
