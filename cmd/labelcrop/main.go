// Command labelcrop crops shipping-label PDFs on the local disk.
//
//	labelcrop [-origin] [-out dir] label.pdf ...
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/Lllllllleong/labelcrop/internal/gcp"
	"github.com/Lllllllleong/labelcrop/internal/models"
	"github.com/Lllllllleong/labelcrop/internal/services"
)

func main() {
	gcp.LoadDotEnv()

	origin := flag.Bool("origin", gcp.GetEnvBool("ADD_ORIGIN_TEXT", false), "stamp \""+models.OriginText+"\" onto each cropped label")
	outDir := flag.String("out", gcp.GetEnv("LABELCROP_OUT", "."), "directory for cropped files")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: labelcrop [-origin] [-out dir] file.pdf ...\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	os.Exit(run(logger, *origin, *outDir, flag.Args()))
}

func run(logger *slog.Logger, origin bool, outDir string, paths []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	files := make([]models.InputFile, 0, len(paths))
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err != nil {
			logger.Error("Failed to read input", "path", p, "error", err)
			return 1
		}
		files = append(files, models.InputFile{
			Name:        filepath.Base(p),
			ContentType: mime.TypeByExtension(filepath.Ext(p)),
			Bytes:       b,
		})
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		logger.Error("Failed to create output directory", "dir", outDir, "error", err)
		return 1
	}

	pipeline := services.NewPipeline(logger)
	report, err := pipeline.Run(ctx, files, models.TransformConfig{AddOriginText: origin},
		services.DirSink{Dir: outDir}, services.LogObserver{Logger: logger})
	switch {
	case errors.Is(err, services.ErrNoValidFiles):
		logger.Error("Nothing to crop", "error", err)
		return 2
	case err != nil:
		logger.Error("Batch stopped", "error", err)
		return 1
	}

	for _, name := range report.Outputs {
		fmt.Println(filepath.Join(outDir, name))
	}
	if len(report.Failures) > 0 {
		for _, f := range report.Failures {
			logger.Error("File failed", "file", f.Name, "kind", f.Kind, "error", f.Error)
		}
		return 1
	}
	return 0
}
