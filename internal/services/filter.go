package services

import (
	"mime"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/Lllllllleong/labelcrop/internal/models"
)

const (
	pdfMediaType     = "application/pdf"
	genericMediaType = "application/octet-stream"
	outputSuffix     = "-cropped.pdf"
)

// IsPDF reports whether f is declared as a PDF. Files without a declared type
// (or with the generic octet-stream type) are sniffed instead.
func IsPDF(f models.InputFile) bool {
	declared := strings.TrimSpace(f.ContentType)
	if declared != "" {
		mt, _, err := mime.ParseMediaType(declared)
		if err != nil {
			return false
		}
		if mt != genericMediaType {
			return mt == pdfMediaType
		}
	}
	return mimetype.Detect(f.Bytes).Is(pdfMediaType)
}

// FilterPDFs splits files into the PDFs to process and the names of the
// rejected items. Both keep the submission order.
func FilterPDFs(files []models.InputFile) (accepted []models.InputFile, rejected []string) {
	for _, f := range files {
		if IsPDF(f) {
			accepted = append(accepted, f)
		} else {
			rejected = append(rejected, f.Name)
		}
	}
	return accepted, rejected
}

// OutputName derives the name of the cropped file: a trailing ".pdf" is
// replaced with "-cropped.pdf".
func OutputName(name string) string {
	stem := name
	if ext := path.Ext(name); strings.EqualFold(ext, ".pdf") {
		stem = strings.TrimSuffix(name, ext)
	}
	return stem + outputSuffix
}

// IsOutputName reports whether name looks like something OutputName produced.
func IsOutputName(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), outputSuffix)
}
