package services

import (
	"testing"

	"github.com/Lllllllleong/labelcrop/internal/labelpdf/pdftest"
	"github.com/Lllllllleong/labelcrop/internal/models"
)

func TestOutputName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"label.pdf", "label-cropped.pdf"},
		{"LABEL.PDF", "LABEL-cropped.pdf"},
		{"fba.label.pdf", "fba.label-cropped.pdf"},
		{"inbox/2024/label.pdf", "inbox/2024/label-cropped.pdf"},
		{"label", "label-cropped.pdf"},
		{"label.pdf.bak", "label.pdf.bak-cropped.pdf"},
	}
	for _, tt := range tests {
		if got := OutputName(tt.in); got != tt.want {
			t.Errorf("OutputName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsOutputName(t *testing.T) {
	if !IsOutputName("a/b-cropped.pdf") || !IsOutputName("B-CROPPED.PDF") {
		t.Errorf("crop outputs not recognized")
	}
	if IsOutputName("b.pdf") {
		t.Errorf("plain input recognized as output")
	}
}

func TestIsPDF(t *testing.T) {
	pdf := pdftest.Build(pdftest.Label)
	tests := []struct {
		name        string
		contentType string
		bytes       []byte
		want        bool
	}{
		{"declared pdf", "application/pdf", pdf, true},
		{"declared pdf with params", "application/pdf; name=label.pdf", []byte("garbage"), true},
		{"declared text", "text/plain", pdf, false},
		{"malformed declaration", "application/", pdf, false},
		{"undeclared pdf", "", pdf, true},
		{"undeclared text", "", []byte("just some text"), false},
		{"octet-stream pdf", "application/octet-stream", pdf, true},
		{"octet-stream text", "application/octet-stream", []byte("just some text"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := models.InputFile{Name: "x", ContentType: tt.contentType, Bytes: tt.bytes}
			if got := IsPDF(f); got != tt.want {
				t.Errorf("IsPDF() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilterPDFsKeepsOrder(t *testing.T) {
	pdf := pdftest.Build(pdftest.Label)
	files := []models.InputFile{
		{Name: "1.pdf", ContentType: "application/pdf", Bytes: pdf},
		{Name: "2.txt", ContentType: "text/plain"},
		{Name: "3.pdf", Bytes: pdf},
		{Name: "4.doc", ContentType: "application/msword"},
	}
	accepted, rejected := FilterPDFs(files)
	if len(accepted) != 2 || accepted[0].Name != "1.pdf" || accepted[1].Name != "3.pdf" {
		t.Errorf("accepted = %v", accepted)
	}
	if len(rejected) != 2 || rejected[0] != "2.txt" || rejected[1] != "4.doc" {
		t.Errorf("rejected = %v", rejected)
	}
}
