package labelpdf

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/Lllllllleong/labelcrop/internal/labelpdf/pdftest"
	"github.com/Lllllllleong/labelcrop/internal/models"
)

func decode(t *testing.T, b []byte) *Document {
	t.Helper()
	doc, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	return doc
}

// roundTrip encodes doc and parses the result again.
func roundTrip(t *testing.T, doc *Document) *Document {
	t.Helper()
	out, err := doc.Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	return decode(t, out)
}

func TestTransformCanonicalLabel(t *testing.T) {
	doc := decode(t, pdftest.Build(pdftest.Label))

	res, err := Transform(doc, models.TransformConfig{}, nil)
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	if len(res.Pages) != 1 {
		t.Fatalf("expected 1 placement, got %d", len(res.Pages))
	}
	if res.Pages[0].Text != nil {
		t.Errorf("origin text drawn although disabled")
	}

	out := roundTrip(t, doc)
	p, err := out.Page(1)
	if err != nil {
		t.Fatalf("Page(1) error = %v", err)
	}
	want := Rect{LLX: 0, LLY: 144, URX: 288, URY: 432}
	if p.CropBox != want {
		t.Errorf("crop box = %+v, want %+v", p.CropBox, want)
	}
	if p.MediaBox.Width() != 288 || p.MediaBox.Height() != 432 {
		t.Errorf("media box changed: %+v", p.MediaBox)
	}
}

func TestTransformPreservesPageCountAndOrder(t *testing.T) {
	in := []pdftest.Page{
		{Width: 200, Height: 300},
		{Width: 288, Height: 432},
		{Width: 400, Height: 600},
		{Width: 612, Height: 792},
	}
	doc := decode(t, pdftest.Build(in...))

	var calls [][2]int
	if _, err := Transform(doc, models.TransformConfig{}, func(done, total int) {
		calls = append(calls, [2]int{done, total})
	}); err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	if len(calls) != len(in) {
		t.Fatalf("expected %d page callbacks, got %d", len(in), len(calls))
	}
	for i, c := range calls {
		if c != [2]int{i + 1, len(in)} {
			t.Errorf("callback %d = %v", i, c)
		}
	}

	out := roundTrip(t, doc)
	if out.PageCount() != len(in) {
		t.Fatalf("page count = %d, want %d", out.PageCount(), len(in))
	}
	for i, want := range in {
		p, err := out.Page(i + 1)
		if err != nil {
			t.Fatalf("Page(%d) error = %v", i+1, err)
		}
		if p.MediaBox.Width() != want.Width {
			t.Errorf("page %d: width = %g, want %g (order changed?)", i+1, p.MediaBox.Width(), want.Width)
		}
		if math.Abs(p.CropBox.Height()-want.Height*4/6) > epsilon {
			t.Errorf("page %d: crop height = %g, want %g", i+1, p.CropBox.Height(), want.Height*4/6)
		}
		if math.Abs(p.CropBox.LLY-want.Height/3) > epsilon {
			t.Errorf("page %d: crop y = %g, want %g", i+1, p.CropBox.LLY, want.Height/3)
		}
	}
}

func TestTransformIsNotIdempotent(t *testing.T) {
	doc := decode(t, pdftest.Build(pdftest.Label))
	if _, err := Transform(doc, models.TransformConfig{}, nil); err != nil {
		t.Fatalf("first Transform() error = %v", err)
	}
	again := roundTrip(t, doc)
	if _, err := Transform(again, models.TransformConfig{}, nil); err != nil {
		t.Fatalf("second Transform() error = %v", err)
	}

	p, err := roundTrip(t, again).Page(1)
	if err != nil {
		t.Fatalf("Page(1) error = %v", err)
	}
	// 288 * 4/6 = 192, still anchored at the top of the page.
	want := Rect{LLX: 0, LLY: 240, URX: 288, URY: 432}
	if p.CropBox != want {
		t.Errorf("crop box after second pass = %+v, want %+v", p.CropBox, want)
	}
}

func TestTransformHonorsExistingCropBox(t *testing.T) {
	doc := decode(t, pdftest.Build(pdftest.Page{Width: 612, Height: 792, CropBox: []float64{0, 0, 288, 432}}))
	res, err := Transform(doc, models.TransformConfig{}, nil)
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	if got := res.Pages[0].CropBox; got != (Rect{LLX: 0, LLY: 144, URX: 288, URY: 432}) {
		t.Errorf("crop box = %+v", got)
	}
}

func TestTransformOriginText(t *testing.T) {
	in := []pdftest.Page{pdftest.Label, {Width: 612, Height: 792}, pdftest.Label}
	doc := decode(t, pdftest.Build(in...))

	res, err := Transform(doc, models.TransformConfig{AddOriginText: true}, nil)
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}

	var fontNr types.Integer
	for i, pl := range res.Pages {
		if pl.Text == nil {
			t.Fatalf("page %d: no text placement", pl.Number)
		}
		// Courier is fixed width: 13 glyphs of 600/1000 em at 12pt.
		if math.Abs(pl.Text.Width-93.6) > 1e-6 {
			t.Errorf("page %d: text width = %g, want 93.6", pl.Number, pl.Text.Width)
		}
		center := pl.Text.X + pl.Text.Width/2
		if math.Abs(center-in[i].Width/2) > 1e-6 {
			t.Errorf("page %d: text center = %g, want %g", pl.Number, center, in[i].Width/2)
		}
		wantY := 24 + in[i].Height/3
		if math.Abs(pl.Text.Y-wantY) > 1e-6 {
			t.Errorf("page %d: text y = %g, want %g", pl.Number, pl.Text.Y, wantY)
		}

		ref := originFontRef(t, doc, pl.Number)
		if i == 0 {
			fontNr = ref.ObjectNumber
		} else if ref.ObjectNumber != fontNr {
			t.Errorf("page %d: font object %d, want shared object %d", pl.Number, ref.ObjectNumber, fontNr)
		}
	}

	fontDict, err := doc.ctx.DereferenceDict(types.IndirectRef{ObjectNumber: fontNr})
	if err != nil {
		t.Fatalf("DereferenceDict() error = %v", err)
	}
	if base := fontDict.NameEntry("BaseFont"); base == nil || *base != originFontName {
		t.Errorf("BaseFont = %v, want %s", base, originFontName)
	}

	out := roundTrip(t, doc)
	if out.PageCount() != len(in) {
		t.Fatalf("page count = %d, want %d", out.PageCount(), len(in))
	}
	for i, pl := range res.Pages {
		content := pageContent(t, out, pl.Number)
		original := fmt.Sprintf("(page %d) Tj", i+1)
		stamp := fmt.Sprintf("1 0 0 1 %s %s Tm", formatNumber(pl.Text.X), formatNumber(pl.Text.Y))
		for _, want := range []string{original, stamp, "(Made In China) Tj"} {
			if !strings.Contains(content, want) {
				t.Errorf("page %d: content lacks %q:\n%s", pl.Number, want, content)
			}
		}
		if strings.Index(content, original) > strings.Index(content, "(Made In China) Tj") {
			t.Errorf("page %d: origin text drawn before the page content", pl.Number)
		}
		if strings.Contains(content, "ETQ") {
			t.Errorf("page %d: content streams run together:\n%s", pl.Number, content)
		}
	}
}

func TestTransformWithoutOriginTextLeavesContent(t *testing.T) {
	doc := decode(t, pdftest.Build(pdftest.Label))
	if _, err := Transform(doc, models.TransformConfig{}, nil); err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	content := pageContent(t, roundTrip(t, doc), 1)
	if strings.Contains(content, models.OriginText) {
		t.Errorf("origin text drawn although disabled:\n%s", content)
	}
	if !strings.Contains(content, "(page 1) Tj") {
		t.Errorf("page content lost:\n%s", content)
	}
}

// pageContent returns the decoded content streams of page nr, concatenated.
func pageContent(t *testing.T, doc *Document, nr int) string {
	t.Helper()
	r, err := pdfcpu.ExtractPageContent(doc.ctx, nr)
	if err != nil {
		t.Fatalf("ExtractPageContent(%d) error = %v", nr, err)
	}
	if r == nil {
		t.Fatalf("page %d has no content", nr)
	}
	b, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("reading page %d content: %v", nr, err)
	}
	return string(b)
}

func originFontRef(t *testing.T, doc *Document, nr int) types.IndirectRef {
	t.Helper()
	pageDict, _, _, err := doc.ctx.PageDict(nr, false)
	if err != nil {
		t.Fatalf("PageDict(%d) error = %v", nr, err)
	}
	res, err := doc.pageResources(pageDict)
	if err != nil {
		t.Fatalf("pageResources() error = %v", err)
	}
	fonts, err := doc.ctx.DereferenceDict(res["Font"])
	if err != nil {
		t.Fatalf("font resources: %v", err)
	}
	ref, ok := fonts[originFontKey].(types.IndirectRef)
	if !ok {
		t.Fatalf("page %d: %s not registered, fonts = %v", nr, originFontKey, fonts)
	}
	return ref
}

func TestTransformFailsWithoutMutatingOnBadGeometry(t *testing.T) {
	doc := decode(t, pdftest.Build(pdftest.Label, pdftest.Label))

	// Break the second page's media box.
	pageDict, _, _, err := doc.ctx.PageDict(2, false)
	if err != nil {
		t.Fatalf("PageDict(2) error = %v", err)
	}
	pageDict["MediaBox"] = types.Array{types.Integer(0), types.Integer(0), types.Name("x"), types.Integer(432)}

	_, err = Transform(doc, models.TransformConfig{AddOriginText: true}, nil)
	if err == nil {
		t.Fatal("Transform() succeeded on a page with a broken media box")
	}
	if !errors.Is(err, ErrBadPage) {
		t.Errorf("Transform() error = %v, want ErrBadPage", err)
	}

	first, _, _, err := doc.ctx.PageDict(1, false)
	if err != nil {
		t.Fatalf("PageDict(1) error = %v", err)
	}
	if _, found := first.Find("CropBox"); found {
		t.Errorf("page 1 was cropped although the document failed")
	}
}

func TestDecodeRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
	}{
		{"empty", nil},
		{"not a pdf", []byte("hello, this is not a PDF")},
		{"truncated", pdftest.Build(pdftest.Label)[:40]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(tt.in); err == nil {
				t.Fatalf("Decode() succeeded on %s input", tt.name)
			}
		})
	}
}
