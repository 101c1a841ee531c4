// Package pdftest writes small, well-formed PDFs for tests.
package pdftest

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// Page describes one generated page. CropBox is optional.
type Page struct {
	Width, Height float64
	CropBox       []float64
}

// Label is a 4x6 inch page.
var Label = Page{Width: 288, Height: 432}

// Build returns a PDF with one page per entry. Every page draws a line of
// text so that it carries a font resource and a content stream.
func Build(pages ...Page) []byte {
	objs := []string{"<< /Type /Catalog /Pages 2 0 R >>", ""}

	kids := make([]string, 0, len(pages))
	for i, p := range pages {
		pageNr := len(objs) + 1
		kids = append(kids, fmt.Sprintf("%d 0 R", pageNr))

		var crop string
		if len(p.CropBox) == 4 {
			crop = fmt.Sprintf(" /CropBox [%s %s %s %s]", num(p.CropBox[0]), num(p.CropBox[1]), num(p.CropBox[2]), num(p.CropBox[3]))
		}
		objs = append(objs, fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %s %s]%s /Resources << /Font << /F1 << /Type /Font /Subtype /Type1 /BaseFont /Helvetica >> >> >> /Contents %d 0 R >>",
			num(p.Width), num(p.Height), crop, pageNr+1))

		content := fmt.Sprintf("BT /F1 10 Tf 10 10 Td (page %d) Tj ET", i+1)
		objs = append(objs, fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content))
	}
	objs[1] = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages))

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, o := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objs)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return buf.Bytes()
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
