package labelpdf

import (
	"math"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

const (
	// The top 4/6 of a 4x6 label is kept; the bottom 2/6 is discarded.
	keepNumerator   = 4
	keepDenominator = 6

	// Baseline of the origin text above the bottom edge of the cropped area.
	originTextOffset = 24
)

// Rect is a PDF rectangle in user space units, normalized so that LL is the
// lower left corner.
type Rect struct {
	LLX, LLY, URX, URY float64
}

// NewRect returns the normalized rectangle spanned by two corners.
func NewRect(llx, lly, urx, ury float64) Rect {
	return Rect{
		LLX: math.Min(llx, urx),
		LLY: math.Min(lly, ury),
		URX: math.Max(llx, urx),
		URY: math.Max(lly, ury),
	}
}

func (r Rect) Width() float64  { return r.URX - r.LLX }
func (r Rect) Height() float64 { return r.URY - r.LLY }

// Array renders r as a PDF rectangle array.
func (r Rect) Array() types.Array {
	return types.Array{types.Float(r.LLX), types.Float(r.LLY), types.Float(r.URX), types.Float(r.URY)}
}

func keptHeight(h float64) float64 {
	return h * keepNumerator / keepDenominator
}

// CropRect keeps the top 4/6 of box at full width.
func CropRect(box Rect) Rect {
	h := box.Height()
	return Rect{
		LLX: box.LLX,
		LLY: box.LLY + h - keptHeight(h),
		URX: box.URX,
		URY: box.URY,
	}
}

// OriginTextPosition returns the baseline origin for a line of text of the
// given width: horizontally centered on box, originTextOffset above the
// bottom edge of CropRect(box).
func OriginTextPosition(box Rect, textWidth float64) (x, y float64) {
	h := box.Height()
	x = box.LLX + (box.Width()-textWidth)/2
	y = box.LLY + originTextOffset + (h - keptHeight(h))
	return x, y
}
