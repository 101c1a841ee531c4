package labelpdf

import (
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/Lllllllleong/labelcrop/internal/models"
)

// TextPlacement is where the origin text was drawn, in user space.
type TextPlacement struct {
	X, Y     float64
	Width    float64
	FontSize int
}

// PagePlacement is the outcome of transforming one page.
type PagePlacement struct {
	Number  int
	CropBox Rect
	Text    *TextPlacement
}

// Result lists the placements of every page in document order.
type Result struct {
	Pages []PagePlacement
}

// PageFunc is called after each page has been transformed.
type PageFunc func(done, total int)

// Transform crops every page of doc to the top 4/6 of its visible area and,
// if cfg.AddOriginText is set, stamps the origin text near the bottom of the
// cropped area.
//
// The geometry of all pages is read before any page is modified, so a page
// with an unreadable box fails the document with nothing changed.
func Transform(doc *Document, cfg models.TransformConfig, onPage PageFunc) (*Result, error) {
	total := doc.PageCount()
	pages := make([]Page, 0, total)
	dicts := make([]types.Dict, 0, total)
	for nr := 1; nr <= total; nr++ {
		p, d, err := doc.page(nr)
		if err != nil {
			return nil, err
		}
		pages = append(pages, p)
		dicts = append(dicts, d)
	}

	var s *stamper
	if cfg.AddOriginText {
		var err error
		if s, err = doc.newStamper(); err != nil {
			return nil, err
		}
	}

	res := &Result{Pages: make([]PagePlacement, 0, total)}
	for i, p := range pages {
		crop := CropRect(p.CropBox)
		placement := PagePlacement{Number: p.Number, CropBox: crop}
		if s != nil {
			tp, err := s.stamp(dicts[i], p.CropBox)
			if err != nil {
				return nil, fmt.Errorf("page %d: %w", p.Number, err)
			}
			placement.Text = &tp
		}
		dicts[i]["CropBox"] = crop.Array()
		res.Pages = append(res.Pages, placement)
		if onPage != nil {
			onPage(i+1, total)
		}
	}
	return res, nil
}
