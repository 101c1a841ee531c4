// Package labelpdf crops 4x6 shipping labels down to their top 4x4 area and
// optionally stamps an origin-country line onto the cropped region.
package labelpdf

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

var (
	ErrEmptyInput      = errors.New("empty input")
	ErrNoPages         = errors.New("document has no pages")
	ErrMissingPage     = errors.New("page not found")
	ErrBadPage         = errors.New("malformed page")
	ErrNoMediaBox      = errors.New("page has no media box")
	ErrBadRectangle    = errors.New("malformed rectangle")
	ErrPageTreeTooDeep = errors.New("page tree too deep")
)

// maxTreeDepth bounds the walk up the Parent chain when resolving inherited
// page attributes.
const maxTreeDepth = 64

var disableConfigDir sync.Once

func newConfiguration() *model.Configuration {
	disableConfigDir.Do(api.DisableConfigDir)
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	return cfg
}

// Document is a parsed PDF owned by a single processing step.
type Document struct {
	ctx *model.Context
}

// Page describes the geometry of one page. CropBox falls back to the
// MediaBox when the page declares none.
type Page struct {
	Number   int
	MediaBox Rect
	CropBox  Rect
}

// Decode parses, validates and optimizes a PDF held in memory.
func Decode(b []byte) (*Document, error) {
	if len(b) == 0 {
		return nil, ErrEmptyInput
	}
	ctx, err := api.ReadContext(bytes.NewReader(b), newConfiguration())
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF: %w", err)
	}
	if err := api.ValidateContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to validate PDF: %w", err)
	}
	if err := api.OptimizeContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to optimize PDF: %w", err)
	}
	if ctx.PageCount == 0 {
		return nil, ErrNoPages
	}
	return &Document{ctx: ctx}, nil
}

// Encode serializes the document, including any changes made by Transform.
func (d *Document) Encode() ([]byte, error) {
	if err := api.ValidateContext(d.ctx); err != nil {
		return nil, fmt.Errorf("failed to validate PDF before writing: %w", err)
	}
	var buf bytes.Buffer
	if err := api.WriteContext(d.ctx, &buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}

// PageCount returns the number of pages in document order.
func (d *Document) PageCount() int {
	return d.ctx.PageCount
}

// Page returns the geometry of page nr (1-based).
func (d *Document) Page(nr int) (Page, error) {
	p, _, err := d.page(nr)
	return p, err
}

func (d *Document) page(nr int) (Page, types.Dict, error) {
	pageDict, _, _, err := d.ctx.PageDict(nr, false)
	if err != nil {
		return Page{}, nil, fmt.Errorf("page %d: %w: %w", nr, ErrBadPage, err)
	}
	if pageDict == nil {
		return Page{}, nil, fmt.Errorf("page %d: %w", nr, ErrMissingPage)
	}

	media, err := d.inheritedBox(pageDict, "MediaBox")
	if err != nil {
		return Page{}, nil, fmt.Errorf("page %d: media box: %w", nr, err)
	}
	if media == nil {
		return Page{}, nil, fmt.Errorf("page %d: %w", nr, ErrNoMediaBox)
	}
	crop, err := d.inheritedBox(pageDict, "CropBox")
	if err != nil {
		return Page{}, nil, fmt.Errorf("page %d: crop box: %w", nr, err)
	}
	if crop == nil {
		crop = media
	}
	return Page{Number: nr, MediaBox: *media, CropBox: *crop}, pageDict, nil
}

// inheritedAttr looks key up on the page and then on its ancestors.
func (d *Document) inheritedAttr(pageDict types.Dict, key string) (types.Object, error) {
	node := pageDict
	for depth := 0; depth < maxTreeDepth; depth++ {
		if o, found := node.Find(key); found && o != nil {
			return o, nil
		}
		parent, found := node.Find("Parent")
		if !found || parent == nil {
			return nil, nil
		}
		next, err := d.ctx.DereferenceDict(parent)
		if err != nil {
			return nil, err
		}
		if next == nil {
			return nil, nil
		}
		node = next
	}
	return nil, ErrPageTreeTooDeep
}

func (d *Document) inheritedBox(pageDict types.Dict, key string) (*Rect, error) {
	o, err := d.inheritedAttr(pageDict, key)
	if err != nil || o == nil {
		return nil, err
	}
	return d.rect(o)
}

func (d *Document) rect(o types.Object) (*Rect, error) {
	arr, err := d.ctx.DereferenceArray(o)
	if err != nil {
		return nil, err
	}
	if len(arr) != 4 {
		return nil, fmt.Errorf("%w: want 4 numbers, got %d", ErrBadRectangle, len(arr))
	}
	var v [4]float64
	for i, e := range arr {
		obj, err := d.ctx.Dereference(e)
		if err != nil {
			return nil, err
		}
		switch n := obj.(type) {
		case types.Integer:
			v[i] = float64(n)
		case types.Float:
			v[i] = float64(n)
		default:
			return nil, fmt.Errorf("%w: element %d is %T", ErrBadRectangle, i, obj)
		}
	}
	r := NewRect(v[0], v[1], v[2], v[3])
	if r.Width() <= 0 || r.Height() <= 0 {
		return nil, fmt.Errorf("%w: empty area %v", ErrBadRectangle, v)
	}
	return &r, nil
}
