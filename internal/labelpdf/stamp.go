package labelpdf

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/font"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/Lllllllleong/labelcrop/internal/models"
)

const (
	originFontName = "Courier"
	originFontSize = 12
	originFontKey  = "FOrigin"
)

// stamper draws the origin text. The font object and the graphics-state save
// stream are created once per document and shared by every page.
type stamper struct {
	doc       *Document
	fontRef   *types.IndirectRef
	saveRef   *types.IndirectRef
	textWidth float64
}

func (d *Document) newStamper() (*stamper, error) {
	fontDict := types.Dict{
		"Type":     types.Name("Font"),
		"Subtype":  types.Name("Type1"),
		"BaseFont": types.Name(originFontName),
		"Encoding": types.Name("WinAnsiEncoding"),
	}
	fontRef, err := d.ctx.IndRefForNewObject(fontDict)
	if err != nil {
		return nil, fmt.Errorf("failed to add font %s: %w", originFontName, err)
	}
	saveRef, err := d.newContentStream("q\n")
	if err != nil {
		return nil, err
	}
	return &stamper{
		doc:       d,
		fontRef:   fontRef,
		saveRef:   saveRef,
		textWidth: font.TextWidth(models.OriginText, originFontName, originFontSize),
	}, nil
}

// stamp draws the origin text on a page whose visible area before cropping
// is box.
func (s *stamper) stamp(pageDict types.Dict, box Rect) (TextPlacement, error) {
	key, err := s.registerFont(pageDict)
	if err != nil {
		return TextPlacement{}, err
	}

	x, y := OriginTextPosition(box, s.textWidth)
	var b strings.Builder
	b.WriteString("\nQ\nq\n0 g\nBT\n")
	fmt.Fprintf(&b, "/%s %d Tf\n", key, originFontSize)
	fmt.Fprintf(&b, "1 0 0 1 %s %s Tm\n", formatNumber(x), formatNumber(y))
	fmt.Fprintf(&b, "(%s) Tj\nET\nQ\n", escapeString(models.OriginText))

	textRef, err := s.doc.newContentStream(b.String())
	if err != nil {
		return TextPlacement{}, err
	}
	if err := s.wrapContents(pageDict, textRef); err != nil {
		return TextPlacement{}, err
	}
	return TextPlacement{X: x, Y: y, Width: s.textWidth, FontSize: originFontSize}, nil
}

// wrapContents brackets the existing page content with the shared save
// stream and the new text stream, so the text is drawn in a clean graphics
// state.
func (s *stamper) wrapContents(pageDict types.Dict, textRef *types.IndirectRef) error {
	contents := types.Array{*s.saveRef}
	if o, found := pageDict.Find("Contents"); found && o != nil {
		switch c := o.(type) {
		case types.IndirectRef:
			obj, err := s.doc.ctx.Dereference(c)
			if err != nil {
				return fmt.Errorf("failed to resolve page contents: %w", err)
			}
			if arr, ok := obj.(types.Array); ok {
				contents = append(contents, arr...)
			} else {
				contents = append(contents, c)
			}
		case types.Array:
			contents = append(contents, c...)
		default:
			return fmt.Errorf("unexpected page contents type %T", o)
		}
	}
	pageDict["Contents"] = append(contents, *textRef)
	return nil
}

// registerFont makes the shared font reachable from the page's resources and
// returns the resource name it is registered under.
func (s *stamper) registerFont(pageDict types.Dict) (string, error) {
	res, err := s.doc.pageResources(pageDict)
	if err != nil {
		return "", fmt.Errorf("failed to resolve page resources: %w", err)
	}

	var fonts types.Dict
	if o, found := res.Find("Font"); found && o != nil {
		if fonts, err = s.doc.ctx.DereferenceDict(o); err != nil {
			return "", fmt.Errorf("failed to resolve font resources: %w", err)
		}
	}
	if fonts == nil {
		fonts = types.Dict{}
		res["Font"] = fonts
	}

	for i := 0; ; i++ {
		key := originFontKey
		if i > 0 {
			key = originFontKey + strconv.Itoa(i)
		}
		cur, taken := fonts[key]
		if !taken {
			fonts[key] = *s.fontRef
			return key, nil
		}
		if ref, ok := cur.(types.IndirectRef); ok && ref.ObjectNumber == s.fontRef.ObjectNumber {
			return key, nil
		}
	}
}

// pageResources returns the resource dict the page's content is drawn with,
// materializing inherited resources on the page itself if necessary.
func (d *Document) pageResources(pageDict types.Dict) (types.Dict, error) {
	if o, found := pageDict.Find("Resources"); found && o != nil {
		res, err := d.ctx.DereferenceDict(o)
		if err != nil {
			return nil, err
		}
		if res != nil {
			return res, nil
		}
	}

	res := types.Dict{}
	inherited, err := d.inheritedAttr(pageDict, "Resources")
	if err != nil {
		return nil, err
	}
	if inherited != nil {
		parent, err := d.ctx.DereferenceDict(inherited)
		if err != nil {
			return nil, err
		}
		for k, v := range parent {
			res[k] = v
		}
	}
	pageDict["Resources"] = res
	return res, nil
}

func (d *Document) newContentStream(content string) (*types.IndirectRef, error) {
	sd, err := d.ctx.NewStreamDictForBuf([]byte(content))
	if err != nil {
		return nil, fmt.Errorf("failed to create content stream: %w", err)
	}
	if err := sd.Encode(); err != nil {
		return nil, fmt.Errorf("failed to encode content stream: %w", err)
	}
	ref, err := d.ctx.IndRefForNewObject(*sd)
	if err != nil {
		return nil, fmt.Errorf("failed to add content stream: %w", err)
	}
	return ref, nil
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func escapeString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}
