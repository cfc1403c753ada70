package pipeline

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"alcyxob/imagegate/internal/domain"
)

// ImageInfo describes a verified image.
type ImageInfo struct {
	Format string // png, jpeg, gif or svg
	Width  int
	Height int
}

// Verifier inspects the bytes of a stored file and decides whether they are
// an image with positive dimensions. It never looks at the declared MIME type.
type Verifier struct{}

// NewVerifier returns a content verifier.
func NewVerifier() *Verifier {
	return &Verifier{}
}

// Stage adapts the verifier to the pipeline. Requests without a stored file pass.
func (v *Verifier) Stage() Stage {
	return Stage{
		Name: "content_verifier",
		Run: func(_ context.Context, req *Request) error {
			if req.File == nil {
				return nil
			}
			_, err := v.VerifyFile(req.File.Path)
			return err
		},
	}
}

// VerifyFile reads the file at path back from disk and verifies it.
func (v *Verifier) VerifyFile(path string) (ImageInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return ImageInfo{}, domain.Reject(domain.ReasonIOFailure, err)
	}
	defer f.Close()
	return v.Verify(f)
}

// Verify sniffs the format of r and parses its dimensions.
func (v *Verifier) Verify(r io.ReadSeeker) (ImageInfo, error) {
	mt, err := mimetype.DetectReader(r)
	if err != nil {
		return ImageInfo{}, domain.Reject(domain.ReasonIOFailure, err)
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return ImageInfo{}, domain.Reject(domain.ReasonIOFailure, err)
	}

	var info ImageInfo
	switch {
	case is(mt, "image/png", "image/jpeg", "image/gif"):
		cfg, format, err := image.DecodeConfig(r)
		if err != nil {
			return ImageInfo{}, corrupt(err)
		}
		info = ImageInfo{Format: format, Width: cfg.Width, Height: cfg.Height}
	case isMarkup(mt):
		w, h, err := svgDimensions(r)
		if err != nil {
			return ImageInfo{}, corrupt(err)
		}
		info = ImageInfo{Format: "svg", Width: w, Height: h}
	default:
		return ImageInfo{}, corrupt(fmt.Errorf("unsupported content %s", mt.String()))
	}

	if info.Width <= 0 || info.Height <= 0 {
		return ImageInfo{}, corrupt(fmt.Errorf("%s has no usable dimensions (%dx%d)", info.Format, info.Width, info.Height))
	}
	return info, nil
}

func corrupt(err error) error {
	return domain.Reject(domain.ReasonCorruptContent, err)
}

// is reports whether mt or one of its ancestors (APNG is a child of PNG) is
// among types.
func is(mt *mimetype.MIME, types ...string) bool {
	for m := mt; m != nil; m = m.Parent() {
		for _, t := range types {
			if m.Is(t) {
				return true
			}
		}
	}
	return false
}

// isMarkup accepts SVG and anything sniffed as generic XML or text, which is
// how SVG with a long prologue is classified. svgDimensions then decides.
func isMarkup(mt *mimetype.MIME) bool {
	return is(mt, "image/svg+xml", "text/xml") || mt.Is("text/plain")
}

var errNotSVG = errors.New("root element is not <svg>")

// svgDimensions reads the root element and resolves width and height from its
// attributes, falling back to the viewBox.
func svgDimensions(r io.Reader) (int, int, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = func(_ string, in io.Reader) (io.Reader, error) { return in, nil }

	for {
		tok, err := dec.Token()
		if err != nil {
			return 0, 0, fmt.Errorf("parse svg: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if start.Name.Local != "svg" {
			return 0, 0, errNotSVG
		}
		return rootDimensions(start)
	}
}

func rootDimensions(root xml.StartElement) (int, int, error) {
	var widthAttr, heightAttr, viewBox string
	for _, a := range root.Attr {
		switch a.Name.Local {
		case "width":
			widthAttr = a.Value
		case "height":
			heightAttr = a.Value
		case "viewBox":
			viewBox = a.Value
		}
	}

	width, wok := parseLength(widthAttr)
	height, hok := parseLength(heightAttr)
	vbw, vbh, vbok := parseViewBox(viewBox)

	switch {
	case wok && hok:
	case wok && vbok:
		height = width * vbh / vbw
	case hok && vbok:
		width = height * vbw / vbh
	case vbok:
		width, height = vbw, vbh
	default:
		return 0, 0, errors.New("svg declares neither width/height nor viewBox")
	}
	return int(math.Round(width)), int(math.Round(height)), nil
}

// CSS absolute units at 96 dpi.
var svgUnits = map[string]float64{
	"":   1,
	"px": 1,
	"pt": 96.0 / 72.0,
	"pc": 16,
	"mm": 96.0 / 25.4,
	"cm": 96.0 / 2.54,
	"in": 96,
}

func parseLength(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	unit := ""
	if i := strings.IndexFunc(s, func(r rune) bool { return r >= 'a' && r <= 'z' || r == '%' }); i >= 0 {
		s, unit = s[:i], s[i:]
	}
	scale, ok := svgUnits[unit]
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || v <= 0 || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, false
	}
	return v * scale, true
}

func parseViewBox(s string) (float64, float64, bool) {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == ',' || r == '\t' || r == '\n' })
	if len(parts) != 4 {
		return 0, 0, false
	}
	w, errW := strconv.ParseFloat(parts[2], 64)
	h, errH := strconv.ParseFloat(parts[3], 64)
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		return 0, 0, false
	}
	return w, h, true
}
