package pipeline

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alcyxob/imagegate/internal/domain"
)

func TestVerifier_RasterFormats(t *testing.T) {
	v := NewVerifier()

	tests := []struct {
		name   string
		data   []byte
		format string
	}{
		{name: "png", data: pngBytes(t, 30, 20), format: "png"},
		{name: "jpeg", data: jpegBytes(t, 16, 24), format: "jpeg"},
		{name: "gif", data: gifBytes(t, 12, 9), format: "gif"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := v.Verify(bytes.NewReader(tt.data))
			require.NoError(t, err)
			assert.Equal(t, tt.format, info.Format)
			assert.Positive(t, info.Width)
			assert.Positive(t, info.Height)
		})
	}
}

func TestVerifier_PNGDimensions(t *testing.T) {
	info, err := NewVerifier().Verify(bytes.NewReader(pngBytes(t, 30, 20)))
	require.NoError(t, err)
	assert.Equal(t, ImageInfo{Format: "png", Width: 30, Height: 20}, info)
}

func TestVerifier_SVG(t *testing.T) {
	tests := []struct {
		name   string
		svg    string
		width  int
		height int
	}{
		{
			name:   "width and height",
			svg:    `<svg xmlns="http://www.w3.org/2000/svg" width="120" height="80"><rect width="10" height="10"/></svg>`,
			width:  120,
			height: 80,
		},
		{
			name:   "viewBox only",
			svg:    `<?xml version="1.0" encoding="UTF-8"?>` + "\n" + `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 64 32"></svg>`,
			width:  64,
			height: 32,
		},
		{
			name:   "px units",
			svg:    `<svg xmlns="http://www.w3.org/2000/svg" width="10px" height="20px"></svg>`,
			width:  10,
			height: 20,
		},
		{
			name:   "inches",
			svg:    `<svg xmlns="http://www.w3.org/2000/svg" width="1in" height="0.5in"></svg>`,
			width:  96,
			height: 48,
		},
		{
			name:   "percentage falls back to viewBox",
			svg:    `<svg xmlns="http://www.w3.org/2000/svg" width="100%" height="100%" viewBox="0,0,50,25"></svg>`,
			width:  50,
			height: 25,
		},
		{
			name:   "width scaled by viewBox ratio",
			svg:    `<svg xmlns="http://www.w3.org/2000/svg" width="200" viewBox="0 0 100 50"></svg>`,
			width:  200,
			height: 100,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := NewVerifier().Verify(strings.NewReader(tt.svg))
			require.NoError(t, err)
			assert.Equal(t, ImageInfo{Format: "svg", Width: tt.width, Height: tt.height}, info)
		})
	}
}

func TestVerifier_RejectsCorruptContent(t *testing.T) {
	png := pngBytes(t, 10, 10)

	tests := []struct {
		name string
		data []byte
	}{
		{name: "text renamed to png", data: []byte(strings.Repeat("this is not an image\n", 200))},
		{name: "png signature only", data: png[:8]},
		{name: "random binary", data: bytes.Repeat([]byte{0x00, 0xff, 0x13, 0x37}, 1024)},
		{name: "svg without dimensions", data: []byte(`<svg xmlns="http://www.w3.org/2000/svg"></svg>`)},
		{name: "svg with zero size", data: []byte(`<svg xmlns="http://www.w3.org/2000/svg" width="0" height="0"></svg>`)},
		{name: "xml that is not svg", data: []byte(`<?xml version="1.0"?><note width="10" height="10"/>`)},
		{name: "html", data: []byte(`<html><body><svg width="10" height="10"></svg></body></html>`)},
		{name: "empty", data: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewVerifier().Verify(bytes.NewReader(tt.data))
			assert.ErrorIs(t, err, domain.ErrCorruptContent)
		})
	}
}

func TestVerifier_VerifyFile(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.png")
	require.NoError(t, os.WriteFile(good, pngBytes(t, 4, 4), 0o644))

	info, err := NewVerifier().VerifyFile(good)
	require.NoError(t, err)
	assert.Equal(t, 4, info.Width)

	_, err = NewVerifier().VerifyFile(filepath.Join(dir, "missing.png"))
	assert.ErrorIs(t, err, domain.ErrIOFailure)
}
