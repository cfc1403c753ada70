package pipeline

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"math/rand"
	"mime/multipart"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/require"

	"alcyxob/imagegate/internal/config"
	"alcyxob/imagegate/internal/storage"
)

// noisyImage returns an image whose encoding does not compress well, so a
// few dozen pixels are enough to clear the minimum declared size.
func noisyImage(w, h int) *image.RGBA {
	rng := rand.New(rand.NewSource(42))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(rng.Intn(256)), uint8(rng.Intn(256)), uint8(rng.Intn(256)), 255})
		}
	}
	return img
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, noisyImage(w, h)))
	return buf.Bytes()
}

func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, noisyImage(w, h), &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

func gifBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, gif.Encode(&buf, noisyImage(w, h), nil))
	return buf.Bytes()
}

type filePart struct {
	field       string
	fileName    string
	contentType string
	content     []byte
}

// multipartBody encodes fields and file parts the way a browser form would.
func multipartBody(t *testing.T, fields map[string]string, files ...filePart) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, f.field, f.fileName))
		h.Set("Content-Type", f.contentType)
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(f.content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func requestFor(body *bytes.Buffer, contentType string) *Request {
	return &Request{
		ContentLength: int64(body.Len()),
		ContentType:   contentType,
		Body:          body,
	}
}

func testUploadConfig() config.UploadConfig {
	return config.UploadConfig{
		MinSize:      config.DefaultMinSize,
		MaxSize:      config.DefaultMaxSize,
		FieldName:    config.DefaultFieldName,
		AllowedTypes: config.DefaultAllowedTypes,
	}
}

func newTestStore(t *testing.T, dir string) *storage.DiskStore {
	t.Helper()
	store, err := storage.NewDiskStore(dir)
	require.NoError(t, err)
	return store
}
