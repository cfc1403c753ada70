package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"

	"alcyxob/imagegate/internal/domain"
)

// DefaultMaxFields bounds the number of ordinary form fields per request.
const DefaultMaxFields = 64

var errBodyTooLarge = errors.New("request body exceeds the size limit")

// FileStore persists the accepted file part; storage.DiskStore implements it.
type FileStore interface {
	Write(originalName, declaredType string, r io.Reader) (*domain.StoredFile, error)
	Remove(file *domain.StoredFile) error
}

// Decoder streams a multipart/form-data body into ordinary fields and at most
// one stored file.
type Decoder struct {
	store     FileStore
	filter    *MIMEFilter
	maxSize   int64
	fieldName string

	// MaxFields caps ordinary fields; zero means DefaultMaxFields.
	MaxFields int
	// RejectUnsupported fails the request with UnsupportedType instead of
	// silently skipping a file part whose declared type is not allowed.
	RejectUnsupported bool
}

// NewDecoder creates a Decoder writing the part named fieldName through store.
func NewDecoder(store FileStore, filter *MIMEFilter, maxSize int64, fieldName string) *Decoder {
	return &Decoder{
		store:     store,
		filter:    filter,
		maxSize:   maxSize,
		fieldName: fieldName,
	}
}

// Stage adapts the decoder to the pipeline.
func (d *Decoder) Stage() Stage {
	return Stage{Name: "multipart_decoder", Run: d.Decode}
}

// Decode parses req.Body. The body is read incrementally and decoding stops
// as soon as more than maxSize bytes have been consumed.
func (d *Decoder) Decode(ctx context.Context, req *Request) error {
	mediaType, params, err := mime.ParseMediaType(req.ContentType)
	if err != nil || mediaType != "multipart/form-data" {
		return domain.Reject(domain.ReasonMalformed, fmt.Errorf("content type %q is not multipart/form-data", req.ContentType))
	}
	boundary := params["boundary"]
	if boundary == "" {
		return domain.Reject(domain.ReasonMalformed, errors.New("multipart boundary is missing"))
	}
	if req.Body == nil {
		return domain.Reject(domain.ReasonMalformed, errors.New("request body is empty"))
	}

	body := &limitedReader{r: req.Body, remaining: d.maxSize}
	mr := multipart.NewReader(body, boundary)
	fields := make(map[string][]string)
	var stored *domain.StoredFile
	var fieldCount int

	fail := func(err error) error {
		if stored != nil {
			_ = d.store.Remove(stored)
		}
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return fail(domain.Reject(domain.ReasonIOFailure, err))
		}
		part, err := mr.NextPart()
		// A clean end is the bare io.EOF; a body that ends early wraps it.
		if err == io.EOF {
			break
		}
		if err != nil {
			return fail(d.readFailure(body, err))
		}
		err = d.consume(part, body, fields, &fieldCount, &stored)
		part.Close()
		if err != nil {
			return fail(err)
		}
	}

	// Anything after the closing boundary still counts toward the ceiling.
	if _, err := io.Copy(io.Discard, body); err != nil {
		return fail(d.readFailure(body, err))
	}

	req.Fields = fields
	req.File = stored
	return nil
}

func (d *Decoder) consume(part *multipart.Part, body *limitedReader, fields map[string][]string, fieldCount *int, stored **domain.StoredFile) error {
	fileName := part.FileName()
	if fileName == "" {
		if *fieldCount >= d.maxFields() {
			return domain.Reject(domain.ReasonMalformed, fmt.Errorf("more than %d form fields", d.maxFields()))
		}
		value, err := io.ReadAll(part)
		if err != nil {
			return d.readFailure(body, err)
		}
		name := part.FormName()
		fields[name] = append(fields[name], string(value))
		*fieldCount++
		return nil
	}

	// Only the first file part under the configured field is kept.
	if part.FormName() != d.fieldName || *stored != nil {
		return d.drain(part, body)
	}

	declared := part.Header.Get("Content-Type")
	if !d.filter.Allow(declared) {
		if d.RejectUnsupported {
			return domain.Reject(domain.ReasonUnsupportedType, fmt.Errorf("declared type %q is not allowed", declared))
		}
		return d.drain(part, body)
	}

	src := &trackingReader{r: part}
	file, err := d.store.Write(fileName, declared, src)
	if err != nil {
		if src.err != nil {
			return d.readFailure(body, src.err)
		}
		return domain.Reject(domain.ReasonIOFailure, err)
	}
	*stored = file
	return nil
}

func (d *Decoder) drain(part *multipart.Part, body *limitedReader) error {
	if _, err := io.Copy(io.Discard, part); err != nil {
		return d.readFailure(body, err)
	}
	return nil
}

// readFailure classifies an error raised while reading the body.
func (d *Decoder) readFailure(body *limitedReader, err error) error {
	if body.exceeded {
		return domain.Reject(domain.ReasonTooLarge, fmt.Errorf("%w (%d bytes)", errBodyTooLarge, d.maxSize))
	}
	return domain.Reject(domain.ReasonMalformed, err)
}

func (d *Decoder) maxFields() int {
	if d.MaxFields > 0 {
		return d.MaxFields
	}
	return DefaultMaxFields
}

// limitedReader fails once more than remaining bytes have been read.
type limitedReader struct {
	r         io.Reader
	remaining int64
	exceeded  bool
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.exceeded {
		return 0, errBodyTooLarge
	}
	// Ask for one byte past the limit so overflow is detected, not silently truncated.
	if int64(len(p)) > l.remaining+1 {
		p = p[:l.remaining+1]
	}
	n, err := l.r.Read(p)
	if int64(n) > l.remaining {
		n = int(l.remaining)
		l.remaining = 0
		l.exceeded = true
		return n, errBodyTooLarge
	}
	l.remaining -= int64(n)
	return n, err
}

// trackingReader remembers the first read error so write failures can be
// told apart from body failures.
type trackingReader struct {
	r   io.Reader
	err error
}

func (t *trackingReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) && t.err == nil {
		t.err = err
	}
	return n, err
}
