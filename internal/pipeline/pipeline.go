// Package pipeline validates uploaded images before anything downstream sees them.
//
// A request passes through ordered stages: the declared-size guard, the
// multipart decoder (which names files and applies the MIME allow-list) and
// the content verifier. The first failing stage ends the run with a typed
// domain.RejectionError; later stages never execute.
package pipeline

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"alcyxob/imagegate/internal/config"
	"alcyxob/imagegate/internal/domain"
)

const tracerName = "alcyxob/imagegate/pipeline"

// Request is the per-request state threaded through the stages.
type Request struct {
	ContentLength int64 // Declared body length, -1 when the client did not declare one
	ContentType   string
	Body          io.Reader

	// Set by the decoder.
	Fields map[string][]string
	File   *domain.StoredFile
}

// NewRequest captures the parts of an HTTP request the pipeline needs.
func NewRequest(r *http.Request) *Request {
	length := r.ContentLength
	if length == 0 && r.Header.Get("Content-Length") == "" {
		length = -1
	}
	return &Request{
		ContentLength: length,
		ContentType:   r.Header.Get("Content-Type"),
		Body:          r.Body,
	}
}

// StageFunc advances the request or fails it.
type StageFunc func(ctx context.Context, req *Request) error

// Stage is a named step of the pipeline.
type Stage struct {
	Name string
	Run  StageFunc
}

// Observer receives timing and outcome information; see the metrics package.
type Observer interface {
	ObserveStage(stage string, elapsed time.Duration, err error)
	ObserveOutcome(outcome domain.Outcome)
}

// FileRemover deletes files written by a stage when a later stage rejects the request.
type FileRemover interface {
	Remove(file *domain.StoredFile) error
}

// Pipeline runs stages in order and stops at the first failure.
type Pipeline struct {
	stages   []Stage
	remover  FileRemover
	observer Observer
	tracer   trace.Tracer
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithObserver attaches an Observer.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) {
		p.observer = o
	}
}

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(p *Pipeline) {
		p.tracer = t
	}
}

// New composes stages into a pipeline. remover may be nil when no stage writes files.
func New(stages []Stage, remover FileRemover, opts ...Option) *Pipeline {
	p := &Pipeline{
		stages:  stages,
		remover: remover,
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewUploadPipeline builds the standard chain: size guard, multipart decoder, content verifier.
func NewUploadPipeline(cfg config.UploadConfig, store FileStore, opts ...Option) *Pipeline {
	filter := NewMIMEFilter(cfg.AllowedTypes)
	decoder := NewDecoder(store, filter, cfg.MaxSize, cfg.FieldName)
	decoder.RejectUnsupported = cfg.RejectUnsupported

	stages := []Stage{
		SizeGuard(cfg.MinSize),
		decoder.Stage(),
		NewVerifier().Stage(),
	}
	return New(stages, store, opts...)
}

// Stages returns the stage names in execution order.
func (p *Pipeline) Stages() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name
	}
	return names
}

// Run executes every stage against req. A rejected outcome never carries a
// file: anything a stage stored is removed before returning.
func (p *Pipeline) Run(ctx context.Context, req *Request) domain.Outcome {
	ctx, span := p.tracer.Start(ctx, "upload.pipeline")
	defer span.End()

	for _, stage := range p.stages {
		if err := p.runStage(ctx, stage, req); err != nil {
			p.discard(req)
			outcome := domain.Outcome{Err: err}
			span.SetAttributes(
				attribute.String("upload.reason", string(outcome.Reason())),
				attribute.String("upload.failed_stage", stage.Name),
			)
			span.SetStatus(codes.Error, string(outcome.Reason()))
			p.observeOutcome(outcome)
			return outcome
		}
	}

	outcome := domain.Outcome{File: req.File}
	span.SetAttributes(attribute.Bool("upload.has_file", req.File != nil))
	p.observeOutcome(outcome)
	return outcome
}

func (p *Pipeline) runStage(ctx context.Context, stage Stage, req *Request) error {
	ctx, span := p.tracer.Start(ctx, "upload."+stage.Name)
	defer span.End()

	start := time.Now()
	err := stage.Run(ctx, req)
	var rej *domain.RejectionError
	if err != nil && !errors.As(err, &rej) {
		err = domain.Reject(domain.ReasonIOFailure, err)
	}
	if p.observer != nil {
		p.observer.ObserveStage(stage.Name, time.Since(start), err)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(domain.ReasonOf(err)))
	}
	return err
}

func (p *Pipeline) discard(req *Request) {
	if req.File == nil || p.remover == nil {
		req.File = nil
		return
	}
	if err := p.remover.Remove(req.File); err != nil {
		log.Printf("WARN: Failed to remove rejected upload %s: %v", req.File.Name, err)
	}
	req.File = nil
}

func (p *Pipeline) observeOutcome(o domain.Outcome) {
	if p.observer != nil {
		p.observer.ObserveOutcome(o)
	}
}
