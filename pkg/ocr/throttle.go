package ocr

import (
	"context"
	"errors"

	"github.com/Caia-Tech/caia-extract/pkg/document"
)

// Limiter spaces out calls to an engine and refuses calls while the engine
// backs off
type Limiter interface {
	Wait(ctx context.Context, engine string) error
	RecordError(engine string)
	RecordSuccess(engine string)
}

// Throttle wraps an engine so every recognition goes through limiter.
// Layout support of the wrapped engine is kept.
func Throttle(e Engine, limiter Limiter) Engine {
	if e == nil || limiter == nil {
		return e
	}
	t := throttled{engine: e, limiter: limiter}
	if layout, ok := e.(LayoutEngine); ok {
		return throttledLayout{throttled: t, layout: layout}
	}
	return t
}

type throttled struct {
	engine  Engine
	limiter Limiter
}

func (t throttled) Name() string { return t.engine.Name() }

func (t throttled) Available(ctx context.Context) error { return t.engine.Available(ctx) }

func (t throttled) Recognize(ctx context.Context, img Image) (string, error) {
	if err := t.wait(ctx); err != nil {
		return "", err
	}
	text, err := t.engine.Recognize(ctx, img)
	t.record(err)
	return text, err
}

func (t throttled) wait(ctx context.Context) error {
	if err := t.limiter.Wait(ctx, t.engine.Name()); err != nil {
		return &EngineError{Engine: t.engine.Name(), Op: "throttle", Err: err}
	}
	return nil
}

// record counts engine failures only; a page without text or a caller
// giving up says nothing about the engine's health
func (t throttled) record(err error) {
	switch {
	case err == nil, errors.Is(err, ErrNoText):
		t.limiter.RecordSuccess(t.engine.Name())
	case errors.Is(err, context.Canceled):
	default:
		t.limiter.RecordError(t.engine.Name())
	}
}

type throttledLayout struct {
	throttled
	layout LayoutEngine
}

func (t throttledLayout) RecognizeLayout(ctx context.Context, img Image) ([]document.OCRToken, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}
	tokens, err := t.layout.RecognizeLayout(ctx, img)
	t.record(err)
	return tokens, err
}
