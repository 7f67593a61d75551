package ocr

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockLimiter struct {
	mock.Mock
}

func (m *mockLimiter) Wait(ctx context.Context, engine string) error {
	args := m.Called(ctx, engine)
	return args.Error(0)
}

func (m *mockLimiter) RecordError(engine string) {
	m.Called(engine)
}

func (m *mockLimiter) RecordSuccess(engine string) {
	m.Called(engine)
}

type failingEngine struct {
	stubEngine
	recognizeErr error
}

func (f failingEngine) Recognize(context.Context, Image) (string, error) {
	return "", f.recognizeErr
}

func TestThrottle_KeepsLayout(t *testing.T) {
	limiter := new(mockLimiter)

	plain := Throttle(stubEngine{name: NameOpenAIVision}, limiter)
	_, isLayout := plain.(LayoutEngine)
	assert.False(t, isLayout)

	layout := Throttle(stubLayoutEngine{stubEngine{name: NamePaddleOCR}}, limiter)
	_, isLayout = layout.(LayoutEngine)
	assert.True(t, isLayout)
	assert.Equal(t, NamePaddleOCR, layout.Name())

	assert.Nil(t, Throttle(nil, limiter))
	engine := stubEngine{name: NameEasyOCR}
	assert.Equal(t, engine, Throttle(engine, nil))
}

func TestThrottle_RecordsSuccess(t *testing.T) {
	limiter := new(mockLimiter)
	limiter.On("Wait", mock.Anything, NameOpenAIVision).Return(nil).Once()
	limiter.On("RecordSuccess", NameOpenAIVision).Once()

	text, err := Throttle(stubEngine{name: NameOpenAIVision}, limiter).Recognize(context.Background(), Image{})
	require.NoError(t, err)
	assert.Equal(t, "texto", text)
	limiter.AssertExpectations(t)
}

func TestThrottle_RecordsEngineErrors(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		recordErr bool
	}{
		{"engine failure", errors.New("connection refused"), true},
		{"no text", &EngineError{Engine: NameEasyOCR, Op: "recognize", Err: ErrNoText}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limiter := new(mockLimiter)
			limiter.On("Wait", mock.Anything, NameEasyOCR).Return(nil)
			if tt.recordErr {
				limiter.On("RecordError", NameEasyOCR).Once()
			} else {
				limiter.On("RecordSuccess", NameEasyOCR).Once()
			}

			engine := failingEngine{stubEngine: stubEngine{name: NameEasyOCR}, recognizeErr: tt.err}
			_, err := Throttle(engine, limiter).Recognize(context.Background(), Image{})
			assert.ErrorIs(t, err, tt.err)
			limiter.AssertExpectations(t)
		})
	}
}

func TestThrottle_RefusedCallSkipsEngine(t *testing.T) {
	backoff := errors.New("backing off")
	limiter := new(mockLimiter)
	limiter.On("Wait", mock.Anything, NamePaddleOCR).Return(backoff)

	engine := Throttle(stubLayoutEngine{stubEngine{name: NamePaddleOCR}}, limiter).(LayoutEngine)
	_, err := engine.RecognizeLayout(context.Background(), Image{})

	var engineErr *EngineError
	require.ErrorAs(t, err, &engineErr)
	assert.Equal(t, "throttle", engineErr.Op)
	assert.ErrorIs(t, err, backoff)
	limiter.AssertNotCalled(t, "RecordError", mock.Anything)
	limiter.AssertNotCalled(t, "RecordSuccess", mock.Anything)
}
