package acquire_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ewilliams-labs/cratedigger/internal/acquire"
	"github.com/ewilliams-labs/cratedigger/internal/core/domain"
	"github.com/ewilliams-labs/cratedigger/internal/core/ports"
	"github.com/ewilliams-labs/cratedigger/internal/retry"
)

type flakyFetcher struct {
	failures int
	calls    int
	got      ports.SampleRequest
	payload  []byte
}

func (f *flakyFetcher) FetchSample(_ context.Context, req ports.SampleRequest) ([]byte, error) {
	f.calls++
	f.got = req
	if f.calls <= f.failures {
		return nil, errors.New("connection reset")
	}
	return f.payload, nil
}

type passthroughDecoder struct {
	calls int
	err   error
}

func (d *passthroughDecoder) Decode(_ context.Context, b []byte) ([]byte, error) {
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	return b, nil
}

func fastRetry() acquire.Config {
	return acquire.Config{Retry: retry.Policy{Attempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}}
}

func TestWindow(t *testing.T) {
	a := acquire.New(nil, nil, acquire.Config{}, nil)

	tests := []struct {
		name      string
		duration  float64
		wantStart float64
	}{
		{name: "typical track", duration: 320, wantStart: 64},
		{name: "floors fractional start", duration: 213, wantStart: 42},
		{name: "unknown duration", duration: 0, wantStart: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := a.Window(domain.ResolvedSource{SourceID: "v", DurationSeconds: tt.duration})
			assert.Equal(t, tt.wantStart, req.StartSeconds)
			assert.Equal(t, 30.0, req.DurationSeconds)
			assert.Equal(t, "v", req.SourceID)
		})
	}
}

func TestAcquireRetriesFetch(t *testing.T) {
	fetcher := &flakyFetcher{failures: 2, payload: acquire.ToPCM16([]float64{0, 0.5, -0.5, 1})}
	decoder := &passthroughDecoder{}
	a := acquire.New(fetcher, decoder, fastRetry(), nil)

	sample, err := a.Acquire(context.Background(), domain.ResolvedSource{SourceID: "v", DurationSeconds: 100})
	require.NoError(t, err)

	assert.Equal(t, 3, fetcher.calls)
	assert.Equal(t, 1, decoder.calls)
	assert.Equal(t, 20.0, fetcher.got.StartSeconds)
	assert.Equal(t, domain.SampleRate, sample.SampleRate)
	require.Len(t, sample.Samples, 4)
	assert.InDelta(t, 0.5, sample.Samples[1], 1e-4)
	assert.InDelta(t, -0.5, sample.Samples[2], 1e-4)
	assert.InDelta(t, 1.0, sample.Samples[3], 1e-4)
}

func TestAcquireGivesUp(t *testing.T) {
	fetcher := &flakyFetcher{failures: 10}
	decoder := &passthroughDecoder{}
	a := acquire.New(fetcher, decoder, fastRetry(), nil)

	_, err := a.Acquire(context.Background(), domain.ResolvedSource{SourceID: "v"})
	require.Error(t, err)
	assert.Equal(t, 3, fetcher.calls)
	assert.Zero(t, decoder.calls)
}

func TestAcquireDecodeFailureIsNotRetried(t *testing.T) {
	fetcher := &flakyFetcher{payload: []byte{1, 2, 3, 4}}
	decoder := &passthroughDecoder{err: errors.New("invalid data found when processing input")}
	a := acquire.New(fetcher, decoder, fastRetry(), nil)

	_, err := a.Acquire(context.Background(), domain.ResolvedSource{SourceID: "v"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDecode)
	assert.Equal(t, 1, fetcher.calls)
	assert.Equal(t, 1, decoder.calls)
}

func TestFromPCM16(t *testing.T) {
	pcm := []byte{0x00, 0x80, 0xff, 0x7f, 0x00, 0x00, 0x01}
	s := acquire.FromPCM16(pcm, 44100)
	require.Len(t, s.Samples, 3)
	assert.Equal(t, -1.0, s.Samples[0])
	assert.InDelta(t, 1.0, s.Samples[1], 1e-4)
	assert.Zero(t, s.Samples[2])
}
