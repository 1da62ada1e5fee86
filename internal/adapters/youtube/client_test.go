package youtube_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ewilliams-labs/cratedigger/internal/adapters/youtube"
	"github.com/ewilliams-labs/cratedigger/internal/core/ports"
	"github.com/ewilliams-labs/cratedigger/internal/retry"
)

func fastPolicy() retry.Policy {
	return retry.Policy{Attempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestSearch(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[
			{"id":{"kind":"youtube#video","videoId":"abc"},"snippet":{"title":"One More Time","channelTitle":"Daft Punk - Topic"}},
			{"id":{"kind":"youtube#channel"},"snippet":{"title":"Daft Punk","channelTitle":"Daft Punk"}},
			{"id":{"kind":"youtube#video","videoId":"def"},"snippet":{"title":"One More Time (Live)","channelTitle":"fan"}}
		]}`))
	}))
	defer srv.Close()

	c := youtube.NewClient("secret", youtube.WithBaseURL(srv.URL), youtube.WithRetryPolicy(fastPolicy()))
	hits, err := c.Search(context.Background(), ports.SearchQuery{
		Query:          "Daft Punk - One More Time",
		Category:       "music",
		DurationBucket: "medium",
		MaxResults:     10,
	})
	require.NoError(t, err)

	require.Len(t, hits, 2)
	assert.Equal(t, ports.SearchHit{ID: "abc", Title: "One More Time", ChannelName: "Daft Punk - Topic"}, hits[0])
	assert.Equal(t, "def", hits[1].ID)

	require.NotNil(t, got)
	assert.Equal(t, "/search", got.URL.Path)
	q := got.URL.Query()
	assert.Equal(t, "Daft Punk - One More Time", q.Get("q"))
	assert.Equal(t, "video", q.Get("type"))
	assert.Equal(t, "10", q.Get("videoCategoryId"))
	assert.Equal(t, "medium", q.Get("videoDuration"))
	assert.Equal(t, "10", q.Get("maxResults"))
	assert.Equal(t, "secret", q.Get("key"))
}

func TestDetails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/videos", r.URL.Path)
		assert.Equal(t, "abc,def", r.URL.Query().Get("id"))
		_, _ = w.Write([]byte(`{"items":[
			{"id":"abc","snippet":{"title":"One More Time","channelTitle":"Daft Punk - Topic"},"contentDetails":{"duration":"PT5M20S"}},
			{"id":"def","snippet":{"title":"Broken","channelTitle":"x"},"contentDetails":{"duration":"P1D"}}
		]}`))
	}))
	defer srv.Close()

	c := youtube.NewClient("", youtube.WithBaseURL(srv.URL), youtube.WithRetryPolicy(fastPolicy()))
	details, err := c.Details(context.Background(), []string{"abc", "def"})
	require.NoError(t, err)
	require.Len(t, details, 2)
	assert.Equal(t, 320.0, details[0].DurationSeconds)
	assert.Zero(t, details[1].DurationSeconds)
}

func TestDetailsEmptyIDs(t *testing.T) {
	c := youtube.NewClient("k", youtube.WithBaseURL("http://127.0.0.1:1"))
	details, err := c.Details(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, details)
}

func TestRetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"items":[]}`))
	}))
	defer srv.Close()

	c := youtube.NewClient("k", youtube.WithBaseURL(srv.URL), youtube.WithRetryPolicy(fastPolicy()))
	hits, err := c.Search(context.Background(), ports.SearchQuery{Query: "x"})
	require.NoError(t, err)
	assert.Empty(t, hits)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := youtube.NewClient("k", youtube.WithBaseURL(srv.URL), youtube.WithRetryPolicy(fastPolicy()))
	_, err := c.Search(context.Background(), ports.SearchQuery{Query: "x"})
	require.Error(t, err)

	var status *youtube.StatusError
	require.ErrorAs(t, err, &status)
	assert.Equal(t, http.StatusTooManyRequests, status.Code)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"quotaExceeded"}}`))
	}))
	defer srv.Close()

	c := youtube.NewClient("k", youtube.WithBaseURL(srv.URL), youtube.WithRetryPolicy(fastPolicy()))
	_, err := c.Search(context.Background(), ports.SearchQuery{Query: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quotaExceeded")
	assert.Equal(t, int32(1), calls.Load())
}

func TestAccessTokenIsSent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"items":[]}`))
	}))
	defer srv.Close()

	c := youtube.NewClient("", youtube.WithBaseURL(srv.URL), youtube.WithAccessToken(context.Background(), "tok"))
	_, err := c.Search(context.Background(), ports.SearchQuery{Query: "x"})
	require.NoError(t, err)
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{in: "PT4M33S", want: 273},
		{in: "PT1H2M3S", want: 3723},
		{in: "PT45S", want: 45},
		{in: "PT10M", want: 600},
		{in: "", wantErr: true},
		{in: "4:33", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := youtube.ParseDuration(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
