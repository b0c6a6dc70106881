package registry

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T, handler http.HandlerFunc) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(Config{BaseURL: srv.URL, APIKey: "k", Timeout: 2 * time.Second})
	require.NoError(t, err)
	return c
}

func TestIngestTopic(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/topics/ingest", r.URL.Path)
		assert.Equal(t, "k", r.Header.Get("X-API-Key"))
		var req IngestTopicRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Dune: Part Two", req.Name)
		assert.Equal(t, int64(7), req.Source.TrendID)
		_, _ = w.Write([]byte(`{"code":0,"message":"ok","data":{"topic_id":"topic-42"}}`))
	})

	token, found, err := c.IngestTopic(context.Background(), IngestTopicRequest{
		Name:      "Dune: Part Two",
		TopicType: "movie",
		Source:    SourceIdentity{TrendID: 7, Name: "Dune", Category: "all"},
	})
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "topic-42", token)
}

func TestIngestTopicWithoutToken(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":0,"message":"ignored"}`))
	})

	token, found, err := c.IngestTopic(context.Background(), IngestTopicRequest{Name: "x"})
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, token)
}

func TestUpsertTrendInfo(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/topics/topic-42/trend-info", r.URL.Path)
		var req UpsertTrendInfoRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "google_trends", req.SourceTag)
		assert.Equal(t, int64(500), req.TrendInfo.SearchVolume)
		_, _ = w.Write([]byte(`{"code":0,"message":"ok"}`))
	})

	ok, err := c.UpsertTrendInfo(context.Background(), "topic-42", UpsertTrendInfoRequest{
		SourceTag: "google_trends",
		TrendInfo: TrendInfo{SearchVolume: 500, Breakdown: []string{"dune"}},
	})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRegistryErrorsAreNotRetried(t *testing.T) {
	var calls int32
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	ok, err := c.UpsertTrendInfo(context.Background(), "t", UpsertTrendInfoRequest{})
	assert.Error(t, err)
	assert.False(t, ok)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	c2 := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":3,"message":"duplicate"}`))
	})
	_, _, err = c2.IngestTopic(context.Background(), IngestTopicRequest{Name: "x"})
	assert.ErrorContains(t, err, "duplicate")
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient(Config{BaseURL: "http://localhost"})
	assert.Error(t, err)
}
