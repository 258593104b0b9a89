package crawlservice

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/ai-readiness-scorer/internal/crawler"
)

func TestDispatchPostsJob(t *testing.T) {
	t.Parallel()

	var got DispatchRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/crawls", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.Equal(t, "secret", r.Header.Get("X-API-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c, err := NewClient(ClientConfig{BaseURL: srv.URL + "/", CallbackURL: "https://scorer.example/v1/ingest", APIKey: "secret"}, nil)
	require.NoError(t, err)

	err = c.Dispatch(context.Background(), crawler.Job{ID: "job-1", ProjectID: "proj", Config: map[string]any{"max_pages": 25}})
	require.NoError(t, err)
	require.Equal(t, "job-1", got.JobID)
	require.Equal(t, "proj", got.ProjectID)
	require.Equal(t, "https://scorer.example/v1/ingest", got.CallbackURL)
	require.EqualValues(t, 25, got.Config["max_pages"])
}

func TestDispatchErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("plain") != "" {
			http.Error(w, "upstream down", http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"queue full"}`))
	}))
	defer srv.Close()

	c, err := NewClient(ClientConfig{BaseURL: srv.URL}, srv.Client())
	require.NoError(t, err)
	err = c.Dispatch(context.Background(), crawler.Job{ID: "job-1"})
	require.ErrorContains(t, err, "503: queue full")

	c.endpoint = srv.URL + "/v1/crawls?plain=1"
	err = c.Dispatch(context.Background(), crawler.Job{ID: "job-1"})
	require.ErrorContains(t, err, "502: upstream down")

	_, err = NewClient(ClientConfig{}, nil)
	require.Error(t, err)

	closed := httptest.NewServer(http.NotFoundHandler())
	closed.Close()
	c, err = NewClient(ClientConfig{BaseURL: closed.URL}, nil)
	require.NoError(t, err)
	require.ErrorContains(t, c.Dispatch(context.Background(), crawler.Job{ID: "job-1"}), "dispatch request")
}
