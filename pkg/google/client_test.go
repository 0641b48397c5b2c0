package google

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchText_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/places:searchText", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Goog-Api-Key"))
		assert.Contains(t, r.Header.Get("X-Goog-FieldMask"), "places.websiteUri")

		var body searchTextRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Tony's Pizza, Boston, MA", body.TextQuery)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(SearchTextResponse{
			Places: []Place{
				{
					ID:          "ChIJ-tony",
					DisplayName: DisplayName{Text: "Tony's Pizza"},
					WebsiteURI:  "https://www.tonyspizza.com/",
				},
			},
		})
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	resp, err := client.SearchText(context.Background(), "Tony's Pizza, Boston, MA")

	require.NoError(t, err)
	require.Len(t, resp.Places, 1)
	assert.Equal(t, "ChIJ-tony", resp.Places[0].ID)
	assert.Equal(t, "https://www.tonyspizza.com/", resp.Places[0].WebsiteURI)
}

func TestSearchText_NoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	resp, err := client.SearchText(context.Background(), "Nonexistent Pizza")

	require.NoError(t, err)
	assert.Empty(t, resp.Places)
}

func TestSearchText_QuotaExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"Quota exceeded for quota metric 'Text Search requests'","status":"RESOURCE_EXHAUSTED"}}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	resp, err := client.SearchText(context.Background(), "test")

	assert.Nil(t, resp)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 429, apiErr.StatusCode)
	assert.Equal(t, "RESOURCE_EXHAUSTED", apiErr.Status)
	assert.True(t, apiErr.QuotaExhausted())
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "Quota exceeded")
}

func TestSearchText_Forbidden(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	client := NewClient("bad-key", WithBaseURL(srv.URL))
	_, err := client.SearchText(context.Background(), "test")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.False(t, apiErr.QuotaExhausted())
	assert.Equal(t, "not json", apiErr.Message)
	assert.Contains(t, err.Error(), "403")
}

func TestSearchText_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"places": [`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := client.SearchText(context.Background(), "test")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal response")
}

func TestSearchText_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient("test-key", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	resp, err := client.SearchText(ctx, "test")

	assert.Error(t, err)
	assert.Nil(t, resp)
}
