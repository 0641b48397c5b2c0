package google

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://places.googleapis.com/v1"

// websiteFieldMask limits Text Search responses to what a website lookup needs.
const websiteFieldMask = "places.id,places.displayName,places.websiteUri,places.formattedAddress"

// Client performs Google Places API operations.
type Client interface {
	SearchText(ctx context.Context, query string) (*SearchTextResponse, error)
}

// SearchTextResponse is the response from Places Text Search.
type SearchTextResponse struct {
	Places []Place `json:"places"`
}

// Place represents a place returned by the API.
type Place struct {
	ID               string      `json:"id"`
	DisplayName      DisplayName `json:"displayName"`
	WebsiteURI       string      `json:"websiteUri,omitempty"`
	FormattedAddress string      `json:"formattedAddress,omitempty"`
}

// DisplayName holds the place's display name.
type DisplayName struct {
	Text string `json:"text"`
}

// APIError is a non-200 response from the Places API.
type APIError struct {
	StatusCode int
	Status     string // google.rpc status, e.g. RESOURCE_EXHAUSTED
	Message    string
}

func (e *APIError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("google: unexpected status %d %s: %s", e.StatusCode, e.Status, e.Message)
	}
	return fmt.Sprintf("google: unexpected status %d: %s", e.StatusCode, e.Message)
}

// QuotaExhausted reports whether the request was rejected for quota or rate.
func (e *APIError) QuotaExhausted() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.Status == "RESOURCE_EXHAUSTED"
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a Google Places API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type searchTextRequest struct {
	TextQuery string `json:"textQuery"`
}

type errorEnvelope struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (c *httpClient) SearchText(ctx context.Context, query string) (*SearchTextResponse, error) {
	body, err := json.Marshal(searchTextRequest{TextQuery: query})
	if err != nil {
		return nil, eris.Wrap(err, "google: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/places:searchText", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "google: create request")
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask", websiteFieldMask)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "google: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "google: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, newAPIError(resp.StatusCode, respBody)
	}

	var result SearchTextResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "google: unmarshal response")
	}

	return &result, nil
}

func newAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: statusCode, Message: string(body)}
	var env errorEnvelope
	if json.Unmarshal(body, &env) == nil && env.Error.Message != "" {
		apiErr.Status = env.Error.Status
		apiErr.Message = env.Error.Message
	}
	return apiErr
}
