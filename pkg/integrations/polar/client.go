package polar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2"

	shared "github.com/fitglue/polar-ingest/pkg"
	httputil "github.com/fitglue/polar-ingest/pkg/infrastructure/http"
)

const acceptGPX = "application/gpx+xml"

// Client is an API client for the Polar AccessLink v3 API.
// User endpoints authenticate with the user's bearer token, partner
// endpoints with the client credentials.
type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	client       *http.Client
}

type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	// HTTPClient is the base client; its transport is reused for bearer requests.
	HTTPClient *http.Client
}

// NewClient creates a new AccessLink API client
func NewClient(cfg Config) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = shared.PolarDefaultBaseURL
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: shared.PolarHTTPTimeout}
	}
	return &Client{
		baseURL:      base,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		client:       hc,
	}
}

// Transaction is an open exercise transaction.
type Transaction struct {
	ID          int64  `json:"transaction-id"`
	ResourceURI string `json:"resource-uri"`
}

// AvailableData is one entry of the pull notification list.
type AvailableData struct {
	UserID   int64  `json:"user-id"`
	DataType string `json:"data-type"`
	URL      string `json:"url"`
}

// userClient returns an HTTP client that sends accessToken as a bearer token.
func (c *Client) userClient(ctx context.Context, accessToken string) *http.Client {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.client)
	hc := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))
	hc.Timeout = c.client.Timeout
	return hc
}

func (c *Client) url(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return c.baseURL + path
}

// do executes the request and converts 4xx/5xx responses into *httputil.HTTPError.
// The caller owns the returned body.
func (c *Client) do(hc *http.Client, req *http.Request) (*http.Response, error) {
	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Redacted(), err)
	}
	if err := httputil.ParseErrorResponse(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp, nil
}

func (c *Client) userRequest(ctx context.Context, accessToken, method, path, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.url(path), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if accept == "" {
		accept = "application/json"
	}
	req.Header.Set("Accept", accept)
	return c.do(c.userClient(ctx, accessToken), req)
}

func decodeJSON(resp *http.Response, v interface{}) error {
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// CreateTransaction opens an exercise transaction for the user.
// It returns nil without error when the provider has no new data.
func (c *Client) CreateTransaction(ctx context.Context, userID, accessToken string) (*Transaction, error) {
	path := fmt.Sprintf("/users/%s/exercise-transactions", userID)
	resp, err := c.userRequest(ctx, accessToken, http.MethodPost, path, "")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNoContent {
		resp.Body.Close()
		return nil, nil
	}

	var tx Transaction
	if err := decodeJSON(resp, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

// ListExercises returns the exercise URLs contained in a transaction.
func (c *Client) ListExercises(ctx context.Context, userID, accessToken string, transactionID int64) ([]string, error) {
	path := fmt.Sprintf("/users/%s/exercise-transactions/%d", userID, transactionID)
	resp, err := c.userRequest(ctx, accessToken, http.MethodGet, path, "")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNoContent {
		resp.Body.Close()
		return nil, nil
	}

	var list struct {
		Exercises []string `json:"exercises"`
	}
	if err := decodeJSON(resp, &list); err != nil {
		return nil, err
	}
	return list.Exercises, nil
}

// GetExerciseSummary fetches the summary of one exercise. Numbers are kept
// as json.Number so identifiers survive re-encoding unchanged.
func (c *Client) GetExerciseSummary(ctx context.Context, accessToken, exerciseURL string) (map[string]interface{}, error) {
	resp, err := c.userRequest(ctx, accessToken, http.MethodGet, exerciseURL, "")
	if err != nil {
		return nil, err
	}

	var summary map[string]interface{}
	if err := decodeJSON(resp, &summary); err != nil {
		return nil, err
	}
	if summary == nil {
		return nil, fmt.Errorf("empty exercise summary for %s", exerciseURL)
	}
	return summary, nil
}

// GetGPX fetches the GPX track of an exercise. Exercises without a route
// return an empty slice and no error.
func (c *Client) GetGPX(ctx context.Context, accessToken, exerciseURL string) ([]byte, error) {
	resp, err := c.userRequest(ctx, accessToken, http.MethodGet, strings.TrimRight(exerciseURL, "/")+"/gpx", acceptGPX)
	if err != nil {
		if httputil.IsStatus(err, http.StatusNotFound) {
			return nil, nil
		}
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read gpx: %w", err)
	}
	return data, nil
}

// CommitTransaction finalizes the transaction so its exercises are no longer offered.
func (c *Client) CommitTransaction(ctx context.Context, userID, accessToken string, transactionID int64) error {
	path := fmt.Sprintf("/users/%s/exercise-transactions/%d", userID, transactionID)
	resp, err := c.userRequest(ctx, accessToken, http.MethodPut, path, "")
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// ListAvailableData lists users with pending data, using the client credentials.
func (c *Client) ListAvailableData(ctx context.Context) ([]AvailableData, error) {
	if c.clientID == "" || c.clientSecret == "" {
		return nil, fmt.Errorf("client credentials not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url("/notifications"), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Accept", "application/json")

	resp, err := c.do(c.client, req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNoContent {
		resp.Body.Close()
		return nil, nil
	}

	var list struct {
		AvailableUserData []AvailableData `json:"available-user-data"`
	}
	if err := decodeJSON(resp, &list); err != nil {
		return nil, err
	}
	return list.AvailableUserData, nil
}
