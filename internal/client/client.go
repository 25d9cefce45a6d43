// Package client talks to a running taximeter server over HTTP.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"taximeter/internal/handler"
)

const defaultTimeout = 5 * time.Second

// ErrNoActiveTrip is returned by Finish when the server reports that no trip
// was running. The server message is available through APIError.
var ErrNoActiveTrip = errors.New("no active trip")

// APIError is a non-2xx answer from the server.
type APIError struct {
	StatusCode int
	Message    string
	Warning    bool
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// Is lets warnings about a missing trip match ErrNoActiveTrip.
func (e *APIError) Is(target error) bool {
	return target == ErrNoActiveTrip && e.Warning && e.StatusCode == http.StatusConflict
}

// Client is a meter API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a Client for the server at baseURL, e.g. "http://localhost:8080".
// A nil httpClient gets a client with a short timeout.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// Status returns the live meter view.
func (c *Client) Status(ctx context.Context) (*handler.MeterResponse, error) {
	var out handler.MeterResponse
	if err := c.do(ctx, http.MethodGet, "/v1/meter", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Start begins a trip. Starting while a trip runs returns the running view
// with a nil Trip.
func (c *Client) Start(ctx context.Context) (*handler.StartTripResponse, error) {
	var out handler.StartTripResponse
	if err := c.do(ctx, http.MethodPost, "/v1/meter/start", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Move switches the running trip to the moving rate.
func (c *Client) Move(ctx context.Context) (*handler.MeterResponse, error) {
	var out handler.MeterResponse
	if err := c.do(ctx, http.MethodPost, "/v1/meter/move", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Stop switches the running trip to the stopped rate.
func (c *Client) Stop(ctx context.Context) (*handler.MeterResponse, error) {
	var out handler.MeterResponse
	if err := c.do(ctx, http.MethodPost, "/v1/meter/stop", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Finish ends the running trip. Without a trip the error matches ErrNoActiveTrip.
func (c *Client) Finish(ctx context.Context) (*handler.FinishTripResponse, error) {
	var out handler.FinishTripResponse
	if err := c.do(ctx, http.MethodPost, "/v1/meter/finish", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Receipt returns the plain text receipt of the last finished trip.
func (c *Client) Receipt(ctx context.Context) (string, error) {
	resp, err := c.send(ctx, http.MethodGet, "/v1/meter/receipt?format=text")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read receipt: %w", err)
	}
	return string(body), nil
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	resp, err := c.send(ctx, method, path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// send performs the request and turns non-2xx answers into *APIError.
func (c *Client) send(ctx context.Context, method, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		defer resp.Body.Close()
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var body handler.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
			apiErr.Message = body.Error
			apiErr.Warning = body.Warning
		} else {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return nil, apiErr
	}

	return resp, nil
}
