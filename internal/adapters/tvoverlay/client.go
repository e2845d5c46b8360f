package tvoverlay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/frostdev-ops/pma-tvoverlay/pkg/version"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultPort is the port the overlay app listens on
	DefaultPort = 5001
	// DefaultName is used when a registration is created without a name
	DefaultName = "TvOverlay"
	// DefaultTimeout bounds every request to a device
	DefaultTimeout = 10 * time.Second
)

// sharedHTTPClient is the transport session reused by every device client,
// registered or ad hoc, so connections are pooled per host.
var sharedHTTPClient = &http.Client{Timeout: DefaultTimeout}

// Client talks to a single overlay device. It holds no state beyond the
// address and is safe for concurrent use.
type Client struct {
	host       string
	port       int
	baseURL    string
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewClient creates a new overlay device client on the shared transport
func NewClient(host string, port int, logger *logrus.Logger) *Client {
	return NewClientWithHTTP(host, port, sharedHTTPClient, logger)
}

// NewClientWithHTTP creates a client on the given http client
func NewClientWithHTTP(host string, port int, httpClient *http.Client, logger *logrus.Logger) *Client {
	if httpClient == nil {
		httpClient = sharedHTTPClient
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Client{
		host:    host,
		port:    port,
		baseURL: fmt.Sprintf("http://%s", net.JoinHostPort(host, fmt.Sprintf("%d", port))),
		httpClient: httpClient,
		logger:     logger,
	}
}

// Host returns the device host
func (c *Client) Host() string { return c.host }

// Port returns the device port
func (c *Client) Port() int { return c.port }

// BaseURL returns the http base URL of the device
func (c *Client) BaseURL() string { return c.baseURL }

// makeRequest performs one request and classifies the outcome. A 200 with a
// body that is not a JSON object is still a success, with a nil payload.
func (c *Client) makeRequest(ctx context.Context, method, endpoint string, body interface{}) (bool, map[string]any, error) {
	url := c.baseURL + endpoint

	var bodyReader io.Reader
	if method != http.MethodGet {
		if body == nil {
			body = map[string]any{}
		}
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return false, nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return false, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", version.UserAgent())
	if bodyReader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, nil, c.connectionError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, nil, c.connectionError(err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.WithFields(logrus.Fields{
			"host":     c.host,
			"port":     c.port,
			"endpoint": endpoint,
			"status":   resp.StatusCode,
			"body":     string(data),
		}).Error("TvOverlay API error")
		return false, nil, nil
	}

	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return true, nil, nil
	}
	return true, payload, nil
}

func (c *Client) connectionError(err error) *ConnectionError {
	var netErr net.Error
	timeout := errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout())
	return &ConnectionError{
		APIError: APIError{Host: c.host, Port: c.port, Message: err.Error()},
		Timeout:  timeout,
		Err:      err,
	}
}

func (c *Client) post(ctx context.Context, endpoint string, body interface{}) (bool, error) {
	ok, _, err := c.makeRequest(ctx, http.MethodPost, endpoint, body)
	return ok, err
}

// TestConnection posts an empty notification and reports whether the device
// accepted it. Connection failures are reported as false.
func (c *Client) TestConnection(ctx context.Context) bool {
	ok, err := c.post(ctx, EndpointNotify, map[string]any{})
	if err != nil {
		c.logger.WithError(err).WithField("host", c.host).Debug("TvOverlay connection test failed")
		return false
	}
	return ok
}

// SendNotification sends a transient notification
func (c *Client) SendNotification(ctx context.Context, payload *NotifyPayload) (bool, error) {
	return c.post(ctx, EndpointNotify, payload)
}

// SendFixedNotification sends or updates a fixed notification
func (c *Client) SendFixedNotification(ctx context.Context, payload *FixedNotifyPayload) (bool, error) {
	return c.post(ctx, EndpointNotifyFixed, payload)
}

// ClearFixedNotification hides the fixed notification with the given id
func (c *Client) ClearFixedNotification(ctx context.Context, id string) (bool, error) {
	visible := false
	return c.post(ctx, EndpointNotifyFixed, &FixedNotifyPayload{ID: id, Visible: &visible})
}

// SetOverlay updates overlay settings
func (c *Client) SetOverlay(ctx context.Context, data map[string]any) (bool, error) {
	return c.post(ctx, EndpointSetOverlay, data)
}

// SetNotifications updates notification settings
func (c *Client) SetNotifications(ctx context.Context, data map[string]any) (bool, error) {
	return c.post(ctx, EndpointSetNotifications, data)
}

// SetSettings updates general settings
func (c *Client) SetSettings(ctx context.Context, data map[string]any) (bool, error) {
	return c.post(ctx, EndpointSetSettings, data)
}

// FetchConfig reads GET /get. It returns a nil map without error when the
// device answered with a non-200 or a body that is not a JSON object, and a
// *ConnectionError when it could not be reached.
func (c *Client) FetchConfig(ctx context.Context) (map[string]any, error) {
	ok, data, err := c.makeRequest(ctx, http.MethodGet, EndpointGet, nil)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return data, nil
}

// GetConfig is FetchConfig with connection failures logged and reported as
// an absent result.
func (c *Client) GetConfig(ctx context.Context) map[string]any {
	data, err := c.FetchConfig(ctx)
	if err != nil {
		c.logger.WithError(err).Warnf("Failed to get config from TvOverlay at %s:%d", c.host, c.port)
		return nil
	}
	return data
}

// GetOverlay reads GET /get/overlay
func (c *Client) GetOverlay(ctx context.Context) map[string]any {
	ok, data, err := c.makeRequest(ctx, http.MethodGet, EndpointGetOverlay, nil)
	if err != nil || !ok {
		return nil
	}
	return data
}
