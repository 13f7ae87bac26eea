// Package vcenter is a small client for the vSphere Automation REST API
// (/api), covering sessions and content library items.
package vcenter

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/raoulx24/cl-retention/internal/config"
	"github.com/raoulx24/cl-retention/internal/logging"
)

// SessionHeader carries the session token on authenticated requests.
const SessionHeader = "vmware-api-session-id"

var insecureWarning sync.Once

// ErrNoSession is returned by calls that need a session before Login.
var ErrNoSession = errors.New("vcenter: not logged in")

// Client owns one API session. It is not safe for concurrent use.
type Client struct {
	baseURL    string
	username   string
	password   string
	transport  *http.Transport
	httpClient *http.Client
	log        logging.Logger

	session string
}

// New creates a client for cfg.Endpoint. The endpoint is a host name
// (https is implied) or a full https URL.
func New(cfg config.VCenterConfig, log logging.Logger) *Client {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12}

	c := &Client{
		baseURL:    baseURL(cfg.Endpoint),
		username:   cfg.Username,
		password:   cfg.Password,
		transport:  tr,
		httpClient: &http.Client{Transport: tr, Timeout: cfg.Timeout},
		log:        log,
	}
	c.SetInsecure(cfg.Insecure)
	return c
}

func baseURL(endpoint string) string {
	endpoint = strings.TrimSuffix(endpoint, "/")
	if !strings.Contains(endpoint, "://") {
		endpoint = "https://" + endpoint
	}
	return endpoint + "/api"
}

// SetInsecure toggles certificate verification.
func (c *Client) SetInsecure(insecure bool) {
	c.transport.TLSClientConfig.InsecureSkipVerify = insecure
	if insecure {
		insecureWarning.Do(func() {
			c.log.Warn("insecure TLS connections are allowed, self-signed certificates will be accepted")
		})
	}
}

type request struct {
	method  string
	path    string
	query   url.Values
	payload any
	want    int
	out     any
	auth    bool // basic auth instead of the session header
}

func (c *Client) do(ctx context.Context, r request) error {
	u := c.baseURL + "/" + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}

	var body io.Reader
	if r.payload != nil {
		data, err := json.Marshal(r.payload)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		body = bytes.NewReader(data)
	}
	c.log.Debug("contacting API", "method", r.method, "url", u, "payload", r.payload)

	req, err := http.NewRequestWithContext(ctx, r.method, u, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if r.payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.auth {
		req.SetBasicAuth(c.username, c.password)
	} else if c.session != "" {
		req.Header.Set(SessionHeader, c.session)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error("API request failed", "method", r.method, "url", u, "error", err)
		return fmt.Errorf("%s %s: %w", r.method, u, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != r.want {
		c.log.Error("API responded with an error", "method", r.method, "url", u, "status", resp.StatusCode, "body", string(data))
		return &APIError{Method: r.method, URL: u, StatusCode: resp.StatusCode, Body: string(data)}
	}

	if r.out != nil && len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, r.out); err != nil {
			return fmt.Errorf("decode response of %s %s: %w", r.method, u, err)
		}
	}
	return nil
}

// Login exchanges the configured credentials for a session token.
func (c *Client) Login(ctx context.Context) error {
	c.log.Info("authenticating to vCenter", "user", c.username)

	var token string
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "session",
		want:   http.StatusCreated,
		out:    &token,
		auth:   true,
	})
	if err != nil {
		return fmt.Errorf("login as %s: %w", c.username, err)
	}
	if token == "" {
		return fmt.Errorf("login as %s: empty session token", c.username)
	}

	c.session = token
	c.log.Debug("authenticated to vCenter")
	return nil
}

// Logout invalidates the session. Without a session it does nothing.
func (c *Client) Logout(ctx context.Context) error {
	if c.session == "" {
		return nil
	}
	c.log.Info("logging out from vCenter")

	err := c.do(ctx, request{
		method: http.MethodDelete,
		path:   "session",
		want:   http.StatusNoContent,
	})
	// the token is unusable either way
	c.session = ""
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	c.log.Debug("logged out from vCenter")
	return nil
}
