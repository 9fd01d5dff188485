package cvp

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/shinji-kodama/cv-container/internal/config"
	"github.com/shinji-kodama/cv-container/internal/model"
)

// REST paths used by the client.
const (
	pathLogin      = "/cvpservice/login/authenticate.do"
	pathLogout     = "/cvpservice/login/logout.do"
	pathInfo       = "/cvpservice/cvpInfo/getCvpInfo.do"
	pathTopology   = "/cvpservice/provisioning/filterTopology.do"
	pathSearch     = "/cvpservice/inventory/add/searchContainers.do"
	pathTempAction = "/cvpservice/provisioning/addTempAction.do"
	pathSave       = "/cvpservice/provisioning/v2/saveTopology.do"
	pathInventory  = "/cvpservice/inventory/devices"
)

// maxErrorBody caps how much of an error response is quoted in errors.
const maxErrorBody = 512

// Client talks to one CloudVision node.
//
// Usage:
//
//	c, err := cvp.NewClient(cfg, cvp.WithLogger(logger))
//	if err != nil { /* handle */ }
//	if err := c.Connect(ctx); err != nil { /* no node answered */ }
//	defer c.Close(ctx)
type Client struct {
	cfg    config.Config
	http   *http.Client
	logger zerolog.Logger

	// baseURL is the node chosen by Connect. Empty until then.
	baseURL string
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used for request tracing.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithHTTPClient replaces the HTTP client. The caller is then responsible
// for TLS settings, timeouts and a cookie jar.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// NewClient validates cfg and builds a Client. It does not contact
// CloudVision; call Connect for that.
//
// Returns a model.CLIError with ExitGeneralError if cfg is invalid.
func NewClient(cfg config.Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, model.WrapCLIError(model.ExitGeneralError, "cannot create CloudVision client", err)
	}

	// The jar keeps the session cookie set by the login call.
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{
		// CloudVision appliances ship with self-signed certificates.
		InsecureSkipVerify: !cfg.ValidateCerts, //nolint:gosec // opt-in via validate_certs
		MinVersion:         tls.VersionTLS12,
	}

	c := &Client{
		cfg:    cfg,
		logger: zerolog.Nop(),
		http: &http.Client{
			Jar:       jar,
			Transport: transport,
			Timeout:   cfg.RequestTimeout(),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Connect opens a session on the first configured host that accepts it.
//
// Returns a model.RemoteError listing every host's failure if none does.
func (c *Client) Connect(ctx context.Context) error {
	var errs []error
	for _, host := range c.cfg.Hosts {
		base := baseURL(host, c.cfg.Port)
		log := c.logger.With().Str("host", base).Logger()

		if err := c.authenticate(ctx, base); err != nil {
			log.Warn().Err(err).Msg("cloudvision node unavailable")
			errs = append(errs, fmt.Errorf("%s: %w", host, err))
			continue
		}

		c.baseURL = base
		log.Debug().Bool("token", c.cfg.APIToken != "").Msg("connected to cloudvision")
		return nil
	}
	return model.NewRemoteError("connect", strings.Join(c.cfg.Hosts, ","), errors.Join(errs...))
}

func (c *Client) authenticate(ctx context.Context, base string) error {
	if c.cfg.APIToken != "" {
		// A token needs no login; probe the node so that a dead host or a
		// bad token fails here rather than on the first real call.
		return c.do(ctx, base, http.MethodGet, pathInfo, nil, nil, nil)
	}

	body := map[string]string{
		"userId":   c.cfg.Username,
		"password": c.cfg.Password,
	}
	var resp struct {
		SessionID string `json:"sessionId"`
	}
	if err := c.do(ctx, base, http.MethodPost, pathLogin, nil, body, &resp); err != nil {
		return err
	}
	if resp.SessionID == "" {
		return errors.New("login response has no session id")
	}
	return nil
}

// Ping checks that the connected node still answers.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.requireConnected(); err != nil {
		return err
	}
	if err := c.do(ctx, c.baseURL, http.MethodGet, pathInfo, nil, nil, nil); err != nil {
		return model.NewRemoteError("ping", c.baseURL, err)
	}
	return nil
}

// Host returns the base URL of the connected node, or "" before Connect.
func (c *Client) Host() string {
	return c.baseURL
}

// Close ends a password session. Token sessions have nothing to close.
func (c *Client) Close(ctx context.Context) error {
	if c.baseURL == "" || c.cfg.APIToken != "" {
		return nil
	}
	if err := c.do(ctx, c.baseURL, http.MethodPost, pathLogout, nil, map[string]string{}, nil); err != nil {
		return model.NewRemoteError("logout", c.baseURL, err)
	}
	return nil
}

func (c *Client) requireConnected() error {
	if c.baseURL == "" {
		return model.NewRemoteError("request", "", errors.New("client is not connected"))
	}
	return nil
}

// do sends one request and decodes the JSON answer into out (when non-nil).
// CloudVision reports some failures as HTTP 200 with an errorCode or
// errorMessage field; those are turned into errors too.
func (c *Client) do(ctx context.Context, base, method, path string, query url.Values, body, out interface{}) error {
	u := base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.APIToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIToken)
	}

	c.logger.Trace().Str("method", method).Str("url", u).Msg("cloudvision request")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s %s: HTTP %d: %s", method, path, resp.StatusCode, truncate(data))
	}
	if err := apiError(data); err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// apiError extracts an in-band CloudVision error from a response body.
func apiError(data []byte) error {
	var e struct {
		// errorCode is a string on most endpoints and a number on some.
		ErrorCode    json.RawMessage `json:"errorCode"`
		ErrorMessage string          `json:"errorMessage"`
	}
	// Non-object bodies (lists, empty) carry no error envelope.
	if json.Unmarshal(data, &e) != nil {
		return nil
	}
	code := strings.Trim(string(e.ErrorCode), `"`)
	if code == "null" {
		code = ""
	}
	switch {
	case code != "" && e.ErrorMessage != "":
		return fmt.Errorf("cloudvision error %s: %s", code, e.ErrorMessage)
	case e.ErrorMessage != "":
		return fmt.Errorf("cloudvision error: %s", e.ErrorMessage)
	case code != "":
		return fmt.Errorf("cloudvision error %s", code)
	}
	return nil
}

// baseURL turns a configured host into a base URL. A host that already
// carries a scheme is used as is.
func baseURL(host string, port int) string {
	host = strings.TrimRight(strings.TrimSpace(host), "/")
	if strings.Contains(host, "://") {
		return host
	}
	if port == 0 || port == 443 {
		return "https://" + host
	}
	return "https://" + host + ":" + strconv.Itoa(port)
}

func truncate(data []byte) string {
	s := strings.TrimSpace(string(data))
	if len(s) > maxErrorBody {
		return s[:maxErrorBody] + "..."
	}
	return s
}
