package keycloak

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/m-proto/loginpage/internal/config"
)

const DefaultTimeout = 5 * time.Second

var (
	// ErrTimeout is returned when the token endpoint did not answer within the configured timeout
	ErrTimeout = errors.New("keycloak request timed out")

	// ErrUnreachable is returned on transport failures other than timeouts
	ErrUnreachable = errors.New("keycloak unreachable")
)

// TokenError is a non-success answer from the token endpoint
type TokenError struct {
	StatusCode int
	Body       string // raw upstream body, for server-side logs only
}

func (e *TokenError) Error() string {
	return fmt.Sprintf("token endpoint returned status %d", e.StatusCode)
}

type Client struct {
	provider     *oidc.Provider
	oauth2Config oauth2.Config
	cfg          config.KeycloakConfig
	timeout      time.Duration
	httpClient   *http.Client
}

// NewClient creates a client for the realm. With discovery enabled the token
// endpoint is read from the OIDC discovery document, otherwise it is derived
// from the realm URL.
func NewClient(ctx context.Context, cfg config.KeycloakConfig) (*Client, error) {
	// Apply timeout for provider initialization
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	c := &Client{
		cfg:        cfg,
		timeout:    timeout,
		httpClient: &http.Client{},
	}

	endpoint := oauth2.Endpoint{TokenURL: cfg.TokenURL()}

	if cfg.Discovery {
		initCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		provider, err := oidc.NewProvider(initCtx, cfg.IssuerURL())
		if err != nil {
			return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
		}
		c.provider = provider
		endpoint = provider.Endpoint()
	}

	// Client credentials travel in the form body, as Keycloak's direct grant expects
	endpoint.AuthStyle = oauth2.AuthStyleInParams

	c.oauth2Config = oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     endpoint,
		Scopes:       cfg.Scopes,
	}

	return c, nil
}

// ExchangeSubject performs a Resource Owner Password Credentials grant for
// subject using the shared placeholder password, and returns the token
// response body exactly as the IdP sent it.
func (c *Client) ExchangeSubject(ctx context.Context, subject string) (json.RawMessage, error) {
	// Apply timeout for token exchange
	timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	capture := &captureTransport{base: c.httpClient.Transport}
	timeoutCtx = context.WithValue(timeoutCtx, oauth2.HTTPClient, &http.Client{Transport: capture})

	_, err := c.oauth2Config.PasswordCredentialsToken(timeoutCtx, subject, c.cfg.SubjectPassword)
	if err != nil {
		return nil, classifyError(err, capture)
	}

	return json.RawMessage(capture.body), nil
}

// HealthCheck verifies Keycloak is accessible by fetching OIDC discovery
func (c *Client) HealthCheck(ctx context.Context) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	// Re-fetch provider to verify Keycloak is reachable
	_, err := oidc.NewProvider(timeoutCtx, c.cfg.IssuerURL())
	if err != nil {
		return fmt.Errorf("keycloak health check failed: %w", err)
	}
	return nil
}

// TokenURL returns the token endpoint in use
func (c *Client) TokenURL() string {
	return c.oauth2Config.Endpoint.TokenURL
}

func classifyError(err error, capture *captureTransport) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		tokenErr := &TokenError{Body: string(retrieveErr.Body)}
		if retrieveErr.Response != nil {
			tokenErr.StatusCode = retrieveErr.Response.StatusCode
		}
		return tokenErr
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	// A 2xx answer oauth2 could not use (missing access_token, bad JSON) is a rejection too
	if capture.statusCode != 0 {
		return &TokenError{StatusCode: capture.statusCode, Body: capture.bodySnippet()}
	}

	return fmt.Errorf("%w: %v", ErrUnreachable, err)
}

// captureTransport records the token endpoint's response so it can be relayed verbatim
type captureTransport struct {
	base       http.RoundTripper
	statusCode int
	body       []byte
}

func (t *captureTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}

	resp, err := base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	t.statusCode = resp.StatusCode
	t.body = body
	resp.Body = io.NopCloser(bytes.NewReader(body))
	return resp, nil
}

func (t *captureTransport) bodySnippet() string {
	s := strings.TrimSpace(string(t.body))
	if len(s) > 512 {
		return s[:512]
	}
	return s
}
