package avatar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// DefaultEndpoint resolves Twitch usernames to profile image URLs
const DefaultEndpoint = "https://decapi.me/twitch/avatar/{identity}"

const identityPlaceholder = "{identity}"

// maxBodyBytes caps how much of a response is read; a URL is far shorter
const maxBodyBytes = 8 << 10

var (
	ErrEmptyIdentity = errors.New("identity required")
	ErrInvalidAvatar = errors.New("response is not an avatar url")
)

// Resolver turns an identity into an avatar URL
type Resolver interface {
	Resolve(ctx context.Context, identity string) (string, error)
}

// Client resolves avatars with one plain-text GET per identity
type Client struct {
	http     *http.Client
	endpoint string
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithEndpoint sets the URL template; {identity} is replaced by the
// path-escaped identity.
func WithEndpoint(template string) Option {
	return func(c *Client) {
		if template != "" {
			c.endpoint = template
		}
	}
}

func New(opts ...Option) *Client {
	c := &Client{
		http:     http.DefaultClient,
		endpoint: DefaultEndpoint,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Endpoint returns the configured URL template
func (c *Client) Endpoint() string {
	return c.endpoint
}

func (c *Client) urlFor(identity string) string {
	escaped := url.PathEscape(identity)
	if !strings.Contains(c.endpoint, identityPlaceholder) {
		return strings.TrimRight(c.endpoint, "/") + "/" + escaped
	}
	return strings.ReplaceAll(c.endpoint, identityPlaceholder, escaped)
}

// Resolve performs a single GET and returns the avatar URL from the body
func (c *Client) Resolve(ctx context.Context, identity string) (string, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return "", ErrEmptyIdentity
	}

	u := c.urlFor(identity)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "text/plain")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("GET %s: %w", u, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", u, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("GET %s: %s: %s", u, resp.Status, strings.TrimSpace(string(body)))
	}

	return validURL(string(body))
}

// validURL accepts a trimmed absolute http(s) URL
func validURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: empty body", ErrInvalidAvatar)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidAvatar, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidAvatar, raw)
	}
	return raw, nil
}
