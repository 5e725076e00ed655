// Package delivery sends composed replies back to the messaging platform.
package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	errx "github.com/chative-sales/server/internal/core/error"
	"github.com/chative-sales/server/internal/metrics"
	logx "github.com/chative-sales/server/pkg/logger"
)

// Deliverer sends one message to a conversation.
type Deliverer interface {
	Deliver(ctx context.Context, conversationID, text string) error
}

// TokenSource supplies the bearer token. Refresh is called after the platform
// rejects the current token.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Refresh(ctx context.Context) (string, error)
}

// StaticTokenSource always returns the same token.
type StaticTokenSource string

func (s StaticTokenSource) Token(context.Context) (string, error)   { return string(s), nil }
func (s StaticTokenSource) Refresh(context.Context) (string, error) { return string(s), nil }

// RefreshFunc fetches a fresh token from the platform.
type RefreshFunc func(ctx context.Context) (string, error)

// CachingTokenSource keeps the last fetched token until Refresh is called.
type CachingTokenSource struct {
	fetch RefreshFunc

	mu    sync.Mutex
	token string
}

func NewCachingTokenSource(fetch RefreshFunc) *CachingTokenSource {
	return &CachingTokenSource{fetch: fetch}
}

func (s *CachingTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != "" {
		return s.token, nil
	}
	return s.refreshLocked(ctx)
}

func (s *CachingTokenSource) Refresh(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshLocked(ctx)
}

func (s *CachingTokenSource) refreshLocked(ctx context.Context) (string, error) {
	tok, err := s.fetch(ctx)
	if err != nil {
		return "", err
	}
	s.token = tok
	return tok, nil
}

// ClientCredentials fetches a token with the OAuth2 client credentials grant.
func ClientCredentials(client *http.Client, tokenURL, clientID, clientSecret string) RefreshFunc {
	if client == nil {
		client = http.DefaultClient
	}
	return func(ctx context.Context) (string, error) {
		form := url.Values{
			"grant_type":    {"client_credentials"},
			"client_id":     {clientID},
			"client_secret": {clientSecret},
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
		if err != nil {
			return "", fmt.Errorf("build token request: %w", err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := client.Do(req)
		if err != nil {
			return "", fmt.Errorf("token request: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("token endpoint returned status %d", resp.StatusCode)
		}

		var out struct {
			AccessToken string `json:"access_token"`
		}
		if err := json.NewDecoder(io.LimitReader(resp.Body, 64*1024)).Decode(&out); err != nil {
			return "", fmt.Errorf("decode token response: %w", err)
		}
		if out.AccessToken == "" {
			return "", fmt.Errorf("token response has no access_token")
		}
		return out.AccessToken, nil
	}
}

type Config struct {
	URL          string        `envconfig:"DELIVERY_URL"`
	Token        string        `envconfig:"DELIVERY_TOKEN"`
	TokenURL     string        `envconfig:"DELIVERY_TOKEN_URL"`
	ClientID     string        `envconfig:"DELIVERY_CLIENT_ID"`
	ClientSecret string        `envconfig:"DELIVERY_CLIENT_SECRET"`
	Timeout      time.Duration `envconfig:"DELIVERY_TIMEOUT" default:"10s"`
}

// New picks the deliverer for the configuration: LogDeliverer without a URL,
// otherwise HTTP with client credentials or a static token.
func (c *Config) New(client *http.Client) Deliverer {
	if c.URL == "" {
		return LogDeliverer{}
	}
	var tokens TokenSource = StaticTokenSource(c.Token)
	if c.TokenURL != "" {
		tokens = NewCachingTokenSource(ClientCredentials(client, c.TokenURL, c.ClientID, c.ClientSecret))
	}
	return NewHTTPDeliverer(c.URL, tokens, client, c.Timeout)
}

// HTTPDeliverer posts replies as JSON with a bearer token.
type HTTPDeliverer struct {
	url     string
	tokens  TokenSource
	client  *http.Client
	timeout time.Duration
}

func NewHTTPDeliverer(url string, tokens TokenSource, client *http.Client, timeout time.Duration) *HTTPDeliverer {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPDeliverer{url: url, tokens: tokens, client: client, timeout: timeout}
}

type outbound struct {
	ConversationID string `json:"conversation_id"`
	Text           string `json:"text"`
}

// Deliver sends text. A 401/403 triggers one token refresh and one retry; a
// second rejection is an auth error. Other failures are delivery errors.
func (d *HTTPDeliverer) Deliver(ctx context.Context, conversationID, text string) error {
	body, err := json.Marshal(outbound{ConversationID: conversationID, Text: text})
	if err != nil {
		return errx.WrapDelivery(fmt.Errorf("marshal message: %w", err))
	}

	token, err := d.tokens.Token(ctx)
	if err != nil {
		return d.fail("auth", errx.WrapAuth(fmt.Errorf("get token: %w", err)))
	}

	status, err := d.post(ctx, token, body)
	if err != nil {
		return d.fail("error", errx.WrapDelivery(err))
	}
	if rejected(status) {
		logx.Warn().Str("conversation_id", conversationID).Int("status", status).Msg("delivery token rejected; refreshing")
		token, err = d.tokens.Refresh(ctx)
		if err != nil {
			return d.fail("auth", errx.WrapAuth(fmt.Errorf("refresh token: %w", err)))
		}
		status, err = d.post(ctx, token, body)
		if err != nil {
			return d.fail("error", errx.WrapDelivery(err))
		}
		if rejected(status) {
			return d.fail("auth", errx.WrapAuth(fmt.Errorf("platform rejected refreshed token: status %d", status)))
		}
	}
	if status < 200 || status >= 300 {
		return d.fail("error", errx.WrapDelivery(fmt.Errorf("platform returned status %d", status)))
	}

	metrics.DeliveriesTotal.WithLabelValues("ok").Inc()
	return nil
}

func (d *HTTPDeliverer) post(ctx context.Context, token string, body []byte) (int, error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("send: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
	return resp.StatusCode, nil
}

func (d *HTTPDeliverer) fail(result string, err error) error {
	metrics.DeliveriesTotal.WithLabelValues(result).Inc()
	return err
}

func rejected(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

// LogDeliverer writes replies to the log instead of sending them.
type LogDeliverer struct{}

func (LogDeliverer) Deliver(ctx context.Context, conversationID, text string) error {
	logx.Info().Str("conversation_id", conversationID).Str("text", text).Msg("reply")
	metrics.DeliveriesTotal.WithLabelValues("logged").Inc()
	return nil
}

var (
	_ Deliverer = (*HTTPDeliverer)(nil)
	_ Deliverer = LogDeliverer{}
)
