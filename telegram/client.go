// Package telegram sends the site's notifications through the Telegram Bot
// API. It wraps go-telegram-bot-api with per-call contexts and typed errors.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// DefaultBaseURL is the public Bot API endpoint.
const DefaultBaseURL = "https://api.telegram.org"

// ErrNoToken is returned when a message is sent without a configured bot token.
var ErrNoToken = errors.New("telegram: bot token is not configured")

// APIError is a non-ok answer from the Bot API.
type APIError struct {
	Code        int
	Description string
	// RetryAfter is set on flood-control answers (429).
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram: %d %s", e.Code, e.Description)
}

// Client calls the Bot API with a single bot token.
type Client struct {
	token    string
	endpoint string
	http     *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another Bot API server.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.endpoint = endpointFor(u)
		}
	}
}

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func endpointFor(base string) string {
	base = strings.ReplaceAll(strings.TrimSuffix(base, "/"), "%", "%%")
	return base + "/bot%s/%s"
}

// New creates a Client for token. No request is made until a message is sent.
func New(token string, opts ...Option) *Client {
	c := &Client{
		token:    token,
		endpoint: tgbotapi.APIEndpoint,
		http:     &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// contextDoer binds outgoing library requests to the caller's context.
type contextDoer struct {
	ctx    context.Context
	client *http.Client
}

func (d contextDoer) Do(req *http.Request) (*http.Response, error) {
	return d.client.Do(req.WithContext(d.ctx))
}

// bot returns a library handle scoped to ctx. It is built without the
// constructors, which call getMe.
func (c *Client) bot(ctx context.Context) *tgbotapi.BotAPI {
	api := &tgbotapi.BotAPI{
		Token:  c.token,
		Client: contextDoer{ctx: ctx, client: c.http},
		Buffer: 100,
	}
	api.SetAPIEndpoint(c.endpoint)
	return api
}

// SendMessage sends an HTML-formatted text message to chatID with link
// previews disabled.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	if c.token == "" {
		return ErrNoToken
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	if _, err := c.bot(ctx).Request(msg); err != nil {
		return c.wrap("sendMessage", err)
	}
	return nil
}

func (c *Client) wrap(method string, err error) error {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return &APIError{
			Code:        apiErr.Code,
			Description: apiErr.Message,
			RetryAfter:  time.Duration(apiErr.RetryAfter) * time.Second,
		}
	}
	// Transport errors carry the request URL, which holds the token.
	return fmt.Errorf("telegram: %s: %w", method, scrub(err, c.token))
}

// scrubbedError hides the token in its message but keeps the cause
// reachable for errors.Is.
type scrubbedError struct {
	msg string
	err error
}

func (e *scrubbedError) Error() string { return e.msg }
func (e *scrubbedError) Unwrap() error { return e.err }

func scrub(err error, token string) error {
	if token == "" || !strings.Contains(err.Error(), token) {
		return err
	}
	return &scrubbedError{msg: strings.ReplaceAll(err.Error(), token, "<token>"), err: err}
}
