// Package captcha verifies Cloudflare Turnstile challenge responses.
package captcha

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	errorvalues "github.com/limbo/todoboard/internal/error_values"
)

const (
	DefaultEndpoint = "https://challenges.cloudflare.com/turnstile/v0/siteverify"
	// Header carries the widget token from the client.
	Header = "x-captcha-response"
)

type Verifier struct {
	secret   string
	endpoint string
	client   *http.Client
}

type Option func(*Verifier)

func WithEndpoint(endpoint string) Option {
	return func(v *Verifier) { v.endpoint = endpoint }
}

func WithHTTPClient(c *http.Client) Option {
	return func(v *Verifier) { v.client = c }
}

func New(secret string, opts ...Option) *Verifier {
	v := &Verifier{
		secret:   secret,
		endpoint: DefaultEndpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Enabled is false when no secret is configured; Verify then accepts everything.
func (v *Verifier) Enabled() bool {
	return v != nil && v.secret != ""
}

type siteverifyResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
	Hostname   string   `json:"hostname"`
}

func (v *Verifier) Verify(ctx context.Context, token, remoteIP string) error {
	if !v.Enabled() {
		return nil
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return errorvalues.ErrCaptchaMissing
	}
	form := url.Values{}
	form.Set("secret", v.secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("building siteverify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("calling siteverify: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("siteverify responded with %d", resp.StatusCode)
	}
	var body siteverifyResponse
	if err := sonic.ConfigDefault.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decoding siteverify response: %w", err)
	}
	if !body.Success {
		return fmt.Errorf("%w: %s", errorvalues.ErrCaptchaFailed, strings.Join(body.ErrorCodes, ","))
	}
	return nil
}
