// Package oauth implements the Google sign-in code exchange.
package oauth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	errorvalues "github.com/limbo/todoboard/internal/error_values"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	goauth2 "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

// Profile is what the provider tells us about the signed-in account.
type Profile struct {
	Provider      string
	ID            string
	Email         string
	EmailVerified bool
	Name          string
	GivenName     string
	FamilyName    string
}

type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

type GoogleProvider struct {
	cfg *oauth2.Config
	// overridden in tests
	userinfoEndpoint string
	httpClient       *http.Client
}

type Option func(*GoogleProvider)

// WithEndpoints points token exchange and userinfo at another host.
func WithEndpoints(tokenURL, userinfoEndpoint string) Option {
	return func(p *GoogleProvider) {
		p.cfg.Endpoint.TokenURL = tokenURL
		p.userinfoEndpoint = userinfoEndpoint
	}
}

func WithHTTPClient(c *http.Client) Option {
	return func(p *GoogleProvider) { p.httpClient = c }
}

func NewGoogle(c GoogleConfig, opts ...Option) *GoogleProvider {
	p := &GoogleProvider{
		cfg: &oauth2.Config{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			RedirectURL:  c.RedirectURL,
			Endpoint:     google.Endpoint,
			Scopes:       []string{goauth2.OpenIDScope, goauth2.UserinfoEmailScope, goauth2.UserinfoProfileScope},
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *GoogleProvider) Name() string {
	return "google"
}

func (p *GoogleProvider) Enabled() bool {
	return p != nil && p.cfg.ClientID != "" && p.cfg.ClientSecret != ""
}

func (p *GoogleProvider) AuthCodeURL(state string) string {
	return p.cfg.AuthCodeURL(state, oauth2.AccessTypeOnline, oauth2.SetAuthURLParam("prompt", "select_account"))
}

// Exchange trades the callback code for a token and reads the account's userinfo.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*Profile, error) {
	if !p.Enabled() {
		return nil, errorvalues.ErrOAuthDisabled
	}
	if p.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	}
	token, err := p.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchanging google code: %w", err)
	}
	opts := []option.ClientOption{option.WithHTTPClient(p.cfg.Client(ctx, token))}
	if p.userinfoEndpoint != "" {
		opts = append(opts, option.WithEndpoint(p.userinfoEndpoint))
	}
	svc, err := goauth2.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating userinfo client: %w", err)
	}
	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("fetching google userinfo: %w", err)
	}
	if info.Id == "" || info.Email == "" {
		return nil, fmt.Errorf("google userinfo lacks id or email")
	}
	return &Profile{
		Provider:      p.Name(),
		ID:            info.Id,
		Email:         strings.ToLower(info.Email),
		EmailVerified: info.VerifiedEmail != nil && *info.VerifiedEmail,
		Name:          info.Name,
		GivenName:     info.GivenName,
		FamilyName:    info.FamilyName,
	}, nil
}
