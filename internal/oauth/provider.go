/*-------------------------------------------------------------------------
 *
 * provider.go
 *    OAuth providers for tool server authorization
 *
 * The set of provider kinds is closed: generic (explicit endpoints or
 * RFC 8414 discovery), oidc (OpenID Connect discovery) and github.
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronBoard/internal/oauth/provider.go
 *
 *-------------------------------------------------------------------------
 */

package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"

	"github.com/neurondb/NeuronBoard/internal/config"
	"github.com/neurondb/NeuronBoard/internal/reliability"
)

/* ProviderKind names an OAuth provider implementation */
type ProviderKind string

const (
	ProviderGeneric ProviderKind = "generic"
	ProviderOIDC    ProviderKind = "oidc"
	ProviderGitHub  ProviderKind = "github"
)

const wellKnownPath = "/.well-known/oauth-authorization-server"

/* Provider performs the authorization code flow against one authorization server */
type Provider interface {
	AuthCodeURL(state, challenge, redirectURI string, scopes []string) string
	Exchange(ctx context.Context, code, verifier, redirectURI string) (*oauth2.Token, error)
	Identity(ctx context.Context, token *oauth2.Token) (string, error)
}

/* providerBuilders is closed; adding a kind means adding an entry here */
var providerBuilders = map[ProviderKind]func(ctx context.Context, cfg config.OAuthProviderConfig, resource string, client *http.Client) (Provider, error){
	ProviderGeneric: newGenericProvider,
	ProviderOIDC:    newOIDCProvider,
	ProviderGitHub:  newGitHubProvider,
}

/* NewProvider builds a provider; resource is the protected tool server URL */
func NewProvider(ctx context.Context, name string, cfg config.OAuthProviderConfig, resource string, client *http.Client) (Provider, error) {
	kind := ProviderKind(cfg.Kind)
	if kind == "" {
		kind = ProviderGeneric
	}
	build, ok := providerBuilders[kind]
	if !ok {
		return nil, reliability.NewConfigurationError(reliability.CodeUnknownProvider,
			fmt.Sprintf("oauth provider '%s' has unknown kind '%s'", name, cfg.Kind), nil)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return build(ctx, cfg, resource, client)
}

/* oauth2Provider is the shared code flow over an oauth2.Config */
type oauth2Provider struct {
	conf     oauth2.Config
	client   *http.Client
	identify func(ctx context.Context, token *oauth2.Token) (string, error)
}

func (p *oauth2Provider) configFor(redirectURI string, scopes []string) *oauth2.Config {
	c := p.conf
	c.RedirectURL = redirectURI
	if len(scopes) > 0 {
		c.Scopes = scopes
	}
	return &c
}

func (p *oauth2Provider) AuthCodeURL(state, challenge, redirectURI string, scopes []string) string {
	return p.configFor(redirectURI, scopes).AuthCodeURL(state,
		oauth2.SetAuthURLParam("code_challenge", challenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)
}

func (p *oauth2Provider) Exchange(ctx context.Context, code, verifier, redirectURI string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)
	token, err := p.configFor(redirectURI, nil).Exchange(ctx, code,
		oauth2.SetAuthURLParam("code_verifier", verifier))
	if err != nil {
		return nil, fmt.Errorf("oauth code exchange failed: error=%w", err)
	}
	return token, nil
}

func (p *oauth2Provider) Identity(ctx context.Context, token *oauth2.Token) (string, error) {
	if p.identify == nil {
		return "", nil
	}
	return p.identify(ctx, token)
}

/* authServerMetadata is the subset of RFC 8414 metadata we use */
type authServerMetadata struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	UserinfoEndpoint      string `json:"userinfo_endpoint"`
}

func newGenericProvider(ctx context.Context, cfg config.OAuthProviderConfig, resource string, client *http.Client) (Provider, error) {
	authURL, tokenURL, userInfoURL := cfg.AuthURL, cfg.TokenURL, cfg.UserInfoURL
	if authURL == "" || tokenURL == "" {
		base := cfg.IssuerURL
		if base == "" {
			base = resource
		}
		meta, err := discover(ctx, client, base)
		if err != nil {
			return nil, err
		}
		authURL, tokenURL = meta.AuthorizationEndpoint, meta.TokenEndpoint
		if userInfoURL == "" {
			userInfoURL = meta.UserinfoEndpoint
		}
	}

	p := &oauth2Provider{
		conf: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Scopes:       cfg.Scopes,
			Endpoint:     oauth2.Endpoint{AuthURL: authURL, TokenURL: tokenURL},
		},
		client: client,
	}
	if userInfoURL != "" {
		p.identify = func(ctx context.Context, token *oauth2.Token) (string, error) {
			return fetchAccount(ctx, client, userInfoURL, token, "email", "preferred_username", "login", "name", "sub")
		}
	}
	return p, nil
}

func newOIDCProvider(ctx context.Context, cfg config.OAuthProviderConfig, resource string, client *http.Client) (Provider, error) {
	provider, err := oidc.NewProvider(oidc.ClientContext(ctx, client), cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery failed: issuer='%s', error=%w", cfg.IssuerURL, err)
	}
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "profile", "email"}
	}
	return &oauth2Provider{
		conf: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Scopes:       scopes,
			Endpoint:     provider.Endpoint(),
		},
		client: client,
		identify: func(ctx context.Context, token *oauth2.Token) (string, error) {
			info, err := provider.UserInfo(oidc.ClientContext(ctx, client), oauth2.StaticTokenSource(token))
			if err != nil {
				return "", fmt.Errorf("oidc userinfo failed: error=%w", err)
			}
			if info.Email != "" {
				return info.Email, nil
			}
			return info.Subject, nil
		},
	}, nil
}

/* githubAPIURL is the user endpoint; overridden via userinfo_url */
const githubAPIURL = "https://api.github.com/user"

func newGitHubProvider(ctx context.Context, cfg config.OAuthProviderConfig, resource string, client *http.Client) (Provider, error) {
	endpoint := github.Endpoint
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	userURL := cfg.UserInfoURL
	if userURL == "" {
		userURL = githubAPIURL
	}
	return &oauth2Provider{
		conf: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Scopes:       cfg.Scopes,
			Endpoint:     endpoint,
		},
		client: client,
		identify: func(ctx context.Context, token *oauth2.Token) (string, error) {
			return fetchAccount(ctx, client, userURL, token, "login")
		},
	}, nil
}

/* discover fetches RFC 8414 metadata from the origin of base */
func discover(ctx context.Context, client *http.Client, base string) (*authServerMetadata, error) {
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, reliability.NewConfigurationError(reliability.CodeBadConfig,
			fmt.Sprintf("cannot discover oauth metadata from '%s'", base), err)
	}
	metaURL := u.Scheme + "://" + u.Host + wellKnownPath

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, metaURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("oauth discovery failed: url='%s', error=%w", metaURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("oauth discovery failed: url='%s', status=%d", metaURL, resp.StatusCode)
	}

	var meta authServerMetadata
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&meta); err != nil {
		return nil, fmt.Errorf("oauth discovery decode failed: url='%s', error=%w", metaURL, err)
	}
	if meta.AuthorizationEndpoint == "" || meta.TokenEndpoint == "" {
		return nil, fmt.Errorf("oauth discovery incomplete: url='%s'", metaURL)
	}
	return &meta, nil
}

/* fetchAccount GETs a user endpoint and returns the first non-empty field */
func fetchAccount(ctx context.Context, client *http.Client, endpoint string, token *oauth2.Token, fields ...string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")
	token.SetAuthHeader(req)

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("account lookup failed: url='%s', error=%w", endpoint, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("account lookup failed: url='%s', status=%d", endpoint, resp.StatusCode)
	}

	var body map[string]interface{}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return "", fmt.Errorf("account lookup decode failed: url='%s', error=%w", endpoint, err)
	}
	for _, f := range fields {
		if v, ok := body[f]; ok {
			if s := strings.TrimSpace(fmt.Sprint(v)); s != "" {
				return s, nil
			}
		}
	}
	return "", nil
}
