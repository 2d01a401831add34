package oidc

// Package oidc provides OIDC/OAuth authentication adapters for PDS.

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	domainauth "github.com/pdsapp/pds/internal/domain/auth"
	"github.com/pdsapp/pds/internal/ports"
	"golang.org/x/oauth2"
)

var (
	_ ports.AuthProvider        = (*Provider)(nil)
	_ ports.AccessTokenVerifier = (*Provider)(nil)
)

// Provider implements the AuthProvider interface using OIDC/OAuth2 with PKCE.
type Provider struct {
	config     *oauth2.Config
	httpClient *http.Client
	prompt     string

	// go-oidc provider and verifier
	oidcProvider *gooidc.Provider
	verifier     *gooidc.IDTokenVerifier
}

// ProviderConfig holds configuration for the OIDC provider.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scope        string
	DiscoveryURL string
	Prompt       string       // optional, e.g. "select_account"
	HTTPClient   *http.Client // Optional, defaults to a 30s client
}

// NewProvider creates a new OIDC provider.
func NewProvider(ctx context.Context, config ProviderConfig) (*Provider, error) {
	if config.ClientID == "" {
		return nil, errors.New("client ID is required")
	}
	if config.RedirectURL == "" {
		return nil, errors.New("redirect URL is required")
	}
	if config.DiscoveryURL == "" {
		return nil, errors.New("discovery URL is required")
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	p := &Provider{
		httpClient: httpClient,
		prompt:     config.Prompt,
	}

	// Initialize go-oidc provider and verifier (single discovery fetch)
	ctx = p.clientContext(ctx)
	op, err := gooidc.NewProvider(ctx, issuerFromDiscoveryURL(config.DiscoveryURL))
	if err != nil {
		return nil, fmt.Errorf("oidc new provider: %w", err)
	}
	p.oidcProvider = op
	p.verifier = op.Verifier(&gooidc.Config{ClientID: config.ClientID})

	// Configure OAuth2 using discovered endpoints
	p.config = &oauth2.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		RedirectURL:  config.RedirectURL,
		Scopes:       strings.Fields(config.Scope),
		Endpoint:     op.Endpoint(),
	}

	return p, nil
}

func issuerFromDiscoveryURL(raw string) string {
	issuer := strings.TrimSuffix(raw, "/")
	issuer = strings.TrimSuffix(issuer, "/.well-known/openid-configuration")
	return strings.TrimSuffix(issuer, ".well-known/openid-configuration")
}

func (p *Provider) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}

func (p *Provider) Begin(_ context.Context, in ports.BeginInput) (ports.BeginOutput, error) {
	if in.RedirectURL == "" {
		return ports.BeginOutput{}, errors.New("redirect URL is required")
	}

	state, err := generateRandomString(32)
	if err != nil {
		return ports.BeginOutput{}, fmt.Errorf("generate state: %w", err)
	}
	nonce, err := generateRandomString(32)
	if err != nil {
		return ports.BeginOutput{}, fmt.Errorf("generate nonce: %w", err)
	}
	verifier := oauth2.GenerateVerifier()

	// redirect_uri must match the configured RedirectURL exactly, so it is not overridden here
	opts := []oauth2.AuthCodeOption{
		oauth2.S256ChallengeOption(verifier),
		oauth2.SetAuthURLParam("nonce", nonce),
	}
	if p.prompt != "" {
		opts = append(opts, oauth2.SetAuthURLParam("prompt", p.prompt))
	}

	return ports.BeginOutput{
		AuthURL:  p.config.AuthCodeURL(state, opts...),
		State:    state,
		Nonce:    nonce,
		Verifier: verifier,
	}, nil
}

func (p *Provider) Exchange(ctx context.Context, in ports.ExchangeInput) (domainauth.Identity, error) {
	if in.Code == "" {
		return domainauth.Identity{}, errors.New("authorization code is required")
	}

	ctx = p.clientContext(ctx)
	var opts []oauth2.AuthCodeOption
	if in.Verifier != "" {
		opts = append(opts, oauth2.VerifierOption(in.Verifier))
	}

	token, err := p.config.Exchange(ctx, in.Code, opts...)
	if err != nil {
		return domainauth.Identity{}, exchangeError(err)
	}

	fields, err := p.extractFromIDToken(ctx, token, in.Nonce)
	if err != nil {
		return domainauth.Identity{}, fmt.Errorf("extract id_token: %w", err)
	}

	// Fill missing fields from UserInfo
	if fields.email == "" || fields.userID == "" {
		if fillErr := p.fillFromUserInfo(ctx, token.AccessToken, &fields); fillErr != nil {
			return domainauth.Identity{}, fmt.Errorf("get user info: %w", fillErr)
		}
	}

	return fields.identity(expiryOf(token)), nil
}

// VerifyAccessToken resolves an implicit-flow access token through the
// provider's userinfo endpoint.
func (p *Provider) VerifyAccessToken(ctx context.Context, accessToken string) (domainauth.Identity, error) {
	if accessToken == "" {
		return domainauth.Identity{}, errors.New("access token is required")
	}
	var fields idFields
	if err := p.fillFromUserInfo(p.clientContext(ctx), accessToken, &fields); err != nil {
		return domainauth.Identity{}, err
	}
	if fields.userID == "" {
		return domainauth.Identity{}, errors.New("userinfo response missing subject")
	}
	return fields.identity(time.Now().Add(time.Hour)), nil
}

// exchangeError surfaces the token endpoint's error_description when present.
func exchangeError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && (re.ErrorCode != "" || re.ErrorDescription != "") {
		return &ports.ProviderError{Code: re.ErrorCode, Description: re.ErrorDescription, Cause: err}
	}
	return fmt.Errorf("exchange code for token: %w", err)
}

func expiryOf(tok *oauth2.Token) time.Time {
	if tok != nil && !tok.Expiry.IsZero() {
		return tok.Expiry
	}
	return time.Now().Add(time.Hour)
}

// UserInfo represents the user information from the OIDC userinfo endpoint.
type UserInfo struct {
	Subject    string   `json:"sub"`
	Email      string   `json:"email"`
	GivenName  string   `json:"given_name"`
	FamilyName string   `json:"family_name"`
	Groups     []string `json:"groups"`
}

func (p *Provider) fillFromUserInfo(ctx context.Context, accessToken string, f *idFields) error {
	ui, err := p.oidcProvider.UserInfo(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}))
	if err != nil {
		return fmt.Errorf("fetch user info: %w", err)
	}
	var info UserInfo
	if claimsErr := ui.Claims(&info); claimsErr != nil {
		return fmt.Errorf("decode user info: %w", claimsErr)
	}
	var raw map[string]any
	if claimsErr := ui.Claims(&raw); claimsErr != nil {
		return fmt.Errorf("decode user info claims: %w", claimsErr)
	}
	fillFromUserInfoClaims(f, info, raw)
	return nil
}

type idFields struct {
	userID     string
	email      string
	givenName  string
	familyName string
	groups     []string
	claims     map[string]any
}

func (f idFields) identity(expiresAt time.Time) domainauth.Identity {
	return domainauth.Identity{
		UserID:    f.userID,
		FirstName: f.givenName,
		LastName:  f.familyName,
		Email:     f.email,
		Groups:    f.groups,
		Claims:    f.claims,
		ExpiresAt: expiresAt,
	}
}

type idTokenClaims struct {
	Sub        string   `json:"sub"`
	Email      string   `json:"email"`
	GivenName  string   `json:"given_name"`
	FamilyName string   `json:"family_name"`
	Groups     []string `json:"groups"`
	Nonce      string   `json:"nonce"`
}

func (p *Provider) extractFromIDToken(ctx context.Context, tok *oauth2.Token, expectedNonce string) (idFields, error) {
	var f idFields
	if !slices.Contains(p.config.Scopes, gooidc.ScopeOpenID) {
		return f, nil
	}
	rawID, err := getIDTokenFromToken(tok)
	if err != nil {
		return f, err
	}
	idTok, err := p.verifier.Verify(ctx, rawID)
	if err != nil {
		return f, fmt.Errorf("verify id_token: %w", err)
	}
	var claims idTokenClaims
	if claimsErr := idTok.Claims(&claims); claimsErr != nil {
		return f, fmt.Errorf("parse id_token claims: %w", claimsErr)
	}
	if expectedNonce != "" && claims.Nonce != expectedNonce {
		return f, errors.New("invalid nonce")
	}
	var raw map[string]any
	if claimsErr := idTok.Claims(&raw); claimsErr != nil {
		return f, fmt.Errorf("parse id_token raw claims: %w", claimsErr)
	}
	return mapIDTokenClaims(claims, raw), nil
}

func mapIDTokenClaims(c idTokenClaims, raw map[string]any) idFields {
	return idFields{
		userID:     c.Sub,
		email:      c.Email,
		givenName:  c.GivenName,
		familyName: c.FamilyName,
		groups:     c.Groups,
		claims:     raw,
	}
}

// fillFromUserInfoClaims fills missing fields from a UserInfo payload.
func fillFromUserInfoClaims(f *idFields, ui UserInfo, raw map[string]any) {
	if f.userID == "" {
		f.userID = ui.Subject
	}
	if f.email == "" {
		f.email = ui.Email
	}
	if f.givenName == "" {
		f.givenName = ui.GivenName
	}
	if f.familyName == "" {
		f.familyName = ui.FamilyName
	}
	if len(f.groups) == 0 {
		f.groups = ui.Groups
	}
	if f.claims == nil {
		f.claims = raw
		return
	}
	for k, v := range raw {
		if _, ok := f.claims[k]; !ok {
			f.claims[k] = v
		}
	}
}

// generateRandomString generates a cryptographically secure URL-safe random string of exact length.
func generateRandomString(length int) (string, error) {
	if length <= 0 {
		return "", nil
	}
	nBytes := (length*3 + 3) / 4
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	s := base64.RawURLEncoding.EncodeToString(b)
	for len(s) < length {
		extra := make([]byte, 3)
		if _, err := rand.Read(extra); err != nil {
			return "", err
		}
		s += base64.RawURLEncoding.EncodeToString(extra)
	}
	return s[:length], nil
}

// getIDTokenFromToken extracts the id_token from oauth2.Token.
func getIDTokenFromToken(tok *oauth2.Token) (string, error) {
	if tok == nil {
		return "", errors.New("nil token")
	}
	s, ok := tok.Extra("id_token").(string)
	if !ok || s == "" {
		return "", errors.New("missing id_token in token response")
	}
	return s, nil
}
