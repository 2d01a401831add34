package oidc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/pdsapp/pds/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type discoveryDocument struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	UserinfoEndpoint      string `json:"userinfo_endpoint"`
	JwksURI               string `json:"jwks_uri"`
}

// fakeIdP serves discovery, token and userinfo endpoints for a single test.
type fakeIdP struct {
	server       *httptest.Server
	tokenStatus  int
	tokenBody    map[string]any
	userInfo     map[string]any
	lastVerifier string
}

func newFakeIdP(t *testing.T) *fakeIdP {
	t.Helper()
	f := &fakeIdP{
		tokenStatus: http.StatusOK,
		tokenBody: map[string]any{
			"access_token": "at-123",
			"token_type":   "Bearer",
			"expires_in":   3600,
		},
		userInfo: map[string]any{
			"sub":         "parent-1",
			"email":       "pat@example.com",
			"given_name":  "Pat",
			"family_name": "Doe",
			"groups":      []string{"pds-parents"},
			"pds_role":    "parent",
		},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, _ *http.Request) {
		base := f.server.URL
		_ = json.NewEncoder(w).Encode(discoveryDocument{
			Issuer:                base,
			AuthorizationEndpoint: base + "/authorize",
			TokenEndpoint:         base + "/token",
			UserinfoEndpoint:      base + "/userinfo",
			JwksURI:               base + "/jwks",
		})
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		f.lastVerifier = r.PostForm.Get("code_verifier")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.tokenStatus)
		_ = json.NewEncoder(w).Encode(f.tokenBody)
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer at-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(f.userInfo)
	})
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeIdP) provider(t *testing.T, scope string) *Provider {
	t.Helper()
	p, err := NewProvider(context.Background(), ProviderConfig{
		ClientID:     "test-client",
		ClientSecret: "test-secret",
		RedirectURL:  "http://localhost:8080/auth/callback",
		Scope:        scope,
		DiscoveryURL: f.server.URL + "/.well-known/openid-configuration",
	})
	require.NoError(t, err)
	return p
}

func TestNewProvider_Success(t *testing.T) {
	idp := newFakeIdP(t)
	provider := idp.provider(t, "openid profile email")

	assert.Equal(t, idp.server.URL+"/authorize", provider.config.Endpoint.AuthURL)
	assert.Equal(t, idp.server.URL+"/token", provider.config.Endpoint.TokenURL)
	assert.Equal(t, []string{"openid", "profile", "email"}, provider.config.Scopes)
}

func TestNewProvider_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		config ProviderConfig
		errMsg string
	}{
		{
			name:   "missing client ID",
			config: ProviderConfig{RedirectURL: "http://localhost/callback", DiscoveryURL: "http://example.com"},
			errMsg: "client ID is required",
		},
		{
			name:   "missing redirect URL",
			config: ProviderConfig{ClientID: "client", DiscoveryURL: "http://example.com"},
			errMsg: "redirect URL is required",
		},
		{
			name:   "missing discovery URL",
			config: ProviderConfig{ClientID: "client", RedirectURL: "http://localhost/callback"},
			errMsg: "discovery URL is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewProvider(context.Background(), tt.config)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestIssuerFromDiscoveryURL(t *testing.T) {
	assert.Equal(t, "https://idp.example.com", issuerFromDiscoveryURL("https://idp.example.com/.well-known/openid-configuration"))
	assert.Equal(t, "https://idp.example.com", issuerFromDiscoveryURL("https://idp.example.com/"))
}

func TestProvider_Begin_UsesPKCE(t *testing.T) {
	provider := newFakeIdP(t).provider(t, "openid profile email")

	out, err := provider.Begin(context.Background(), ports.BeginInput{RedirectURL: "http://localhost:8080/auth/callback"})
	require.NoError(t, err)
	assert.Len(t, out.State, 32)
	assert.Len(t, out.Nonce, 32)
	assert.NotEmpty(t, out.Verifier)

	u, err := url.Parse(out.AuthURL)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "test-client", q.Get("client_id"))
	assert.Equal(t, out.State, q.Get("state"))
	assert.Equal(t, out.Nonce, q.Get("nonce"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.Equal(t, oauth2.S256ChallengeFromVerifier(out.Verifier), q.Get("code_challenge"))
}

func TestProvider_Begin_EmptyRedirectURL(t *testing.T) {
	provider := newFakeIdP(t).provider(t, "openid")

	_, err := provider.Begin(context.Background(), ports.BeginInput{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redirect URL is required")
}

func TestProvider_Exchange_MissingCode(t *testing.T) {
	provider := newFakeIdP(t).provider(t, "openid")

	_, err := provider.Exchange(context.Background(), ports.ExchangeInput{State: "s"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "authorization code is required")
}

func TestProvider_Exchange_UserInfoPath(t *testing.T) {
	idp := newFakeIdP(t)
	// without the openid scope there is no id_token; identity comes from userinfo
	provider := idp.provider(t, "profile email")

	id, err := provider.Exchange(context.Background(), ports.ExchangeInput{
		Code:     "code-1",
		State:    "state-1",
		Verifier: "verifier-abc",
	})
	require.NoError(t, err)
	assert.Equal(t, "verifier-abc", idp.lastVerifier)
	assert.Equal(t, "parent-1", id.UserID)
	assert.Equal(t, "pat@example.com", id.Email)
	assert.Equal(t, "Pat", id.FirstName)
	assert.Equal(t, []string{"pds-parents"}, id.Groups)
	assert.Equal(t, "parent", id.Claims["pds_role"])
	assert.False(t, id.ExpiresAt.IsZero())
}

func TestProvider_Exchange_ProviderErrorText(t *testing.T) {
	idp := newFakeIdP(t)
	idp.tokenStatus = http.StatusBadRequest
	idp.tokenBody = map[string]any{
		"error":             "invalid_grant",
		"error_description": "Authorization code expired",
	}
	provider := idp.provider(t, "openid")

	_, err := provider.Exchange(context.Background(), ports.ExchangeInput{Code: "stale"})
	require.Error(t, err)

	var pe *ports.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "invalid_grant", pe.Code)
	assert.Equal(t, "Authorization code expired", pe.Error())
}

func TestProvider_VerifyAccessToken(t *testing.T) {
	provider := newFakeIdP(t).provider(t, "openid")

	id, err := provider.VerifyAccessToken(context.Background(), "at-123")
	require.NoError(t, err)
	assert.Equal(t, "parent-1", id.UserID)

	_, err = provider.VerifyAccessToken(context.Background(), "bogus")
	require.Error(t, err)

	_, err = provider.VerifyAccessToken(context.Background(), "")
	require.Error(t, err)
}

func TestGenerateRandomString(t *testing.T) {
	str1, err := generateRandomString(16)
	require.NoError(t, err)
	assert.Len(t, str1, 16)

	str2, err := generateRandomString(32)
	require.NoError(t, err)
	assert.Len(t, str2, 32)
	assert.NotEqual(t, str1, str2)
}

func TestGetIDTokenFromToken(t *testing.T) {
	tok := (&oauth2.Token{}).WithExtra(map[string]any{"id_token": "abc.def.ghi"})
	idTok, err := getIDTokenFromToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", idTok)

	_, err = getIDTokenFromToken((&oauth2.Token{}).WithExtra(map[string]any{"not_id": "x"}))
	require.ErrorContains(t, err, "missing id_token")

	_, err = getIDTokenFromToken(nil)
	require.ErrorContains(t, err, "nil token")
}

func Test_fillFromUserInfoClaims_KeepsExisting(t *testing.T) {
	ui := UserInfo{Subject: "sub-abc", Email: "mail@example.com", GivenName: "First", Groups: []string{"g"}}
	f := idFields{userID: "keep", email: "keep@example.com", claims: map[string]any{"sub": "keep"}}

	fillFromUserInfoClaims(&f, ui, map[string]any{"sub": "sub-abc", "pds_role": "teacher"})
	assert.Equal(t, "keep", f.userID)
	assert.Equal(t, "keep@example.com", f.email)
	assert.Equal(t, "First", f.givenName)
	assert.Equal(t, []string{"g"}, f.groups)
	assert.Equal(t, "keep", f.claims["sub"])
	assert.Equal(t, "teacher", f.claims["pds_role"])
}
