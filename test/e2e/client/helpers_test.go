package client_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/aussiebroadwan/authkit/pkg/authclient"
	"github.com/aussiebroadwan/authkit/pkg/oauthx"
	"github.com/stretchr/testify/require"
)

/*
 * Common helpers for end-to-end client tests. An in-process identity
 * provider and resource server stand in for the real deployment; each test
 * wires them to an oauthx provider and an authenticated client and drives
 * whole request flows through the stack.
 */

const (
	testClientID     = "e2e-client"
	initialRefresh   = "refresh-0"
	accessTokenTTL   = 300
	protectedPayload = `{"status":"ok"}`
)

// identityProvider is an in-process OAuth2 token + revocation endpoint with
// rotating refresh tokens. It tracks which access tokens it has issued so
// the resource server can validate them.
type identityProvider struct {
	t *testing.T

	mu            sync.Mutex
	refreshSerial int
	accessSerial  int
	validRefresh  map[string]bool
	validAccess   map[string]bool
	revoked       bool

	tokenCalls  int
	revokeCalls int

	srv *httptest.Server
}

func newIdentityProvider(t *testing.T) *identityProvider {
	t.Helper()

	idp := &identityProvider{
		t:            t,
		validRefresh: map[string]bool{initialRefresh: true},
		validAccess:  make(map[string]bool),
	}

	mux := http.NewServeMux()
	// Method patterns in ServeMux need Go 1.22; guard explicitly for 1.21.
	mux.HandleFunc("/oauth2/token", postOnly(idp.handleToken))
	mux.HandleFunc("/oauth2/revoke", postOnly(idp.handleRevoke))

	idp.srv = httptest.NewServer(mux)
	t.Cleanup(idp.srv.Close)
	return idp
}

func postOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	}
}

func (idp *identityProvider) handleToken(w http.ResponseWriter, r *http.Request) {
	idp.mu.Lock()
	defer idp.mu.Unlock()

	idp.tokenCalls++

	require.NoError(idp.t, r.ParseForm())
	require.Equal(idp.t, "refresh_token", r.PostFormValue("grant_type"))
	require.Equal(idp.t, testClientID, r.PostFormValue("client_id"))

	presented := r.PostFormValue("refresh_token")
	if !idp.validRefresh[presented] {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"error":             "invalid_grant",
			"error_description": "refresh token is invalid or revoked",
		})
		return
	}

	// Rotate: the presented token is consumed, a replacement is issued.
	delete(idp.validRefresh, presented)
	idp.refreshSerial++
	idp.accessSerial++
	newRefresh := "refresh-" + strconv.Itoa(idp.refreshSerial)
	newAccess := "access-" + strconv.Itoa(idp.accessSerial)
	idp.validRefresh[newRefresh] = true
	idp.validAccess[newAccess] = true

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token":  newAccess,
		"refresh_token": newRefresh,
		"token_type":    "Bearer",
		"expires_in":    accessTokenTTL,
	})
}

func (idp *identityProvider) handleRevoke(w http.ResponseWriter, r *http.Request) {
	idp.mu.Lock()
	defer idp.mu.Unlock()

	idp.revokeCalls++

	require.NoError(idp.t, r.ParseForm())
	delete(idp.validRefresh, r.PostFormValue("token"))
	idp.revoked = true
	w.WriteHeader(http.StatusOK)
}

// expireAccessTokens invalidates every outstanding access token, simulating
// server-side expiry or key rotation.
func (idp *identityProvider) expireAccessTokens() {
	idp.mu.Lock()
	defer idp.mu.Unlock()
	idp.validAccess = make(map[string]bool)
}

// revokeAllRefreshTokens kills the session server-side so the next grant
// fails with invalid_grant.
func (idp *identityProvider) revokeAllRefreshTokens() {
	idp.mu.Lock()
	defer idp.mu.Unlock()
	idp.validRefresh = make(map[string]bool)
}

func (idp *identityProvider) isValidAccess(token string) bool {
	idp.mu.Lock()
	defer idp.mu.Unlock()
	return idp.validAccess[token]
}

func (idp *identityProvider) stats() (tokenCalls, revokeCalls int) {
	idp.mu.Lock()
	defer idp.mu.Unlock()
	return idp.tokenCalls, idp.revokeCalls
}

// resourceServer is a protected API that accepts tokens the identity
// provider currently considers valid. Setting forbid makes it answer 403
// regardless of the token, simulating a revoked-permissions account.
type resourceServer struct {
	idp *identityProvider

	mu     sync.Mutex
	forbid bool
	hits   int

	srv *httptest.Server
}

func newResourceServer(t *testing.T, idp *identityProvider) *resourceServer {
	t.Helper()

	rs := &resourceServer{idp: idp}
	rs.srv = httptest.NewServer(http.HandlerFunc(rs.handle))
	t.Cleanup(rs.srv.Close)
	return rs
}

func (rs *resourceServer) handle(w http.ResponseWriter, r *http.Request) {
	rs.mu.Lock()
	rs.hits++
	forbid := rs.forbid
	rs.mu.Unlock()

	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || !rs.idp.isValidAccess(token) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	if forbid {
		w.WriteHeader(http.StatusForbidden)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(protectedPayload))
}

func (rs *resourceServer) setForbid(forbid bool) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.forbid = forbid
}

func (rs *resourceServer) hitCount() int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.hits
}

// testStack bundles the provider, servers and client a flow test needs.
type testStack struct {
	idp      *identityProvider
	resource *resourceServer
	client   *authclient.Client

	logouts         int
	refreshFailures []error
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()

	stack := &testStack{}
	stack.idp = newIdentityProvider(t)
	stack.resource = newResourceServer(t, stack.idp)

	provider, err := oauthx.NewProvider(oauthx.ProviderConfig{
		TokenURL:     stack.idp.srv.URL + "/oauth2/token",
		RevokeURL:    stack.idp.srv.URL + "/oauth2/revoke",
		ClientID:     testClientID,
		RefreshToken: initialRefresh,
		HTTPClient:   stack.idp.srv.Client(),
	})
	require.NoError(t, err)

	client, err := authclient.New(provider, authclient.Config{
		OnLogout: func() { stack.logouts++ },
		OnTokenRefreshFailed: func(err error) {
			stack.refreshFailures = append(stack.refreshFailures, err)
		},
	})
	require.NoError(t, err)
	stack.client = client

	return stack
}

// get performs one authenticated GET against the protected resource.
func (s *testStack) get(t *testing.T) *http.Response {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, s.resource.srv.URL+"/v1/protected", nil)
	require.NoError(t, err)

	resp, err := s.client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}
