package oauth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/emsham/tethru/internal/instrumentation"
	"github.com/emsham/tethru/internal/logging"
)

// expiryBuffer is the safety margin subtracted from a token's stated expiry
// so a token that would expire mid-request is refreshed up front.
const expiryBuffer = 5 * time.Minute

const googleRevokeURL = "https://oauth2.googleapis.com/revoke"

// Manager owns the OAuth credential lifecycle: authorization-code exchange,
// silent refresh, and revocation. It is the single choke point through which
// calendar API calls obtain a usable access token.
type Manager struct {
	conf    *oauth2.Config
	tokens  TokenStore
	states  StateStore
	signer  *stateSigner
	logger  *slog.Logger
	metrics *instrumentation.Metrics

	httpClient *http.Client
	revokeURL  string
	now        func() time.Time
}

// NewManager creates an OAuth lifecycle manager. The token store persists the
// credential encrypted; the state store holds pending CSRF nonces.
func NewManager(conf *oauth2.Config, tokens TokenStore, states StateStore, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		conf:       conf,
		tokens:     tokens,
		states:     states,
		signer:     newStateSigner(conf.ClientSecret),
		logger:     logger,
		httpClient: http.DefaultClient,
		revokeURL:  googleRevokeURL,
		now:        time.Now,
	}
}

// SetMetrics attaches a metrics recorder.
func (m *Manager) SetMetrics(metrics *instrumentation.Metrics) {
	m.metrics = metrics
}

// AuthURL builds the authorization-request URL with a signed opaque state.
// For the local surface the state nonce is persisted so the callback can be
// validated against it; the deep-link surface cannot persist state across the
// context switch and is validated by signature and shape only.
func (m *Manager) AuthURL(ctx context.Context, surface Surface) (string, error) {
	state, nonce, err := m.signer.New(surface)
	if err != nil {
		return "", err
	}
	if surface == SurfaceLocal {
		if err := m.states.SaveAuthState(ctx, nonce); err != nil {
			return "", fmt.Errorf("failed to persist auth state: %w", err)
		}
	}
	// access_type=offline and prompt=consent so the provider issues a
	// refresh token even for repeat authorizations.
	return m.conf.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	), nil
}

// HandleCallback validates the returned state, exchanges the authorization
// code for a credential, and persists it. The returned token is already
// stored; it is returned so callers can report expiry details.
func (m *Manager) HandleCallback(ctx context.Context, code, state string) (*Token, error) {
	nonce, surface, err := m.signer.Verify(state)
	if err != nil {
		return nil, newAuthError("callback", "state validation failed", err)
	}
	if surface == SurfaceLocal {
		ok, err := m.states.ConsumeAuthState(ctx, nonce)
		if err != nil {
			return nil, fmt.Errorf("failed to look up auth state: %w", err)
		}
		if !ok {
			return nil, newAuthError("callback", "state mismatch", nil)
		}
	}

	t, err := m.conf.Exchange(ctx, code)
	if err != nil {
		return nil, newAuthError("exchange", "failed to exchange authorization code", err)
	}

	tok := fromOAuth2(t)
	if err := m.tokens.SaveToken(ctx, tok); err != nil {
		return nil, fmt.Errorf("failed to persist token: %w", err)
	}

	m.logger.Info("calendar connected",
		logging.Operation("oauth.callback"),
		slog.String("surface", string(surface)),
		slog.Time("token_expiry", tok.Expiry),
	)
	return tok, nil
}

// IsExpired reports whether the token is expired or will expire within the
// safety buffer. A token without an expiry never expires locally; the
// provider remains authoritative through the 401 path.
func (m *Manager) IsExpired(tok *Token) bool {
	if tok == nil {
		return true
	}
	if tok.Expiry.IsZero() {
		return false
	}
	return !m.now().Before(tok.Expiry.Add(-expiryBuffer))
}

// Valid returns a token usable for an API call, refreshing and re-persisting
// it first when it is expired. The possibly-updated token is returned rather
// than delivered through a callback so callers thread token state explicitly.
func (m *Manager) Valid(ctx context.Context, tok *Token) (_ *Token, refreshed bool, err error) {
	if !m.IsExpired(tok) {
		return tok, false, nil
	}
	newTok, err := m.Refresh(ctx, tok)
	if err != nil {
		return nil, false, err
	}
	if err := m.tokens.SaveToken(ctx, newTok); err != nil {
		return nil, false, fmt.Errorf("failed to persist refreshed token: %w", err)
	}
	return newTok, true, nil
}

// Refresh exchanges the refresh token for a new credential. The new token
// reuses the original refresh token when the provider omits one, so the
// long-lived credential is never dropped. Failing without a refresh token is
// terminal: the user must reauthorize.
func (m *Manager) Refresh(ctx context.Context, tok *Token) (*Token, error) {
	if tok == nil || tok.RefreshToken == "" {
		m.metrics.RecordTokenRefresh(ctx, instrumentation.ResultError)
		return nil, newAuthError("refresh", "no refresh token available", nil)
	}

	// Hand the token source only the refresh token so it performs a real
	// refresh instead of returning the cached access token.
	src := m.conf.TokenSource(ctx, &oauth2.Token{RefreshToken: tok.RefreshToken})
	t, err := src.Token()
	if err != nil {
		m.metrics.RecordTokenRefresh(ctx, instrumentation.ResultError)
		return nil, newAuthError("refresh", "token refresh failed", err)
	}

	newTok := fromOAuth2(t)
	if newTok.RefreshToken == "" {
		newTok.RefreshToken = tok.RefreshToken
	}
	m.metrics.RecordTokenRefresh(ctx, instrumentation.ResultSuccess)
	m.logger.Debug("token refreshed",
		logging.Operation("oauth.refresh"),
		slog.Time("token_expiry", newTok.Expiry),
		slog.String("access_token", logging.SanitizeToken(newTok.AccessToken)),
	)
	return newTok, nil
}

// AccessToken loads the persisted credential and returns a valid access
// token, refreshing silently when needed.
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	tok, err := m.tokens.LoadToken(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load token: %w", err)
	}
	if tok == nil {
		return "", newAuthError("token", "calendar is not connected", nil)
	}
	tok, _, err = m.Valid(ctx, tok)
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

// ForceRefresh refreshes the persisted credential unconditionally and returns
// the new access token. Used when the provider rejects a request with 401
// before the local expiry check fires; the provider is authoritative.
func (m *Manager) ForceRefresh(ctx context.Context) (string, error) {
	tok, err := m.tokens.LoadToken(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load token: %w", err)
	}
	if tok == nil {
		return "", newAuthError("token", "calendar is not connected", nil)
	}
	newTok, err := m.Refresh(ctx, tok)
	if err != nil {
		return "", err
	}
	if err := m.tokens.SaveToken(ctx, newTok); err != nil {
		return "", fmt.Errorf("failed to persist refreshed token: %w", err)
	}
	return newTok.AccessToken, nil
}

// Connected reports whether a credential is persisted.
func (m *Manager) Connected(ctx context.Context) (bool, error) {
	tok, err := m.tokens.LoadToken(ctx)
	if err != nil {
		return false, err
	}
	return tok != nil, nil
}

// Disconnect revokes the credential with the provider and deletes it locally.
// Revocation is best effort: a provider or network failure is logged and
// swallowed so the local state always ends up disconnected.
func (m *Manager) Disconnect(ctx context.Context) error {
	tok, err := m.tokens.LoadToken(ctx)
	if err != nil {
		return fmt.Errorf("failed to load token: %w", err)
	}
	if tok != nil {
		if err := m.revoke(ctx, tok); err != nil {
			m.logger.Warn("token revocation failed, continuing disconnect",
				logging.Operation("oauth.revoke"),
				logging.Err(err),
			)
		}
	}
	if err := m.tokens.DeleteToken(ctx); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	m.logger.Info("calendar disconnected", logging.Operation("oauth.disconnect"))
	return nil
}

// revoke invalidates the credential at the provider. Revoking the refresh
// token also invalidates the access tokens issued from it.
func (m *Manager) revoke(ctx context.Context, tok *Token) error {
	target := tok.RefreshToken
	if target == "" {
		target = tok.AccessToken
	}
	if target == "" {
		return nil
	}

	form := url.Values{"token": {target}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.revokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("revoke endpoint returned %s", resp.Status)
	}
	return nil
}
